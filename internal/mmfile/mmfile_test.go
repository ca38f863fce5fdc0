package mmfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateWritesThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.bin")
	m, err := Create(path, 4096)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data := m.Bytes()
	if len(data) != 4096 {
		t.Fatalf("len = %d, want 4096", len(data))
	}
	copy(data, []byte{0xde, 0xad, 0xbe, 0xef})
	if err := m.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := m.Sync(); err != ErrClosed {
		t.Fatalf("Sync after Close = %v, want ErrClosed", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 4096 || !bytes.Equal(got[:4], []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("file contents: len=%d head=% x", len(got), got[:4])
	}
}

func TestAnonymousIsZeroed(t *testing.T) {
	m, err := Anonymous(8192)
	if err != nil {
		t.Fatalf("Anonymous: %v", err)
	}
	defer m.Close()
	for i, b := range m.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = 0x%x, want 0", i, b)
		}
	}
	m.Bytes()[100] = 1
}

func TestInvalidSize(t *testing.T) {
	if _, err := Anonymous(0); err == nil {
		t.Fatalf("expected error for zero size")
	}
	if _, err := Create(filepath.Join(t.TempDir(), "x"), -1); err == nil {
		t.Fatalf("expected error for negative size")
	}
}
