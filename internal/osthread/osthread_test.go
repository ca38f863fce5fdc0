package osthread

import (
	"runtime"
	"testing"
)

func TestCurrentIDStableWhileLocked(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a := CurrentID()
	b := CurrentID()
	if a == 0 {
		t.Fatalf("CurrentID returned 0")
	}
	if a != b {
		t.Fatalf("CurrentID changed while locked: %d != %d", a, b)
	}
}
