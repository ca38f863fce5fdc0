package format

import (
	"fmt"

	"github.com/joshuapare/calltrace/internal/buf"
)

// Event is the payload of enter and exit records.
type Event struct {
	Depth    uint32
	Return   uint64
	Function uint64
	Args     [EventArgCount]uint64
}

// PutEvent encodes e into b, which must hold at least EventSize bytes.
func PutEvent(b []byte, e Event) {
	PutU32(b, EventDepthOffset, e.Depth)
	PutU32(b, EventDepthOffset+4, 0)
	PutU64(b, EventReturnOffset, e.Return)
	PutU64(b, EventFunctionOffset, e.Function)
	for i, a := range e.Args {
		PutU64(b, EventArgsOffset+i*8, a)
	}
}

// ParseEvent decodes an enter/exit payload.
func ParseEvent(b []byte) (Event, error) {
	if len(b) < EventSize {
		return Event{}, fmt.Errorf("event: %w", ErrTruncated)
	}
	e := Event{
		Depth:    ReadU32(b, EventDepthOffset),
		Return:   ReadU64(b, EventReturnOffset),
		Function: ReadU64(b, EventFunctionOffset),
	}
	for i := range e.Args {
		e.Args[i] = ReadU64(b, EventArgsOffset+i*8)
	}
	return e, nil
}

// Module describes a loaded image. It is the payload of module, process
// attach/detach and thread attach/detach records.
type Module struct {
	BaseAddr      uint64
	BaseSize      uint32
	Checksum      uint32
	TimeDateStamp uint32
	Name          string
}

// ModuleSize returns the payload size for a module whose UTF-16LE name is
// nameBytes long.
func ModuleSize(nameBytes int) int {
	return ModuleFixedSize + nameBytes
}

// PutModule encodes m into b using the pre-encoded UTF-16LE name16. The
// caller sizes b with ModuleSize(len(name16)).
func PutModule(b []byte, m Module, name16 []byte) error {
	units := len(name16) / 2
	if units > ModuleMaxNameUnits {
		return fmt.Errorf("module %q: %w", m.Name, ErrNameTooLong)
	}
	if len(b) < ModuleSize(len(name16)) {
		return fmt.Errorf("module: %w", ErrTruncated)
	}
	PutU64(b, ModuleBaseAddrOffset, m.BaseAddr)
	PutU32(b, ModuleBaseSizeOffset, m.BaseSize)
	PutU32(b, ModuleChecksumOffset, m.Checksum)
	PutU32(b, ModuleTimeStampOffset, m.TimeDateStamp)
	PutU16(b, ModuleNameLenOffset, uint16(units))
	PutU16(b, ModuleNameLenOffset+2, 0)
	copy(b[ModuleNameOffset:], name16)
	return nil
}

// ParseModule decodes a module payload.
func ParseModule(b []byte) (Module, error) {
	if len(b) < ModuleFixedSize {
		return Module{}, fmt.Errorf("module: %w", ErrTruncated)
	}
	units := int(ReadU16(b, ModuleNameLenOffset))
	raw, ok := buf.Slice(b, ModuleNameOffset, units*2)
	if !ok {
		return Module{}, fmt.Errorf("module name: %w", ErrTruncated)
	}
	name, err := DecodeUTF16(raw)
	if err != nil {
		return Module{}, fmt.Errorf("module name: %w", err)
	}
	return Module{
		BaseAddr:      ReadU64(b, ModuleBaseAddrOffset),
		BaseSize:      ReadU32(b, ModuleBaseSizeOffset),
		Checksum:      ReadU32(b, ModuleChecksumOffset),
		TimeDateStamp: ReadU32(b, ModuleTimeStampOffset),
		Name:          name,
	}, nil
}

// BatchCall is one entry of a batch-enter record.
type BatchCall struct {
	Ticks    uint64
	Function uint64
}

// BatchSize returns the payload size of a batch holding n calls. ok is false
// when the size overflows.
func BatchSize(n int) (int, bool) {
	if n < 0 || uint64(n) > (MaxPayloadSize-BatchFixedSize)/BatchCallSize {
		return 0, false
	}
	return BatchFixedSize + n*BatchCallSize, true
}

// PutBatch encodes a batch-enter payload into b, sized with BatchSize.
func PutBatch(b []byte, threadID uint32, calls []BatchCall) {
	PutU32(b, BatchThreadIDOffset, threadID)
	PutU32(b, BatchCountOffset, uint32(len(calls)))
	off := BatchCallsOffset
	for _, c := range calls {
		PutU64(b, off+BatchCallTicksOffset, c.Ticks)
		PutU64(b, off+BatchCallFunctionOffset, c.Function)
		off += BatchCallSize
	}
}

// ParseBatch decodes a batch-enter payload.
func ParseBatch(b []byte) (uint32, []BatchCall, error) {
	if len(b) < BatchFixedSize {
		return 0, nil, fmt.Errorf("batch: %w", ErrTruncated)
	}
	count := int(ReadU32(b, BatchCountOffset))
	end, err := buf.CheckListBounds(len(b), BatchCallsOffset, count, BatchCallSize)
	if err != nil {
		return 0, nil, fmt.Errorf("batch: %w: %w", ErrTruncated, err)
	}
	calls := make([]BatchCall, 0, count)
	for off := BatchCallsOffset; off < end; off += BatchCallSize {
		calls = append(calls, BatchCall{
			Ticks:    ReadU64(b, off+BatchCallTicksOffset),
			Function: ReadU64(b, off+BatchCallFunctionOffset),
		})
	}
	return ReadU32(b, BatchThreadIDOffset), calls, nil
}
