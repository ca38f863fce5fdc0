package trace

import (
	"fmt"

	"github.com/joshuapare/calltrace/internal/format"
)

// AppendEnterEvent records a function entry.
func AppendEnterEvent(seg *Segment, e Event) error {
	return appendEvent(seg, TypeEnterEvent, e)
}

// AppendExitEvent records a function exit.
func AppendExitEvent(seg *Segment, e Event) error {
	return appendEvent(seg, TypeExitEvent, e)
}

func appendEvent(seg *Segment, typ RecordType, e Event) error {
	p, err := AllocateTraceRecord(seg, typ, format.EventSize)
	if err != nil {
		return err
	}
	format.PutEvent(p, e)
	return nil
}

// AppendModuleEvent records a module load or a process/thread attach or
// detach notification for module m.
func AppendModuleEvent(seg *Segment, typ RecordType, m Module) error {
	switch typ {
	case TypeModuleEvent, TypeProcessStarted,
		TypeProcessAttach, TypeProcessDetach,
		TypeThreadAttach, TypeThreadDetach:
	default:
		return fmt.Errorf("trace: module payload for %s: %w", typ, ErrWrongType)
	}
	name16, err := format.EncodeUTF16(m.Name)
	if err != nil {
		return fmt.Errorf("trace: module name: %w", err)
	}
	if len(name16)/2 > format.ModuleMaxNameUnits {
		return fmt.Errorf("trace: module %q: %w", m.Name, format.ErrNameTooLong)
	}
	p, err := AllocateTraceRecord(seg, typ, format.ModuleSize(len(name16)))
	if err != nil {
		return err
	}
	return format.PutModule(p, m, name16)
}

// AppendBatchEnter records a batch of function entries collected by a
// producer-side buffer.
func AppendBatchEnter(seg *Segment, threadID uint32, calls []BatchCall) error {
	size, ok := format.BatchSize(len(calls))
	if !ok {
		return fmt.Errorf("trace: batch of %d calls: %w", len(calls), ErrTooLarge)
	}
	p, err := AllocateTraceRecord(seg, TypeBatchEnter, size)
	if err != nil {
		return err
	}
	format.PutBatch(p, threadID, calls)
	return nil
}

// AppendThreadName records the UTF-8 name of the producing thread.
func AppendThreadName(seg *Segment, name string) error {
	if name == "" {
		return fmt.Errorf("trace: thread name: %w", ErrEmptyPayload)
	}
	p, err := AllocateTraceRecord(seg, TypeThreadName, len(name))
	if err != nil {
		return err
	}
	copy(p, name)
	return nil
}

// AppendProcessEnded records process termination. The record has no payload
// and costs only its prefix.
func AppendProcessEnded(seg *Segment) error {
	_, err := AllocateTraceRecord(seg, TypeProcessEnded, 0)
	return err
}
