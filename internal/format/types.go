package format

import "strconv"

// RecordType tags the logical kind of a record's payload.
type RecordType uint16

const (
	// TypeSegmentHeader is reserved for the first record of every segment.
	TypeSegmentHeader RecordType = 1

	TypeProcessStarted RecordType = iota + 9 // 10
	TypeProcessEnded
	TypeEnterEvent
	TypeExitEvent
	TypeProcessAttach
	TypeProcessDetach
	TypeThreadAttach
	TypeThreadDetach
	TypeModuleEvent
	TypeBatchEnter
	TypeThreadName
)

var typeNames = map[RecordType]string{
	TypeSegmentHeader:  "segment-header",
	TypeProcessStarted: "process-started",
	TypeProcessEnded:   "process-ended",
	TypeEnterEvent:     "enter",
	TypeExitEvent:      "exit",
	TypeProcessAttach:  "process-attach",
	TypeProcessDetach:  "process-detach",
	TypeThreadAttach:   "thread-attach",
	TypeThreadDetach:   "thread-detach",
	TypeModuleEvent:    "module",
	TypeBatchEnter:     "batch-enter",
	TypeThreadName:     "thread-name",
}

func (t RecordType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// EmptyPayload reports whether the record format of t defines no payload.
// Only these types may be allocated with a size of zero.
func (t RecordType) EmptyPayload() bool {
	return t == TypeProcessEnded
}

// Reserved reports whether t may only be written by segment bootstrap.
func (t RecordType) Reserved() bool {
	return t == TypeSegmentHeader
}
