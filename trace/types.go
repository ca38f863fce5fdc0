package trace

import "github.com/joshuapare/calltrace/internal/format"

// Wire types shared with the binary layout.
type (
	RecordType    = format.RecordType
	Prefix        = format.Prefix
	Record        = format.Record
	SegmentHeader = format.SegmentHeader
	Event         = format.Event
	Module        = format.Module
	BatchCall     = format.BatchCall
)

const (
	TypeSegmentHeader  = format.TypeSegmentHeader
	TypeProcessStarted = format.TypeProcessStarted
	TypeProcessEnded   = format.TypeProcessEnded
	TypeEnterEvent     = format.TypeEnterEvent
	TypeExitEvent      = format.TypeExitEvent
	TypeProcessAttach  = format.TypeProcessAttach
	TypeProcessDetach  = format.TypeProcessDetach
	TypeThreadAttach   = format.TypeThreadAttach
	TypeThreadDetach   = format.TypeThreadDetach
	TypeModuleEvent    = format.TypeModuleEvent
	TypeBatchEnter     = format.TypeBatchEnter
	TypeThreadName     = format.TypeThreadName
)

const (
	// PrefixSize is the framing overhead charged for every record.
	PrefixSize = format.PrefixSize
	// SegmentHeaderSize is the payload size of the header record.
	SegmentHeaderSize = format.SegmentHeaderSize
	// HeaderRecordSize is what bootstrap consumes: one prefix plus the header.
	HeaderRecordSize = format.SegmentHeaderRecordSize

	VersionHi = format.VersionHi
	VersionLo = format.VersionLo
)
