// Package format houses the binary layout of call-trace segments: the record
// prefix stamped before every payload, the segment header record, and the
// payload layouts of the typed records. Encoding is little-endian and
// allocation-free; the segment allocator in package trace and the record
// scanner both build on these offsets.
package format

import "math"

// ============================================================================
// Record Prefix
// ============================================================================
// Every record is framed as prefix || payload.
//
//	Offset  Size  Field
//	0x00    8     Timestamp (raw monotonic counter ticks)
//	0x08    4     Payload size in bytes (prefix excluded)
//	0x0C    2     Record type
//	0x0E    1     Version hi
//	0x0F    1     Version lo
const (
	PrefixTimestampOffset = 0x00
	PrefixSizeOffset      = 0x08
	PrefixTypeOffset      = 0x0C
	PrefixVersionHiOffset = 0x0E
	PrefixVersionLoOffset = 0x0F

	// PrefixSize is the fixed number of bytes charged for every record on top
	// of its payload.
	PrefixSize = 0x10
)

// Protocol version stamped on every record.
const (
	VersionHi = 1
	VersionLo = 0
)

// ============================================================================
// Segment Header
// ============================================================================
// Payload of the first record in every segment.
//
//	Offset  Size  Field
//	0x00    4     Thread id of the owning producer
//	0x04    4     Segment length (bytes consumed so far, header record included)
//	0x08    8     Timer resolution (counter ticks per second)
const (
	HeaderThreadIDOffset        = 0x00
	HeaderSegmentLengthOffset   = 0x04
	HeaderTimerResolutionOffset = 0x08

	// SegmentHeaderSize is the payload size of the header record.
	SegmentHeaderSize = 0x10

	// SegmentHeaderRecordSize is what bootstrapping a segment consumes.
	SegmentHeaderRecordSize = PrefixSize + SegmentHeaderSize
)

// MaxPayloadSize is the largest payload the 32-bit size field can describe.
// Segments are capped the same way because segment_length is 32-bit.
const (
	MaxPayloadSize = math.MaxUint32
	MaxSegmentSize = math.MaxUint32
)

// ============================================================================
// Enter/Exit Event
// ============================================================================
const (
	EventDepthOffset    = 0x00 // uint32 call depth
	EventReturnOffset   = 0x08 // uint64 return address
	EventFunctionOffset = 0x10 // uint64 function address
	EventArgsOffset     = 0x18 // [4]uint64 argument words

	EventArgCount = 4
	EventSize     = EventArgsOffset + EventArgCount*8 // 0x38
)

// ============================================================================
// Module Event
// ============================================================================
// Used by the module, process attach/detach and thread attach/detach records.
const (
	ModuleBaseAddrOffset  = 0x00 // uint64
	ModuleBaseSizeOffset  = 0x08 // uint32
	ModuleChecksumOffset  = 0x0C // uint32
	ModuleTimeStampOffset = 0x10 // uint32 image time-date stamp
	ModuleNameLenOffset   = 0x14 // uint16 name length in UTF-16 code units
	ModuleNameOffset      = 0x18 // UTF-16LE name

	ModuleFixedSize = ModuleNameOffset
	// ModuleMaxNameUnits bounds the name so the length fits its uint16 field.
	ModuleMaxNameUnits = math.MaxUint16
)

// ============================================================================
// Batch Enter
// ============================================================================
const (
	BatchThreadIDOffset = 0x00 // uint32
	BatchCountOffset    = 0x04 // uint32 number of calls
	BatchCallsOffset    = 0x08 // start of the call array

	BatchFixedSize = BatchCallsOffset

	// Each call entry is {ticks uint64, function uint64}.
	BatchCallTicksOffset    = 0x00
	BatchCallFunctionOffset = 0x08
	BatchCallSize           = 0x10
)
