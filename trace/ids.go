package trace

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Identity constants consumed by the transport layer to tag outgoing trace
// data. They never change between builds.
var (
	// ProviderID names the call-trace provider.
	ProviderID = uuid.MustParse("06255e36-14b0-4e57-8964-2e3d675a0e77")

	// EventClassID names the class of events the provider emits.
	EventClassID = uuid.MustParse("44caeed0-5432-4c2d-96fa-cec50c742f01")
)

// Default transport naming. Both values are opaque to this package.
const (
	DefaultProtocol = "ncalrpc"
	DefaultEndpoint = "syzygy-call-trace-svc"
)

// GUIDBytes renders id in the in-memory GUID layout: the 4-byte, 2-byte and
// 2-byte groups little-endian, followed by the 8-byte group as-is.
func GUIDBytes(id uuid.UUID) [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint32(out[0:4], binary.BigEndian.Uint32(id[0:4]))
	binary.LittleEndian.PutUint16(out[4:6], binary.BigEndian.Uint16(id[4:6]))
	binary.LittleEndian.PutUint16(out[6:8], binary.BigEndian.Uint16(id[6:8]))
	copy(out[8:], id[8:])
	return out
}

// ParseGUIDBytes is the inverse of GUIDBytes.
func ParseGUIDBytes(b [16]byte) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint32(id[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(id[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(id[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(id[8:], b[8:])
	return id
}
