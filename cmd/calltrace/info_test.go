package main

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/calltrace/trace"
)

func TestCollectInfo(t *testing.T) {
	info, err := collectInfo()
	require.NoError(t, err)

	assert.Equal(t, trace.ProviderID.String(), info.ProviderID)
	assert.Equal(t, trace.EventClassID.String(), info.EventClassID)
	assert.Equal(t, "1.0", info.Version)
	assert.Equal(t, 16, info.PrefixSize)
	assert.Equal(t, 32, info.HeaderRecordSize)
	assert.NotZero(t, info.TimerResolution)
	assert.Equal(t, trace.DefaultProtocol, info.Protocol)
	assert.Equal(t, trace.DefaultEndpoint, info.Endpoint)

	ep16, err := hex.DecodeString(info.EndpointUTF16)
	require.NoError(t, err)
	require.Len(t, ep16, 2*len(trace.DefaultEndpoint))
	for i := range len(trace.DefaultEndpoint) {
		assert.Equal(t, trace.DefaultEndpoint[i], ep16[2*i])
		assert.Zero(t, ep16[2*i+1])
	}
	proto16, err := hex.DecodeString(info.ProtocolUTF16)
	require.NoError(t, err)
	assert.Len(t, proto16, 2*len(trace.DefaultProtocol))

	raw, err := hex.DecodeString(info.ProviderGUID)
	require.NoError(t, err)
	require.Len(t, raw, 16)
	assert.Equal(t, trace.ProviderID, trace.ParseGUIDBytes([16]byte(raw)))
}
