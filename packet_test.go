package tsreplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tsPacketWithPCR(pcrBase, pcrExt int) []byte {
	b := make([]byte, tsPacketSize)
	b[0] = syncByte
	b[1] = 0x40 // payload unit start
	b[2] = 0x10 // PID low byte
	b[3] = 0x30 // adaptation field + payload present
	b[4] = 183  // adaptation field length
	b[5] = 0x10 // PCR flag set, random access clear

	v := uint64(pcrBase)<<15 | 0x3f<<9 | uint64(pcrExt)
	b[6] = byte(v >> 40)
	b[7] = byte(v >> 32)
	b[8] = byte(v >> 24)
	b[9] = byte(v >> 16)
	b[10] = byte(v >> 8)
	b[11] = byte(v)
	return b
}

func TestCheckPCR(t *testing.T) {
	b := tsPacketWithPCR(1000, 5)
	assert.True(t, checkPCR(b))

	noAdaptation := make([]byte, tsPacketSize)
	noAdaptation[0] = syncByte
	assert.False(t, checkPCR(noAdaptation))

	randomAccess := tsPacketWithPCR(1000, 5)
	randomAccess[5] |= 0x40
	assert.False(t, checkPCR(randomAccess))
}

func TestCalcPCR(t *testing.T) {
	b := tsPacketWithPCR(1000, 5)
	require.True(t, checkPCR(b))
	assert.Equal(t, int64(1000*300+5), calcPCR(b))
}

func TestParsePacket(t *testing.T) {
	b := tsPacketWithPCR(1000, 5)
	p, err := parsePacket(b)
	require.NoError(t, err)
	assert.True(t, p.Header.HasAdaptationField)
	assert.True(t, p.Header.HasPayload)
	require.NotNil(t, p.AdaptationField)
	require.NotNil(t, p.AdaptationField.PCR)
	assert.Equal(t, int64(1000), p.AdaptationField.PCR.Base)
	assert.Equal(t, int64(5), p.AdaptationField.PCR.Extension)
}

func TestParsePacketRejectsWrongSize(t *testing.T) {
	_, err := parsePacket(make([]byte, tsPacketSize-1))
	assert.ErrorIs(t, err, ErrPacketMustStartWithASyncByte)
}

func TestParsePacketRejectsBadSync(t *testing.T) {
	b := make([]byte, tsPacketSize)
	_, err := parsePacket(b)
	assert.ErrorIs(t, err, ErrPacketMustStartWithASyncByte)
}
