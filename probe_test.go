package tsreplay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tsPlainPacket() []byte {
	b := make([]byte, tsPacketSize)
	b[0] = syncByte
	return b
}

// TestProbeTS covers scenario S1: two 188-byte packets, the second
// carrying a PCR.
func TestProbeTS(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(tsPlainPacket())
	buf.Write(tsPacketWithPCR(1000, 5))

	res, err := probe(buf.Bytes(), int64(buf.Len()), nil)
	require.NoError(t, err)
	assert.Equal(t, formatTS, res.format)
	assert.Equal(t, tsPacketSize, res.tsSize)
	assert.Equal(t, tsPacketSize, res.cursor)
}

func m2tsCell(timestamp uint32, tsBytes []byte) []byte {
	cell := make([]byte, m2tsCellSize)
	cell[0] = byte(timestamp >> 24)
	cell[1] = byte(timestamp >> 16)
	cell[2] = byte(timestamp >> 8)
	cell[3] = byte(timestamp)
	copy(cell[4:], tsBytes)
	return cell
}

// TestProbeM2TSLength covers scenario S2: three 192-byte cells with
// timestamps 1_000_000, 2_000_000, 11_000_000 yielding startTime=1000,
// length=10000.
func TestProbeM2TSLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(m2tsCell(1_000_000, tsPacketWithPCR(1000, 5)))
	buf.Write(m2tsCell(2_000_000, tsPlainPacket()))
	buf.Write(m2tsCell(11_000_000, tsPlainPacket()))

	data := buf.Bytes()
	res, err := probe(data, int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, formatM2TS, res.format)
	assert.Equal(t, m2tsCellSize, res.tsSize)
	assert.Equal(t, int64(1000), res.startTime)
	assert.Equal(t, int64(10000), res.length)
}

func TestProbeTooSmall(t *testing.T) {
	_, err := probe(make([]byte, 10), 10, nil)
	assert.ErrorIs(t, err, ErrFileTooSmall)
}

func TestProbeWrongFormat(t *testing.T) {
	buf := make([]byte, 2*m2tsCellSize)
	_, err := probe(buf, int64(len(buf)), nil)
	assert.ErrorIs(t, err, ErrWrongFormat)
}

func TestProbeNoPCR(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(tsPlainPacket())
	buf.Write(tsPlainPacket())
	_, err := probe(buf.Bytes(), int64(buf.Len()), nil)
	assert.ErrorIs(t, err, ErrFirstPCRNotFound)
}
