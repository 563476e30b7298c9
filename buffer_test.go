package tsreplay

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempTSFile(t *testing.T, packets ...[]byte) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "tsreplay-*.ts")
	require.NoError(t, err)
	for _, p := range packets {
		_, err := f.Write(p)
		require.NoError(t, err)
	}
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	return f
}

func TestInputBufferFindBlockEnd(t *testing.T) {
	f := writeTempTSFile(t, tsPacketWithPCR(1000, 0), tsPlainPacket(), tsPacketWithPCR(2000, 0))
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	buf := newInputBuffer(f, info.Size(), tsPacketSize, defaultBufferSize)
	eof, err := buf.refill()
	require.NoError(t, err)
	assert.True(t, eof)

	end, found := buf.findBlockEnd(0)
	require.True(t, found)
	assert.Equal(t, 2*tsPacketSize, end)
	assert.Equal(t, int64(2000*300), buf.pcrAt(end))
}

func TestInputBufferRefillAdvance(t *testing.T) {
	f := writeTempTSFile(t, tsPacketWithPCR(1000, 0), tsPacketWithPCR(2000, 0))
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	buf := newInputBuffer(f, info.Size(), tsPacketSize, tsPacketSize*2)
	_, err = buf.refill()
	require.NoError(t, err)

	buf.cursor = tsPacketSize
	buf.advance()
	assert.Equal(t, int64(tsPacketSize), buf.fileSkip)
	assert.Equal(t, int64(tsPacketSize), buf.fileSkipAtomic.Load())
	assert.Equal(t, 0, buf.cursor)
}

func TestInputBufferTimestampMS(t *testing.T) {
	cell := m2tsCell(5_000_000, tsPacketWithPCR(1000, 0))
	f, err := os.CreateTemp(t.TempDir(), "tsreplay-*.m2ts")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Write(cell)
	require.NoError(t, err)

	buf := newInputBuffer(f, m2tsCellSize, m2tsCellSize, m2tsCellSize)
	_, err = buf.refill()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), buf.timestampMS(0))
}
