package tsreplay

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSyntheticTS writes a TS file of numBlocks PCR-delimited blocks, each
// holding packetsPerBlock plain packets after its PCR packet, to a temp
// file and returns its path. PCR bases advance by a small, fixed step so
// pacing in tests finishes quickly while still exercising real sleeps.
func buildSyntheticTS(t *testing.T, numBlocks, packetsPerBlock int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synthetic.ts")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < numBlocks; i++ {
		_, err := f.Write(tsPacketWithPCR(i*27, 0))
		require.NoError(t, err)
		for j := 0; j < packetsPerBlock; j++ {
			_, err := f.Write(tsPlainPacket())
			require.NoError(t, err)
		}
	}
	return path
}

// TestReplayEndToEndEOF covers scenario S5: a non-looping replay delivers
// every packet of each PCR-closed block once and then exactly one EOF,
// invoking the callback once.
func TestReplayEndToEndEOF(t *testing.T) {
	const blocks, perBlock = 20, 5
	path := buildSyntheticTS(t, blocks, perBlock)

	var eofCount int32
	r, err := NewReplay(context.Background(),
		WithFilename(path),
		WithBufferSize(1024*1024),
		WithCallback(func() { atomic.AddInt32(&eofCount, 1) }),
	)
	require.NoError(t, err)
	defer r.Close()

	delivered := 0
	for r.Next() {
		delivered++
	}

	// The final block has no trailing PCR to close it, so its duration
	// can't be paced and it is never emitted — only the fully-closed
	// blocks before it are.
	assert.Equal(t, (blocks-1)*(perBlock+1), delivered)
	assert.Equal(t, int32(1), atomic.LoadInt32(&eofCount))
}

// TestReplayForwardsToSink checks that every delivered packet reaches the
// configured sink starting with a sync byte.
func TestReplayForwardsToSink(t *testing.T) {
	path := buildSyntheticTS(t, 5, 3)

	var received int
	sink := PacketSinkFunc(func(packet []byte) {
		received++
		assert.Len(t, packet, tsPacketSize)
		assert.Equal(t, byte(syncByte), packet[0])
	})

	r, err := NewReplay(context.Background(), WithFilename(path), WithSink(sink))
	require.NoError(t, err)
	defer r.Close()

	for r.Next() {
	}
	assert.Equal(t, (5-1)*(3+1), received)
}

func TestReplayMissingFilename(t *testing.T) {
	_, err := NewReplay(context.Background())
	assert.ErrorIs(t, err, ErrMissingFilename)
}

func TestReplayCheckLength(t *testing.T) {
	var buf []byte
	buf = append(buf, m2tsCell(1_000_000, tsPacketWithPCR(1000, 0))...)
	buf = append(buf, m2tsCell(2_000_000, tsPlainPacket())...)
	buf = append(buf, m2tsCell(11_000_000, tsPlainPacket())...)

	path := filepath.Join(t.TempDir(), "length.m2ts")
	require.NoError(t, os.WriteFile(path, buf, 0644))

	r, err := NewReplay(context.Background(), WithFilename(path), WithCheckLength(true))
	require.NoError(t, err)
	assert.Equal(t, int64(10000), r.Length())
}

func TestReplayDoubleClose(t *testing.T) {
	path := buildSyntheticTS(t, 2, 2)
	r, err := NewReplay(context.Background(), WithFilename(path))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), ErrClosed)
}
