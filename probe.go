package tsreplay

import (
	"fmt"
	"io"

	"golang.org/x/exp/slices"
)

// format identifies which of the two accepted container layouts a file
// uses.
type format int

const (
	formatTS format = iota
	formatM2TS
)

// probeResult is everything the Byte-Format Probe learns from the head (and,
// for M2TS, tail) of a file before pacing can start.
type probeResult struct {
	format    format
	tsSize    int // 188 (TS) or 192 (M2TS)
	cursor    int // offset of the first PCR-carrying packet within the probed window
	startTime int64
	length    int64
}

// probe classifies buf (the first bufferSize bytes of the file, or the
// whole file if smaller) as TS or M2TS and locates the first PCR-bearing
// packet. tailReaderAt, if non-nil, is used to read the file's last
// m2tsCellSize bytes to compute an M2TS stream's length.
func probe(buf []byte, fileSize int64, tailReaderAt io.ReaderAt) (*probeResult, error) {
	if len(buf) < 2*tsPacketSize {
		return nil, fmt.Errorf("%w: probe window is %d bytes", ErrFileTooSmall, len(buf))
	}

	r := &probeResult{}
	switch {
	case buf[0] == syncByte && buf[tsPacketSize] == syncByte:
		r.format = formatTS
		r.tsSize = tsPacketSize
	case buf[4] == syncByte && buf[4+m2tsCellSize] == syncByte:
		r.format = formatM2TS
		r.tsSize = m2tsCellSize
	default:
		if idx := slices.Index(buf[:m2tsCellSize], syncByte); idx >= 0 {
			return nil, fmt.Errorf("%w: nearest sync byte found at offset %d, not 0 or 4", ErrWrongFormat, idx)
		}
		return nil, ErrWrongFormat
	}

	headerOffset := 0
	if r.format == formatM2TS {
		headerOffset = 4
	}

	it := NewNoAllocBytesIterator(nil)
	cursor, found := scanForPCR(it, buf, r.tsSize, headerOffset, 0)
	if !found {
		return nil, ErrFirstPCRNotFound
	}
	r.cursor = cursor

	if r.format == formatM2TS {
		r.startTime = int64(parseM2TSTimestamp(buf[r.cursor:])) / 1000
		if tailReaderAt != nil {
			r.length = m2tsLength(tailReaderAt, fileSize, r.startTime)
		}
	}
	return r, nil
}

// parseM2TSTimestamp reads the 4-byte big-endian arrival timestamp
// prefixing an M2TS cell.
func parseM2TSTimestamp(cell []byte) uint32 {
	return uint32(cell[0])<<24 | uint32(cell[1])<<16 | uint32(cell[2])<<8 | uint32(cell[3])
}

// m2tsLength reads the final cell of an M2TS file and returns the span, in
// milliseconds, between startTime and that cell's timestamp. If the tail's
// sync byte is missing, it returns 0, matching the observed behavior this
// specification preserves (see SPEC_FULL.md open questions on M2TS units).
func m2tsLength(r io.ReaderAt, fileSize int64, startTimeMS int64) int64 {
	if fileSize < m2tsCellSize {
		return 0
	}
	tailOffset := fileSize - (fileSize % m2tsCellSize) - m2tsCellSize
	tail := make([]byte, m2tsCellSize)
	if _, err := r.ReadAt(tail, tailOffset); err != nil {
		return 0
	}
	if tail[4] != syncByte {
		return 0
	}
	lastTimeMS := int64(parseM2TSTimestamp(tail)) / 1000
	return lastTimeMS - startTimeMS
}
