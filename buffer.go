package tsreplay

import (
	"io"
	"os"
	"sync/atomic"
)

// defaultBufferSize is the default size of the input window, matching the
// configuration default of 2 MiB.
const defaultBufferSize = 2 * 1024 * 1024

// inputBuffer is a file-backed byte window over a TS or M2TS file. It is
// refilled via positioned reads as the pacing loop's cursor advances past
// the last locatable PCR, never by a streaming io.Reader — this lets the
// producer reopen and reposition the file independently of how far the
// event loop has drained the ring.
type inputBuffer struct {
	file         *os.File
	fileSize     int64
	tsSize       int
	headerOffset int // 0 for TS, 4 for M2TS: where the TS header starts within one cell

	buf      []byte
	cursor   int   // offset of the next packet within buf
	end      int   // valid length of buf
	fileSkip int64 // file offset of buf[0], owned by the producer

	// fileSkipAtomic mirrors fileSkip for the resume-offset persistence
	// goroutine, which reads it without synchronizing with the producer
	// beyond this atomic load — acceptable since exact freshness isn't
	// required for a periodic checkpoint.
	fileSkipAtomic atomic.Int64

	it *NoAllocBytesIterator
}

func newInputBuffer(file *os.File, fileSize int64, tsSize int, size int) *inputBuffer {
	headerOffset := 0
	if tsSize == m2tsCellSize {
		headerOffset = 4
	}
	return &inputBuffer{
		file:         file,
		fileSize:     fileSize,
		tsSize:       tsSize,
		headerOffset: headerOffset,
		buf:          make([]byte, size),
		it:           NewNoAllocBytesIterator(nil),
	}
}

// refill reads up to len(b.buf) bytes from the file at b.fileSkip and
// resets the cursor to the start of the window. It reports eof when fewer
// bytes were available than requested.
func (b *inputBuffer) refill() (eof bool, err error) {
	n, err := b.file.ReadAt(b.buf, b.fileSkip)
	if err != nil && err != io.EOF {
		return false, err
	}
	b.end = n
	b.cursor = 0
	return n < len(b.buf), nil
}

// rewind discards everything read so far and restarts the window at file
// offset fileSkip, used by loop restarts and explicit repositions.
func (b *inputBuffer) rewind(fileSkip int64) {
	b.fileSkip = fileSkip
	b.fileSkipAtomic.Store(fileSkip)
	b.cursor = 0
	b.end = 0
}

// advance moves fileSkip past everything consumed so far and drops the
// stale window, ready for the next refill.
func (b *inputBuffer) advance() {
	b.fileSkip += int64(b.cursor)
	b.fileSkipAtomic.Store(b.fileSkip)
	b.cursor = 0
	b.end = 0
}

// header returns the tsPacketSize-byte TS header+adaptation-field view of
// the cell starting at off, or nil if it doesn't fully fit in the window.
func (b *inputBuffer) header(off int) []byte {
	start := off + b.headerOffset
	end := start + tsPacketSize
	if off < 0 || end > b.end {
		return nil
	}
	return b.buf[start:end]
}

// payload returns the 188-byte TS cell to push downstream for the packet
// at off: the whole cell for TS, or the bytes past the timestamp prefix
// for M2TS.
func (b *inputBuffer) payload(off int) []byte {
	return b.header(off)
}

// findBlockEnd scans forward in tsSize strides from start (exclusive) for
// the next packet whose header satisfies checkPCR. It returns the offset
// and true if found within the current window, or false if the scan ran
// off the end of the buffer and a refill is needed.
func (b *inputBuffer) findBlockEnd(start int) (int, bool) {
	return scanForPCR(b.it, b.buf[:b.end], b.tsSize, b.headerOffset, start+b.tsSize)
}

// pcrAt returns the raw PCR tick count of the packet at off. Callers must
// have already confirmed checkPCR(b.header(off)) holds.
func (b *inputBuffer) pcrAt(off int) int64 {
	return calcPCR(b.header(off))
}

// timestampMS returns the M2TS arrival timestamp of the cell at off,
// divided by 1000 per the observed (and preserved) convention. Returns 0
// for plain TS input, which carries no such prefix.
func (b *inputBuffer) timestampMS(off int) int64 {
	if b.headerOffset == 0 {
		return 0
	}
	return int64(parseM2TSTimestamp(b.buf[off:off+4])) / 1000
}
