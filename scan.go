package tsreplay

// scanForPCR walks buf in tsSize-byte strides starting at offset start,
// looking for the first cell whose TS header (headerOffset bytes into the
// cell) satisfies checkPCR. It shares one NoAllocBytesIterator across
// calls via it, avoiding a per-call allocation on the pacing loop's hot
// path. It returns the matching cell's offset and true, or false if the
// scan reached the end of buf without a match.
func scanForPCR(it *NoAllocBytesIterator, buf []byte, tsSize, headerOffset, start int) (int, bool) {
	it.Reset(buf)
	it.Seek(start)
	for it.HasBytesLeft() {
		off := it.Offset()
		cell, err := it.NextBytesNoCopy(tsSize)
		if err != nil {
			return 0, false
		}
		if checkPCR(cell[headerOffset:]) {
			return off, true
		}
	}
	return 0, false
}
