package tsreplay

import (
	"bytes"

	"github.com/icza/bitio"
)

// Sync byte every TS packet (or M2TS cell, at offset 4) must start with.
const syncByte = 0x47

// tsPacketSize is the fixed size of an MPEG-2 Transport Stream packet.
const tsPacketSize = 188

// m2tsCellSize is the fixed size of an M2TS cell: a 4-byte timestamp prefix
// plus one TS packet.
const m2tsCellSize = 4 + tsPacketSize

// Packet represents a parsed transport stream packet.
// https://en.wikipedia.org/wiki/MPEG_transport_stream
type Packet struct {
	AdaptationField *PacketAdaptationField
	Bytes           []byte // The whole 188-byte packet, sync byte included.
	Header          PacketHeader
}

// PacketHeader represents a packet's 4-byte header.
type PacketHeader struct {
	ContinuityCounter          uint8
	HasAdaptationField         bool
	HasPayload                 bool
	PayloadUnitStartIndicator  bool
	PID                        uint16
	TransportErrorIndicator    bool
	TransportPriority          bool
	TransportScramblingControl uint8
}

// PacketAdaptationField represents a packet's adaptation field, trimmed to
// the fields the replay engine's pacing loop actually consumes: PCR framing
// and the random-access indicator. Splicing, private data and the
// extension field belong to full demuxing and are out of scope here.
type PacketAdaptationField struct {
	DiscontinuityIndicator bool
	HasOPCR                bool
	HasPCR                 bool
	Length                 int
	OPCR                   *ClockReference
	PCR                    *ClockReference
	RandomAccessIndicator  bool
}

// parsePacket parses a single 188-byte TS packet.
func parsePacket(b []byte) (*Packet, error) {
	if len(b) != tsPacketSize {
		return nil, ErrPacketMustStartWithASyncByte
	}
	if b[0] != syncByte {
		return nil, ErrPacketMustStartWithASyncByte
	}

	p := &Packet{Bytes: b}
	p.Header = parsePacketHeader(b)
	if p.Header.HasAdaptationField {
		p.AdaptationField = parsePacketAdaptationField(b[4:])
	}
	return p, nil
}

func parsePacketHeader(b []byte) PacketHeader {
	return PacketHeader{
		TransportErrorIndicator:    b[1]&0x80 > 0,
		PayloadUnitStartIndicator:  b[1]&0x40 > 0,
		TransportPriority:          b[1]&0x20 > 0,
		PID:                        uint16(b[1]&0x1f)<<8 | uint16(b[2]),
		TransportScramblingControl: b[3] >> 6 & 0x3,
		HasAdaptationField:         b[3]&0x20 > 0,
		HasPayload:                 b[3]&0x10 > 0,
		ContinuityCounter:          b[3] & 0xf,
	}
}

// parsePacketAdaptationField parses the adaptation field of a packet. b
// starts at the adaptation field's length byte.
func parsePacketAdaptationField(b []byte) *PacketAdaptationField {
	a := &PacketAdaptationField{Length: int(b[0])}
	if a.Length == 0 {
		return a
	}

	flags := b[1]
	a.DiscontinuityIndicator = flags&0x80 > 0
	a.RandomAccessIndicator = flags&0x40 > 0
	a.HasPCR = flags&0x10 > 0
	a.HasOPCR = flags&0x08 > 0

	offset := 2
	if a.HasPCR && offset+6 <= len(b) {
		a.PCR = parsePCR(b[offset : offset+6])
		offset += 6
	}
	if a.HasOPCR && offset+6 <= len(b) {
		a.OPCR = parsePCR(b[offset : offset+6])
	}
	return a
}

// parsePCR parses a 48-bit Program Clock Reference field: a 33-bit 90 kHz
// base, 6 reserved bits, and a 9-bit 27 MHz extension.
func parsePCR(b []byte) *ClockReference {
	r := bitio.NewReader(bytes.NewReader(b))
	base, _ := r.ReadBits(33)
	r.ReadBits(6) // reserved
	ext, _ := r.ReadBits(9)
	cr := newClockReference(int(base), int(ext))
	return &cr
}

// checkPCR reports whether the 188-byte TS packet b carries a usable PCR:
// the adaptation-field-control bit is set, the adaptation field is
// nonempty, the PCR flag is set and the random-access indicator is clear.
// This mirrors parsePacketAdaptationField's bit layout but avoids
// allocating a Packet for the hot scanning path in the input buffer.
func checkPCR(b []byte) bool {
	return len(b) >= 12 &&
		b[3]&0x20 != 0 &&
		b[4] > 0 &&
		b[5]&0x10 != 0 &&
		b[5]&0x40 == 0
}

// calcPCR extracts the 42-bit PCR value from a TS packet for which
// checkPCR(b) holds, as a raw base*300+extension tick count.
func calcPCR(b []byte) int64 {
	cr := parsePCR(b[6:12])
	return cr.value()
}
