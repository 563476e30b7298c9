package tsreplay

import "sync"

// packetPool reuses 188-byte packet buffers across Consumer Bridge pops:
// one buffer per Next() call instead of a fresh allocation.
var packetPool = &packetPooler{
	sp: sync.Pool{
		New: func() interface{} {
			return &packetPoolItem{s: make([]byte, tsPacketSize)}
		},
	},
}

// packetPoolItem holds a single reusable packet-sized buffer.
type packetPoolItem struct {
	s []byte
}

// packetPooler is a pool of tsPacketSize-length byte slices used only by
// the Consumer Bridge's pop-and-forward loop; don't use it elsewhere to
// avoid pool pollution from differently-sized buffers.
type packetPooler struct {
	sp sync.Pool
}

// get returns a packetPoolItem whose slice is exactly tsPacketSize bytes.
func (pp *packetPooler) get() *packetPoolItem {
	item := pp.sp.Get().(*packetPoolItem)
	if cap(item.s) < tsPacketSize {
		item.s = make([]byte, tsPacketSize)
	}
	item.s = item.s[:tsPacketSize]
	return item
}

// put returns item to the pool. Don't use item after calling put.
func (pp *packetPooler) put(item *packetPoolItem) {
	pp.sp.Put(item)
}
