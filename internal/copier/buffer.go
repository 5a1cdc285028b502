package copier

import "fmt"

// SizeFunc returns the number of bytes one motion item occupies in a
// message.
type SizeFunc func(m MotionItem) int

// Slot locates one motion item inside a send or receive buffer.
type Slot struct {
	// Item is the arena id of the motion item, see Copier.Item.
	Item   int
	Peer   int
	Offset int
	Length int
}

// PeerSpan is the contiguous part of a buffer exchanged with one peer rank.
type PeerSpan struct {
	Peer   int
	Offset int
	Length int
}

// Buffer holds the packed bytes of one transfer. Slots for one peer are
// contiguous and follow the copier's item order, so a peer's span goes out as
// a single message.
//
// A Buffer is prepared for a payload key and component count; Prepare only
// recomputes sizes and reallocates when either changes or the copier was
// transformed since.
type Buffer struct {
	owner    *Copier
	gen      uint64
	key      string
	ncomp    int
	prepared bool

	send, recv           []byte
	sendSlots, recvSlots []Slot
	sendPeers, recvPeers []PeerSpan
}

// AcquireBuffer hands out a buffer for exclusive use by one transfer. Several
// transfers over the same copier may run at once, each with its own buffer.
func (c *Copier) AcquireBuffer() *Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.pool); n > 0 {
		b := c.pool[n-1]
		c.pool = c.pool[:n-1]
		return b
	}
	return &Buffer{owner: c, gen: c.gen}
}

// ReleaseBuffer returns b to the copier's pool. Buffers prepared before the
// copier was last transformed are dropped.
func (c *Copier) ReleaseBuffer(b *Buffer) {
	if b.owner != c {
		panic(fmt.Errorf("%w: %p", ErrForeignBuffer, b))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.gen == c.gen {
		c.pool = append(c.pool, b)
	}
}

// Prepare sizes the buffer for the copier's current items. It reports whether
// the slot tables were recomputed.
func (b *Buffer) Prepare(key string, ncomp int, sendSize, recvSize SizeFunc) bool {
	c := b.owner
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	if b.prepared && b.gen == gen && b.key == key && b.ncomp == ncomp {
		return false
	}

	b.sendSlots, b.sendPeers, b.send = layoutSlots(c.Outgoing(), sendSize,
		func(m MotionItem) int { return m.ToProc }, b.sendSlots[:0], b.sendPeers[:0], b.send)
	b.recvSlots, b.recvPeers, b.recv = layoutSlots(c.Incoming(), recvSize,
		func(m MotionItem) int { return m.FromProc }, b.recvSlots[:0], b.recvPeers[:0], b.recv)

	b.gen, b.key, b.ncomp, b.prepared = gen, key, ncomp, true
	return true
}

func layoutSlots(v View, size SizeFunc, peer func(MotionItem) int, slots []Slot, spans []PeerSpan, data []byte) ([]Slot, []PeerSpan, []byte) {
	off := 0
	for i, m := range v.All() {
		n := size(m)
		p := peer(m)
		if len(spans) == 0 || spans[len(spans)-1].Peer != p {
			spans = append(spans, PeerSpan{Peer: p, Offset: off})
		}
		spans[len(spans)-1].Length += n
		slots = append(slots, Slot{Item: v.ID(i), Peer: p, Offset: off, Length: n})
		off += n
	}
	if cap(data) < off {
		data = make([]byte, off)
	}
	return slots, spans, data[:off]
}

func (b *Buffer) mustBePrepared() {
	if !b.prepared {
		panic(ErrNotPrepared)
	}
}

// Key and NComp return what the buffer was last prepared for.
func (b *Buffer) Key() string { return b.key }
func (b *Buffer) NComp() int  { return b.ncomp }

// IsPrepared reports whether Prepare has run.
func (b *Buffer) IsPrepared() bool { return b.prepared }

// SendSlots returns the outgoing slots in item order.
func (b *Buffer) SendSlots() []Slot { b.mustBePrepared(); return b.sendSlots }

// RecvSlots returns the incoming slots in item order.
func (b *Buffer) RecvSlots() []Slot { b.mustBePrepared(); return b.recvSlots }

// SendPeers returns one span per destination rank, in rank order.
func (b *Buffer) SendPeers() []PeerSpan { b.mustBePrepared(); return b.sendPeers }

// RecvPeers returns one span per source rank, in rank order.
func (b *Buffer) RecvPeers() []PeerSpan { b.mustBePrepared(); return b.recvPeers }

// Send returns the bytes of an outgoing slot.
func (b *Buffer) Send(s Slot) []byte { return b.send[s.Offset : s.Offset+s.Length] }

// Recv returns the bytes of an incoming slot.
func (b *Buffer) Recv(s Slot) []byte { return b.recv[s.Offset : s.Offset+s.Length] }

// SendSpan returns the bytes for one destination rank.
func (b *Buffer) SendSpan(p PeerSpan) []byte { return b.send[p.Offset : p.Offset+p.Length] }

// RecvSpan returns the bytes expected from one source rank.
func (b *Buffer) RecvSpan(p PeerSpan) []byte { return b.recv[p.Offset : p.Offset+p.Length] }

// SendBytes and RecvBytes are the buffers' total sizes.
func (b *Buffer) SendBytes() int { return len(b.send) }
func (b *Buffer) RecvBytes() int { return len(b.recv) }
