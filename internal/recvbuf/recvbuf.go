// Package recvbuf is the store of out-of-order segments described in
// spec.md §4.4, grounded on transport.cpp's recv_buf (a map<seq, packet>),
// with delivery draining on gap-fill. Entries are held in a Go map keyed
// by sequence number, so the buffer keeps no key order of its own (Keys
// returns them in no particular order); in-order delivery comes from the
// caller taking successive sequence numbers.
package recvbuf

import "github.com/ventosilenzioso/ordudp/internal/wire"

// Buffer holds segments received with Seq > recvNext, the receiver's
// next-expected cumulative-ACK point. Every entry's key is strictly
// greater than recvNext by construction.
type Buffer struct {
	entries map[uint16]wire.Segment
}

// New returns an empty receive buffer.
func New() *Buffer {
	return &Buffer{entries: make(map[uint16]wire.Segment)}
}

// Store buffers an out-of-order segment under its sequence number.
func (b *Buffer) Store(seg wire.Segment) {
	b.entries[seg.Seq] = seg
}

// Has reports whether a segment with the given sequence is buffered.
func (b *Buffer) Has(seq uint16) bool {
	_, ok := b.entries[seq]
	return ok
}

// Take removes and returns the segment stored at seq, if any.
func (b *Buffer) Take(seq uint16) (wire.Segment, bool) {
	seg, ok := b.entries[seq]
	if ok {
		delete(b.entries, seq)
	}
	return seg, ok
}

// Len reports the number of currently buffered out-of-order segments.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Keys returns the current set of buffered sequence numbers, for
// invariant checks in tests.
func (b *Buffer) Keys() []uint16 {
	out := make([]uint16, 0, len(b.entries))
	for k := range b.entries {
		out = append(out, k)
	}
	return out
}
