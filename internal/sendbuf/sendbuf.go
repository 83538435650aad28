// Package sendbuf is the keyed store of unacknowledged segments described
// in spec.md §4.3, grounded on transport.cpp's send_buf (an
// unordered_map<seq, SendPacketEntry>) and the teacher's
// Session.RecoveryQueue/PendingACK maps.
package sendbuf

import (
	"time"

	"github.com/ventosilenzioso/ordudp/internal/timer"
	"github.com/ventosilenzioso/ordudp/internal/wire"
)

// Entry is one unacknowledged segment and the monotonic time it was last
// transmitted (original send, or most recent retransmit).
type Entry struct {
	Segment    wire.Segment
	LastSentAt time.Duration
}

// Buffer is a keyed collection of unacknowledged segments, indexed by
// sequence number. Every entry's key is >= the last acknowledged value by
// construction (ack_through removes everything below a new cumulative ACK).
type Buffer struct {
	entries map[uint16]*Entry
	order   []uint16 // insertion order, for a deterministic oldest()
}

// New returns an empty send buffer.
func New() *Buffer {
	return &Buffer{entries: make(map[uint16]*Entry)}
}

// Insert records seg under its own Seq, stamped with the current
// monotonic time.
func (b *Buffer) Insert(seg wire.Segment) {
	seq := seg.Seq
	if _, exists := b.entries[seq]; !exists {
		b.order = append(b.order, seq)
	}
	b.entries[seq] = &Entry{Segment: seg, LastSentAt: timer.Now()}
}

// AckThrough removes every entry whose key is strictly less than ack.
// Cumulative: it never re-inserts anything above ack.
func (b *Buffer) AckThrough(ack uint16) {
	kept := b.order[:0]
	for _, seq := range b.order {
		if seq < ack {
			delete(b.entries, seq)
			continue
		}
		kept = append(kept, seq)
	}
	b.order = kept
}

// Oldest returns the entry with the smallest sequence key, and true if
// the buffer is non-empty. Keys are unique, so the ordering tiebreak
// never arises.
func (b *Buffer) Oldest() (seq uint16, entry Entry, ok bool) {
	if len(b.order) == 0 {
		return 0, Entry{}, false
	}
	min := b.order[0]
	for _, s := range b.order[1:] {
		if s < min {
			min = s
		}
	}
	return min, *b.entries[min], true
}

// RefreshTimestamp updates the stored send time for seq after a
// retransmit, resetting its RTO clock.
func (b *Buffer) RefreshTimestamp(seq uint16) {
	if e, ok := b.entries[seq]; ok {
		e.LastSentAt = timer.Now()
	}
}

// Len reports the number of unacknowledged segments currently buffered.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Empty reports whether the buffer holds no unacknowledged segments.
func (b *Buffer) Empty() bool {
	return len(b.entries) == 0
}

// Keys returns the current set of buffered sequence numbers, for
// invariant checks in tests.
func (b *Buffer) Keys() []uint16 {
	out := make([]uint16, len(b.order))
	copy(out, b.order)
	return out
}
