// Package transporttest provides an in-memory netconn.Conn double so the
// handshake and session packages can be driven through spec.md §8's
// end-to-end scenarios (reorder, loss, corruption, fast retransmit)
// without a real socket.
package transporttest

import (
	"sync"
	"time"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "transporttest: read deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// FakeConn is a single-ended in-memory connection: Deliver pushes a raw
// datagram a test wants the code under test to receive; Sent records
// every raw datagram written, for assertions.
type FakeConn struct {
	inbox chan []byte

	mu       sync.Mutex
	deadline time.Time
	Sent     [][]byte
}

// NewFakeConn returns a FakeConn with room for a modest backlog of
// undelivered datagrams — plenty for a unit test's scripted scenario.
func NewFakeConn() *FakeConn {
	return &FakeConn{inbox: make(chan []byte, 64)}
}

// Deliver makes raw available to the next Read call, as if it had just
// arrived on the wire.
func (c *FakeConn) Deliver(raw []byte) {
	cp := append([]byte(nil), raw...)
	c.inbox <- cp
}

func (c *FakeConn) Read(b []byte) (int, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	var after <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			select {
			case msg := <-c.inbox:
				return copy(b, msg), nil
			default:
				return 0, timeoutError{}
			}
		}
		t := time.NewTimer(d)
		defer t.Stop()
		after = t.C
	}

	select {
	case msg := <-c.inbox:
		return copy(b, msg), nil
	case <-after:
		return 0, timeoutError{}
	}
}

func (c *FakeConn) Write(b []byte) (int, error) {
	cp := append([]byte(nil), b...)
	c.mu.Lock()
	c.Sent = append(c.Sent, cp)
	c.mu.Unlock()
	return len(b), nil
}

func (c *FakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

// LastSent returns the most recently written raw datagram, and false if
// nothing has been sent yet.
func (c *FakeConn) LastSent() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return nil, false
	}
	return c.Sent[len(c.Sent)-1], true
}
