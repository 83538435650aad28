// Package netconn adapts a bound *net.UDPConn and a fixed peer address
// into the minimal Conn interface the handshake and session packages
// need — the same shape a test double can implement in-memory, so the
// engine never has to know whether it is talking to a real socket or a
// loopback pipe.
package netconn

import (
	"errors"
	"net"
	"time"
)

// Conn is the blocking/non-blocking duplex byte-datagram interface the
// handshake and session loop depend on. A blocking handshake read/write
// uses it directly; the non-blocking data-phase loop calls
// SetReadDeadline before each Read, the idiomatic Go equivalent of the
// source's fcntl(O_NONBLOCK) socket switch (spec.md §4.2, §5).
type Conn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
}

// udpConn binds a *net.UDPConn to one fixed peer address, mirroring the
// single-session, single-peer model spec.md §1 and §5 describe.
type udpConn struct {
	pc   *net.UDPConn
	peer *net.UDPAddr
}

// NewUDP wraps pc, directing every Write at peer and accepting reads from
// any source (a session never has more than one peer in practice; this
// transport does not implement multi-session demultiplexing, per
// spec.md's Non-goals).
func NewUDP(pc *net.UDPConn, peer *net.UDPAddr) Conn {
	return &udpConn{pc: pc, peer: peer}
}

func (c *udpConn) Read(b []byte) (int, error) {
	n, _, err := c.pc.ReadFromUDP(b)
	return n, err
}

func (c *udpConn) Write(b []byte) (int, error) {
	return c.pc.WriteToUDP(b, c.peer)
}

func (c *udpConn) SetReadDeadline(t time.Time) error {
	return c.pc.SetReadDeadline(t)
}

// IsTimeout reports whether err is a read-deadline timeout — the signal
// the data-phase loop treats as "no datagram available right now"
// (spec.md §4.5(a), §7's "recvfrom would-block" row).
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
