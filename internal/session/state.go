// Package session implements the post-handshake cooperative loop:
// receiver path, sender path, and timer/recovery, integrated under a
// single scheduler per spec.md §4.5.
package session

import (
	"github.com/ventosilenzioso/ordudp/internal/recvbuf"
	"github.com/ventosilenzioso/ordudp/internal/sendbuf"
)

// Role identifies which side of the handshake a session completed as.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// State is the per-endpoint session state spec.md §3 describes. It is
// created by handshake completion, mutated only by the session loop, and
// has no teardown — it lives until the process exits.
type State struct {
	Role Role

	// SendNext is the next sequence index this endpoint will assign to
	// a new data segment.
	SendNext uint16
	// RecvNext is the next sequence index expected from the peer — the
	// cumulative ACK point.
	RecvNext uint16
	// PeerWin is the most recently advertised peer receive window, in
	// bytes.
	PeerWin uint16

	SendBuf *sendbuf.Buffer
	RecvBuf *recvbuf.Buffer

	// LastAckSeen is the highest ack field observed from the peer.
	LastAckSeen uint16
	// DupAckCount is the number of consecutive ACKs equal to
	// LastAckSeen.
	DupAckCount int

	// dupGapLatched is set once a duplicate-gap ACK has been sent for
	// the current reorder gap, and cleared when the gap closes — this
	// is the one-pending-gap latch spec.md §4.5 and §9 call for,
	// grounded on transport.cpp's dup_ack_sent bool.
	dupGapLatched bool
}

// New builds a fresh session state as of handshake completion.
func New(role Role, sendNext, recvNext, peerWin uint16) *State {
	return &State{
		Role:        role,
		SendNext:    sendNext,
		RecvNext:    recvNext,
		PeerWin:     peerWin,
		SendBuf:     sendbuf.New(),
		RecvBuf:     recvbuf.New(),
		LastAckSeen: recvNext,
	}
}
