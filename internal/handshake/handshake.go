// Package handshake implements the three-way SYN / SYN-ACK / ACK exchange
// described in spec.md §4.2, with payload piggybacking, grounded directly
// on original_source/project/{client,server}.cpp's step-by-step sequence.
package handshake

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/ventosilenzioso/ordudp/internal/diagnostics"
	"github.com/ventosilenzioso/ordudp/internal/netconn"
	"github.com/ventosilenzioso/ordudp/internal/randseed"
	"github.com/ventosilenzioso/ordudp/internal/session"
	"github.com/ventosilenzioso/ordudp/internal/wire"
)

// MinWindow is the window advertised during the handshake and used as
// the session's starting peer window — consts.h's MIN_WINDOW, one MSS
// by default. internal/config may override it from the --window flag
// before the handshake runs.
var MinWindow uint16 = wire.MaxPayload

// ErrUnexpectedFlags is returned when a handshake segment doesn't carry
// the flags this step requires (spec.md §4.2, §7: fatal, non-zero exit).
var ErrUnexpectedFlags = errors.New("handshake: unexpected flags on handshake segment")

func sendSegment(conn netconn.Conn, seg *wire.Segment) error {
	raw := wire.Encode(seg)
	diagnostics.Segment(diagnostics.SEND, seg)
	_, err := conn.Write(raw)
	return errors.Wrap(err, "handshake: send")
}

func recvSegment(conn netconn.Conn) (*wire.Segment, error) {
	buf := make([]byte, wire.MaxSegment)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, errors.Wrap(err, "handshake: receive")
	}
	if !wire.VerifyParity(buf[:n]) {
		return nil, errors.New("handshake: parity-invalid segment")
	}
	seg, err := wire.Decode(buf[:n])
	if err != nil {
		return nil, errors.Wrap(err, "handshake: decode")
	}
	diagnostics.Segment(diagnostics.RECV, seg)
	return seg, nil
}

// ReadApp is the non-blocking application read the handshake may
// piggyback onto a SYN/SYN-ACK/ACK segment. WriteApp delivers any
// payload the peer piggybacks, in the same order it arrived.
type ReadApp func(buf []byte) int
type WriteApp func(buf []byte)

// Initiate runs the initiator's half of the three-way handshake
// (spec.md §4.2 "Initiator"): S0 -> S1 -> Established.
func Initiate(conn netconn.Conn, rng *rand.Rand, readApp ReadApp, writeApp WriteApp) (*session.State, error) {
	clientSeq := randseed.InitialSeq(rng)

	payload := make([]byte, wire.MaxPayload)
	n := readApp(payload)

	syn := &wire.Segment{
		Seq:     clientSeq,
		Ack:     0,
		Length:  uint16(n),
		Win:     MinWindow,
		Flags:   wire.FlagSYN,
		Payload: payload[:n],
	}
	if err := sendSegment(conn, syn); err != nil {
		return nil, err
	}

	synAck, err := recvSegment(conn)
	if err != nil {
		return nil, err
	}
	if !synAck.HasFlag(wire.FlagSYN) || !synAck.HasFlag(wire.FlagACK) {
		return nil, errors.Wrap(ErrUnexpectedFlags, "expected SYN-ACK")
	}
	if synAck.Length > 0 {
		writeApp(synAck.Payload)
	}

	serverSeq := synAck.Seq

	finalPayload := make([]byte, wire.MaxPayload)
	n = readApp(finalPayload)

	final := &wire.Segment{
		Seq:     clientSeq + 1,
		Ack:     serverSeq + 1,
		Length:  uint16(n),
		Win:     MinWindow,
		Flags:   wire.FlagACK,
		Payload: finalPayload[:n],
	}
	if err := sendSegment(conn, final); err != nil {
		return nil, err
	}

	// spec.md §9: seq_num starts at client_seq+2 on the initiator — the
	// SYN and the final ACK both consume a sequence slot.
	st := session.New(session.RoleInitiator, clientSeq+2, serverSeq+1, MinWindow)
	return st, nil
}

// Respond runs the responder's half of the three-way handshake
// (spec.md §4.2 "Responder"). firstSYN is the datagram the caller has
// already blocking-read to learn the peer's address (spec.md §5: "the
// initial recvfrom that the responder uses to learn the client's address
// before handshake").
//
// The responder does not block for a final ACK before entering the data
// phase: the first post-handshake segment from the initiator serves
// that role, so Respond returns as soon as its own SYN-ACK is sent.
func Respond(conn netconn.Conn, firstSYN []byte, rng *rand.Rand, readApp ReadApp, writeApp WriteApp) (*session.State, error) {
	if !wire.VerifyParity(firstSYN) {
		return nil, errors.New("handshake: parity-invalid SYN")
	}
	syn, err := wire.Decode(firstSYN)
	if err != nil {
		return nil, errors.Wrap(err, "handshake: decode SYN")
	}
	diagnostics.Segment(diagnostics.RECV, syn)

	if !syn.HasFlag(wire.FlagSYN) {
		return nil, errors.Wrap(ErrUnexpectedFlags, "expected SYN")
	}
	if syn.Length > 0 {
		writeApp(syn.Payload)
	}

	clientSeq := syn.Seq
	serverSeq := randseed.InitialSeq(rng)

	payload := make([]byte, wire.MaxPayload)
	n := readApp(payload)

	synAck := &wire.Segment{
		Seq:     serverSeq,
		Ack:     clientSeq + 1,
		Length:  uint16(n),
		Win:     MinWindow,
		Flags:   wire.FlagSYN | wire.FlagACK,
		Payload: payload[:n],
	}
	if err := sendSegment(conn, synAck); err != nil {
		return nil, err
	}

	// spec.md §9: seq_num starts at server_seq+1 on the responder — only
	// the SYN-ACK consumes a sequence slot before the data phase.
	st := session.New(session.RoleResponder, serverSeq+1, clientSeq+1, MinWindow)
	return st, nil
}
