package session

import (
	"context"
	"time"

	"github.com/ventosilenzioso/ordudp/internal/diagnostics"
	"github.com/ventosilenzioso/ordudp/internal/netconn"
	"github.com/ventosilenzioso/ordudp/internal/timer"
	"github.com/ventosilenzioso/ordudp/internal/wire"
)

// pollWindow bounds how long one iteration's Read blocks waiting for a
// datagram before falling through to the timer and send steps — the Go
// equivalent of the source's non-blocking recvfrom, which returns
// immediately with EWOULDBLOCK. A short positive deadline lets the
// loop rest briefly on an idle connection (spec.md §4.5: "implementations
// MAY insert a short sleep (<=1ms) to reduce CPU") without a second,
// separate sleep call.
const pollWindow = 500 * time.Microsecond

// ReadApp and WriteApp are the application I/O contract spec.md §1
// describes: a non-blocking read and a sink write, injected at
// construction rather than wired as process-wide globals (spec.md §9).
type ReadApp func(buf []byte) int
type WriteApp func(buf []byte)

// Run drives the session loop described in spec.md §4.5 until ctx is
// canceled, and then returns ctx.Err(). Read and write errors are logged
// and the loop carries on; no connection error ends it. Each iteration performs,
// in order: (a) poll inbound, (b) timer check, (c) try to send new data —
// spec.md §5's fixed ordering.
func Run(ctx context.Context, conn netconn.Conn, st *State, readApp ReadApp, writeApp WriteApp) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pollInbound(conn, st, writeApp)
		checkTimer(conn, st)
		trySend(conn, st, readApp)
	}
}

// pollInbound implements spec.md §4.5(a).
func pollInbound(conn netconn.Conn, st *State, writeApp WriteApp) {
	buf := make([]byte, wire.MaxSegment)
	if err := conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		diagnostics.Warn("set read deadline: %v", err)
	}

	n, err := conn.Read(buf)
	if err != nil {
		if netconn.IsTimeout(err) {
			return
		}
		diagnostics.Warn("recv: %v", err)
		return
	}

	raw := buf[:n]
	if len(raw) < wire.HeaderSize {
		return // drop silently: shorter than header
	}
	if !wire.VerifyParity(raw) {
		return // drop silently: parity-invalid
	}

	seg, err := wire.Decode(raw)
	if err != nil {
		return
	}
	diagnostics.Segment(diagnostics.RECV, seg)

	if seg.HasFlag(wire.FlagACK) {
		applyAck(conn, st, seg.Ack)
	}
	st.PeerWin = seg.Win

	if seg.Length > 0 {
		applyData(conn, st, seg, writeApp)
	}
}

func applyAck(conn netconn.Conn, st *State, ack uint16) {
	switch {
	case ack > st.LastAckSeen:
		st.LastAckSeen = ack
		st.DupAckCount = 0
		st.SendBuf.AckThrough(ack)
	case ack == st.LastAckSeen:
		st.DupAckCount++
		if st.DupAckCount >= timer.DupACKThreshold {
			retransmitOldest(conn, st, diagnostics.DUPS)
			st.DupAckCount = 0
		}
	}
}

func applyData(conn netconn.Conn, st *State, seg *wire.Segment, writeApp WriteApp) {
	switch {
	case seg.Seq == st.RecvNext:
		writeApp(seg.Payload)
		st.RecvNext++
		st.dupGapLatched = false

		for {
			buffered, ok := st.RecvBuf.Take(st.RecvNext)
			if !ok {
				break
			}
			writeApp(buffered.Payload)
			st.RecvNext++
		}

		sendPureAck(conn, st)

	case seg.Seq > st.RecvNext:
		st.RecvBuf.Store(*seg)
		if !st.dupGapLatched {
			sendPureAck(conn, st)
			st.dupGapLatched = true
		}

		// seg.Seq < st.RecvNext: already delivered, ignore silently.
	}
}

// sendPureAck emits a zero-seq, zero-length, ACK-flagged segment — used
// both for the cumulative ACK on in-order arrival and the duplicate-gap
// ACK on reorder (spec.md §4.5(a), §8 "Zero-byte payload with ACK flag").
func sendPureAck(conn netconn.Conn, st *State) {
	ack := &wire.Segment{
		Seq:   0,
		Ack:   st.RecvNext,
		Win:   st.PeerWin,
		Flags: wire.FlagACK,
	}
	raw := wire.Encode(ack)
	if _, err := conn.Write(raw); err != nil {
		diagnostics.Warn("send ack: %v", err)
		return
	}
	diagnostics.Segment(diagnostics.SEND, ack)
}

// checkTimer implements spec.md §4.5(b): only the head of the send
// buffer is examined per iteration.
func checkTimer(conn netconn.Conn, st *State) {
	if st.SendBuf.Empty() {
		return
	}
	seq, entry, ok := st.SendBuf.Oldest()
	if !ok || !timer.Expired(entry.LastSentAt) {
		return
	}
	retransmit(conn, st, seq, entry.Segment, diagnostics.RTOS)
}

func retransmitOldest(conn netconn.Conn, st *State, tag diagnostics.Tag) {
	seq, entry, ok := st.SendBuf.Oldest()
	if !ok {
		return
	}
	retransmit(conn, st, seq, entry.Segment, tag)
}

// retransmit resends seg unchanged — spec.md §4.6: "retransmitted
// segments carry the same header they originally bore; parity is
// idempotent under identical content".
func retransmit(conn netconn.Conn, st *State, seq uint16, seg wire.Segment, tag diagnostics.Tag) {
	raw := wire.Encode(&seg)
	if _, err := conn.Write(raw); err != nil {
		diagnostics.Warn("retransmit: %v", err)
		return
	}
	diagnostics.Segment(tag, &seg)
	st.SendBuf.RefreshTimestamp(seq)
}

// trySend implements spec.md §4.5(c).
func trySend(conn netconn.Conn, st *State, readApp ReadApp) {
	maxInFlight := int(st.PeerWin) / wire.MaxPayload
	if st.SendBuf.Len() >= maxInFlight {
		return
	}

	buf := make([]byte, wire.MaxPayload)
	n := readApp(buf)
	if n <= 0 {
		return
	}

	seg := &wire.Segment{
		Seq:     st.SendNext,
		Ack:     st.RecvNext,
		Length:  uint16(n),
		Win:     st.PeerWin,
		Flags:   0,
		Payload: buf[:n],
	}
	raw := wire.Encode(seg)
	st.SendBuf.Insert(*seg)

	if _, err := conn.Write(raw); err != nil {
		diagnostics.Warn("send: %v", err)
	}
	diagnostics.Segment(diagnostics.SEND, seg)
	st.SendNext++
}
