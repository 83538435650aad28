// Package wire implements the fixed 12-byte segment header and parity
// check shared by every datagram this transport sends or receives.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// HeaderSize is the fixed on-wire header length in bytes.
	HeaderSize = 12
	// MaxPayload is the largest legal payload (MSS).
	MaxPayload = 1012
	// MaxSegment is the largest legal datagram, header included.
	MaxSegment = HeaderSize + MaxPayload
)

// Flag bits, per spec: bit 0 SYN, bit 1 ACK, bit 2 PARITY, rest reserved.
const (
	FlagSYN    uint16 = 1 << 0
	FlagACK    uint16 = 1 << 1
	FlagParity uint16 = 1 << 2
)

// Segment is the decoded form of one datagram: fixed header plus payload.
type Segment struct {
	Seq     uint16
	Ack     uint16
	Length  uint16
	Win     uint16
	Flags   uint16
	Unused  uint16
	Payload []byte
}

// ErrShortSegment is returned when a received datagram is too small to
// contain a header at all; the caller must drop it silently per spec.
var ErrShortSegment = errors.New("wire: segment shorter than header")

// parityLen clamps the payload span used for parity computation at
// MaxPayload, the defensive clamp spec.md §4.1 calls for.
func parityLen(length uint16) int {
	if int(length) > MaxPayload {
		return MaxPayload
	}
	return int(length)
}

// bitParity returns 1 if the XOR of every bit in b is 1, else 0.
func bitParity(b []byte) uint16 {
	var acc byte
	for _, c := range b {
		acc ^= c
	}
	acc ^= acc >> 4
	acc ^= acc >> 2
	acc ^= acc >> 1
	return uint16(acc & 1)
}

// Encode serializes s into a scratch buffer, computing and setting (or
// clearing) the PARITY flag bit over the pre-parity segment.
func Encode(s *Segment) []byte {
	n := parityLen(s.Length)
	buf := make([]byte, HeaderSize+n)

	s.Flags &^= FlagParity
	putHeader(buf, s)
	copy(buf[HeaderSize:], s.Payload[:n])

	if bitParity(buf) == 1 {
		s.Flags |= FlagParity
		binary.BigEndian.PutUint16(buf[8:10], s.Flags)
	}

	return buf
}

func putHeader(buf []byte, s *Segment) {
	binary.BigEndian.PutUint16(buf[0:2], s.Seq)
	binary.BigEndian.PutUint16(buf[2:4], s.Ack)
	binary.BigEndian.PutUint16(buf[4:6], s.Length)
	binary.BigEndian.PutUint16(buf[6:8], s.Win)
	binary.BigEndian.PutUint16(buf[8:10], s.Flags)
	binary.BigEndian.PutUint16(buf[10:12], s.Unused)
}

// Decode parses a received datagram into a Segment. It does not validate
// parity; call VerifyParity on the same raw bytes first.
func Decode(raw []byte) (*Segment, error) {
	if len(raw) < HeaderSize {
		return nil, ErrShortSegment
	}

	s := &Segment{
		Seq:    binary.BigEndian.Uint16(raw[0:2]),
		Ack:    binary.BigEndian.Uint16(raw[2:4]),
		Length: binary.BigEndian.Uint16(raw[4:6]),
		Win:    binary.BigEndian.Uint16(raw[6:8]),
		Flags:  binary.BigEndian.Uint16(raw[8:10]),
		Unused: binary.BigEndian.Uint16(raw[10:12]),
	}

	n := parityLen(s.Length)
	if HeaderSize+n > len(raw) {
		n = len(raw) - HeaderSize
		if n < 0 {
			n = 0
		}
	}
	s.Payload = append([]byte(nil), raw[HeaderSize:HeaderSize+n]...)

	return s, nil
}

// VerifyParity re-computes the XOR over the received segment, PARITY bit
// included, and reports whether the segment is parity-valid (total XOR 0).
func VerifyParity(raw []byte) bool {
	if len(raw) < HeaderSize {
		return false
	}
	length := binary.BigEndian.Uint16(raw[4:6])
	n := parityLen(length)
	if HeaderSize+n > len(raw) {
		n = len(raw) - HeaderSize
	}
	return bitParity(raw[:HeaderSize+n]) == 0
}

// HasFlag reports whether all bits in flag are set in s.Flags.
func (s *Segment) HasFlag(flag uint16) bool {
	return s.Flags&flag == flag
}

// FlagList renders the flag bits in the diagnostic format spec.md §6
// requires: space-separated SYN/ACK/PARITY, or NONE when all are clear.
func (s *Segment) FlagList() string {
	var names []string
	if s.HasFlag(FlagSYN) {
		names = append(names, "SYN")
	}
	if s.HasFlag(FlagACK) {
		names = append(names, "ACK")
	}
	if s.HasFlag(FlagParity) {
		names = append(names, "PARITY")
	}
	if len(names) == 0 {
		return "NONE"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += " " + n
	}
	return out
}
