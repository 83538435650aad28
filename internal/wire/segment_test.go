package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Segment{
		{Seq: 102, Ack: 0, Length: 3, Win: 1012, Flags: 0, Payload: []byte("abc")},
		{Seq: 0, Ack: 104, Length: 0, Win: 1012, Flags: FlagACK, Payload: nil},
		{Seq: 1, Ack: 0, Length: 0, Win: 1012, Flags: FlagSYN, Payload: nil},
	}

	for _, want := range cases {
		raw := Encode(want)
		got, err := Decode(raw)
		require.NoError(t, err)

		if diff := cmp.Diff(want.Seq, got.Seq); diff != "" {
			t.Errorf("seq mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want.Ack, got.Ack); diff != "" {
			t.Errorf("ack mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want.Length, got.Length); diff != "" {
			t.Errorf("length mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want.Win, got.Win); diff != "" {
			t.Errorf("win mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want.Flags, got.Flags); diff != "" {
			t.Errorf("flags mismatch (-want +got):\n%s", diff)
		}
		require.True(t, VerifyParity(raw), "encoded segment must be parity-valid")
	}
}

func TestVerifyParityDetectsCorruption(t *testing.T) {
	s := &Segment{Seq: 102, Length: 3, Win: 1012, Payload: []byte("abc")}
	raw := Encode(s)
	require.True(t, VerifyParity(raw))

	raw[0] ^= 0x01 // flip a header bit in transit
	require.False(t, VerifyParity(raw))
}

func TestDecodeShortSegmentDropped(t *testing.T) {
	_, err := Decode(make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, ErrShortSegment)
}

func TestFlagList(t *testing.T) {
	s := &Segment{}
	require.Equal(t, "NONE", s.FlagList())

	s.Flags = FlagSYN | FlagACK | FlagParity
	require.Equal(t, "SYN ACK PARITY", s.FlagList())
}

func TestParityClampAtMaxPayload(t *testing.T) {
	// A declared length beyond MaxPayload must not panic and must clamp
	// the span used for parity computation to MaxPayload bytes.
	// One extra byte past the clamp has a bit set: it must not count.
	raw := make([]byte, HeaderSize+MaxPayload+1)
	raw[HeaderSize+MaxPayload] = 0x01
	s := &Segment{Length: 2000, Win: 1012}
	putHeader(raw, s)
	if bitParity(raw[:HeaderSize+MaxPayload]) == 1 {
		raw[9] ^= byte(FlagParity) // PARITY is bit 2 of the flags' low byte
	}
	require.True(t, VerifyParity(raw))
}
