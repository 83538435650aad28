package ioapp

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadAppReturnsZeroWhenNothingAvailable(t *testing.T) {
	app := FromReaderWriter(strings.NewReader(""), nil)
	buf := make([]byte, 16)
	require.Equal(t, 0, app.ReadApp(buf))
}

func TestReadAppDrainsAvailableBytesWithoutBlocking(t *testing.T) {
	app := FromReaderWriter(strings.NewReader("abcde"), nil)

	var got []byte
	deadline := time.Now().Add(time.Second)
	for len(got) < 5 && time.Now().Before(deadline) {
		buf := make([]byte, 16)
		n := app.ReadApp(buf)
		got = append(got, buf[:n]...)
	}

	require.Equal(t, []byte("abcde"), got)
}

func TestReadAppSplitsAcrossSmallBuffers(t *testing.T) {
	app := FromReaderWriter(strings.NewReader("abcde"), nil)

	var got []byte
	deadline := time.Now().Add(time.Second)
	for len(got) < 5 && time.Now().Before(deadline) {
		buf := make([]byte, 2)
		n := app.ReadApp(buf)
		got = append(got, buf[:n]...)
	}

	require.Equal(t, []byte("abcde"), got)
}

func TestWriteAppDeliversInOrder(t *testing.T) {
	var out bytes.Buffer
	app := FromReaderWriter(nil, &out)

	app.WriteApp([]byte("abc"))
	app.WriteApp([]byte("de"))

	require.Equal(t, "abcde", out.String())
}
