// Package ioapp defines the application I/O contract spec.md §1 and §6
// describe as an external collaborator — two opaque callbacks the
// transport core invokes without caring what they wrap — and provides one
// concrete adapter, backed by the process's stdin/stdout, for the CLI
// binaries to inject.
package ioapp

import (
	"bufio"
	"io"
	"os"
)

// App is the injected pair of closures bound to a session at
// construction, replacing the source's process-wide input_io/output_io
// function pointers (spec.md §9).
type App struct {
	// ReadApp is a non-blocking read from the application source.
	// It returns 0 <= n <= len(buf); n == 0 means "nothing available
	// right now", not end-of-stream — this transport has no teardown.
	ReadApp func(buf []byte) (n int)

	// WriteApp delivers buf in order to the application sink. It must
	// not block the session loop for long.
	WriteApp func(buf []byte)
}

// Stdio returns an App backed by the process's standard input and
// output. Standard input has no non-blocking read mode in the Go
// standard library, so a background goroutine drains it into a buffered
// channel; ReadApp drains that channel without blocking.
func Stdio() *App {
	return FromReaderWriter(os.Stdin, os.Stdout)
}

// FromReaderWriter returns an App reading from r and writing to w — the
// indirection that lets tests inject in-memory pipes instead of real file
// descriptors. A nil r never yields data; a nil w discards writes.
func FromReaderWriter(r io.Reader, w io.Writer) *App {
	rd := newNonBlockingReader(r)
	return &App{
		ReadApp: rd.read,
		WriteApp: func(buf []byte) {
			if w == nil {
				return
			}
			_, _ = w.Write(buf)
		},
	}
}

// nonBlockingReader drains r on a background goroutine into a buffered
// channel of chunks, so ReadApp can poll without blocking the session
// loop — the Go-idiomatic equivalent of the source's O_NONBLOCK fcntl on
// a file descriptor. read is only ever called from the single session
// loop goroutine, so leftover needs no synchronization of its own.
type nonBlockingReader struct {
	chunks   chan []byte
	leftover []byte
}

func newNonBlockingReader(r io.Reader) *nonBlockingReader {
	nr := &nonBlockingReader{chunks: make(chan []byte, 64)}
	if r == nil {
		close(nr.chunks)
		return nr
	}
	go nr.pump(r)
	return nr
}

func (nr *nonBlockingReader) pump(r io.Reader) {
	defer close(nr.chunks)
	br := bufio.NewReaderSize(r, 4096)
	buf := make([]byte, 4096)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			nr.chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

func (nr *nonBlockingReader) read(buf []byte) int {
	if len(nr.leftover) > 0 {
		n := copy(buf, nr.leftover)
		nr.leftover = nr.leftover[n:]
		return n
	}

	select {
	case chunk, ok := <-nr.chunks:
		if !ok {
			return 0
		}
		n := copy(buf, chunk)
		if n < len(chunk) {
			nr.leftover = chunk[n:]
		}
		return n
	default:
		return 0
	}
}
