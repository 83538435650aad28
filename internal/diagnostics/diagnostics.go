// Package diagnostics is the leveled logger the session loop and
// handshake log through. It keeps the teacher's pkg/logger shape —
// package-level Info/Warn/Error/Fatal functions, one call site per event —
// but is backed by logrus instead of the standard log package, and adds a
// dedicated wire-event logger for the four tagged lines spec.md §6
// requires.
package diagnostics

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ventosilenzioso/ordudp/internal/wire"
)

// Tag identifies which of the four wire diagnostic events a segment line
// reports.
type Tag string

const (
	RECV Tag = "RECV"
	SEND Tag = "SEND"
	RTOS Tag = "RTOS"
	DUPS Tag = "DUPS"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// runID is attached as the "run" field to every non-wire line this
// process emits, so a test harness capturing both peers' stderr side by
// side can tell them apart; wire-event lines from Segment do not carry
// it, and it has no wire effect.
var runID = uuid.New().String()[:8]

// SetLevel adjusts the minimum level this process logs at.
func SetLevel(level logrus.Level) {
	log.SetLevel(level)
}

// wireFormatter renders exactly the line spec.md §6 specifies:
// "<TAG> <seq> ACK <ack> LEN <length> WIN <win> FLAGS <flag-list>"
type wireFormatter struct{}

func (wireFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

var wireLog = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(wireFormatter{})
	return l
}()

// Segment emits one diagnostic line for a wire event, per spec.md §6.
func Segment(tag Tag, s *wire.Segment) {
	wireLog.Info(fmt.Sprintf("%s %d ACK %d LEN %d WIN %d FLAGS %s",
		tag, s.Seq, s.Ack, s.Length, s.Win, s.FlagList()))
}

func fields() logrus.Fields {
	return logrus.Fields{"run": runID}
}

// Info logs a non-wire informational event.
func Info(format string, args ...interface{}) {
	log.WithFields(fields()).Infof(format, args...)
}

// Warn logs a non-wire warning event.
func Warn(format string, args ...interface{}) {
	log.WithFields(fields()).Warnf(format, args...)
}

// Error logs a non-wire error event.
func Error(format string, args ...interface{}) {
	log.WithFields(fields()).Errorf(format, args...)
}

// Fatal logs a fatal error and exits the process with status 1, per
// spec.md §7's handling of a handshake segment with the wrong flags.
func Fatal(format string, args ...interface{}) {
	log.WithFields(fields()).Fatalf(format, args...)
}
