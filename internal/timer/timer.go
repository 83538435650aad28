// Package timer provides the monotonic duration comparisons the RTO and
// duplicate-ACK triggers are built on. It reads CLOCK_MONOTONIC directly,
// mirroring the gettimeofday/struct-timeval arithmetic (TV_DIFF) the
// original transport.cpp uses, rather than relying on Go's opaque
// time.Time monotonic reading.
package timer

import (
	"time"

	"golang.org/x/sys/unix"
)

// RTO is the retransmission timeout: 3,000 microseconds by default, no
// adaptive estimation, no exponential backoff. internal/config may
// override it from the --rto flag before the session loop starts; the
// session loop itself never adjusts it.
var RTO = 3000 * time.Microsecond

// DupACKThreshold is the number of consecutive duplicate cumulative ACKs
// that triggers a fast retransmit. Overridable via --dup-acks.
var DupACKThreshold = 3

// Now returns the current monotonic timestamp as a time.Duration
// (nanoseconds since an arbitrary epoch), the unit the rest of this
// package compares against.
func Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is effectively infallible on supported
		// platforms; fall back to the wall clock (Unix nanoseconds)
		// rather than letting the session loop stall on retransmission.
		return time.Duration(time.Now().UnixNano())
	}
	return time.Duration(ts.Nano())
}

// Elapsed reports how much time has passed since a Now() reading.
func Elapsed(since time.Duration) time.Duration {
	return Now() - since
}

// Expired reports whether RTO microseconds have elapsed since since.
func Expired(since time.Duration) bool {
	return Elapsed(since) >= RTO
}
