// Package randseed owns the per-session random source used to pick the
// handshake's initial sequence number. spec.md §9 calls out the source's
// process-wide srand/rand(%1000)+1 call and asks for it to be replaced
// with an injected, per-session generator instead of a global one.
package randseed

import (
	"math/rand"

	"github.com/ventosilenzioso/ordudp/internal/timer"
)

// New returns a *rand.Rand seeded from seed, or from the monotonic clock
// if seed is zero — the CLI's --seed flag maps directly onto this.
func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = int64(timer.Now())
	}
	return rand.New(rand.NewSource(seed))
}

// InitialSeq draws the handshake's random initial sequence number,
// seq ∈ [1,1000], per spec.md §4.2.
func InitialSeq(r *rand.Rand) uint16 {
	return uint16(r.Intn(1000) + 1)
}
