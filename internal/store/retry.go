package store

import (
	"math/rand"
	"time"
)

// MaxPatchAttempts bounds how many times a backend retries a Patch whose
// conditional write lost a race against a concurrent writer before giving
// up with ErrConflict.
const MaxPatchAttempts = 8

// PatchBackoff returns a jittered delay for the given (zero-based) retry
// attempt, grounded in the same capped-exponential-backoff shape the
// external clients use for transient errors.
func PatchBackoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 2 * time.Millisecond
	if base > 100*time.Millisecond {
		base = 100 * time.Millisecond
	}
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	return base/2 + jitter/2
}
