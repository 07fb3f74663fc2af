package dispatch

import "time"

const (
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffCap  = 30 * time.Minute
)

// backoffDelay returns the wait required before attempt k (1-indexed) may
// run: zero for k <= 1, otherwise min(cap, base * 2^(k-1)).
func backoffDelay(base, cap time.Duration, k int) time.Duration {
	if k <= 1 {
		return 0
	}
	d := base
	for i := 0; i < k-1; i++ {
		if d >= cap {
			return cap
		}
		d *= 2
	}
	if d > cap {
		return cap
	}
	return d
}

// eligible reports whether a delivery with the given attempt history may be
// attempted again at now. lastAttemptedAt == nil means it has never been
// attempted and is always eligible.
func eligible(attemptCount int, lastAttemptedAt *time.Time, base, cap time.Duration, now time.Time) bool {
	if lastAttemptedAt == nil {
		return true
	}
	wait := backoffDelay(base, cap, attemptCount+1)
	return !now.Before(lastAttemptedAt.Add(wait))
}
