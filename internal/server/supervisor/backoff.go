package supervisor

import (
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"
)

// newBackoff yields the delays between connection attempts: base doubling up
// to maxDelay, plus [0, jitter) of random spread, for attempts-1 retries.
func newBackoff(cfg Config, jitter func(time.Duration) time.Duration) retry.Backoff {
	b := retry.NewExponential(cfg.BaseDelay)
	b = retry.WithCappedDuration(cfg.MaxDelay, b)
	b = withAddedJitter(cfg.Jitter, jitter, b)
	return retry.WithMaxRetries(uint64(cfg.MaxRetries-1), b)
}

// withAddedJitter differs from retry.WithJitter, which spreads symmetrically
// around the value; here jitter is only ever added.
func withAddedJitter(max time.Duration, jitter func(time.Duration) time.Duration, next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if max > 0 {
			d += jitter(max)
		}
		return d, false
	})
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
