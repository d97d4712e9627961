package helixLeaseArbiter

import (
	"math/rand"
	"time"
)

const (
	maxInsertRetries         = 3
	minInitialDelayMillis    = int64(20)
	delayForRetryRangeMillis = int64(200)
)

// insertRetryPolicy is the value-object backoff policy for the
// INSERT-IF-ABSENT path. It carries remaining
// attempts and the next delay; the delay starts at a single jittered value
// and doubles after every retry.
type insertRetryPolicy struct {
	remaining int
	delay     time.Duration
}

func newInsertRetryPolicy() insertRetryPolicy {
	jitter := minInitialDelayMillis + rand.Int63n(delayForRetryRangeMillis)
	return insertRetryPolicy{
		remaining: maxInsertRetries,
		delay:     time.Duration(jitter) * time.Millisecond,
	}
}

// awaitNext reports whether another attempt remains; if so it sleeps (via
// the supplied sleeper, so tests and MockCrossFunction control real time)
// before returning true.
func (p *insertRetryPolicy) awaitNext(sleep func(time.Duration)) bool {
	if p.remaining <= 0 {
		return false
	}
	p.remaining--
	sleep(p.delay)
	p.delay *= 2
	return true
}
