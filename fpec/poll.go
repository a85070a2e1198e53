package fpec

import (
	"errors"
	"time"
)

// ErrPollExpired is returned by a Poller when its bound runs out.
var ErrPollExpired = errors.New("poll bound expired")

// Poller repeatedly evaluates a condition until it holds.
//
// Until calls done until it reports true or returns an error, and reports
// how many times done was called. Implementations must be bounded and
// return ErrPollExpired when the bound runs out.
type Poller interface {
	Until(done func() (bool, error)) (polls int, err error)
}

// BoundedPoller spins on a condition with an iteration limit, a time budget,
// or both. A zero limit or timeout disables that bound; when both are zero
// DefaultPollTimeout applies.
type BoundedPoller struct {
	// MaxPolls is the maximum number of evaluations (0 = unlimited)
	MaxPolls int

	// Timeout is the time budget measured from the first evaluation (0 = unlimited)
	Timeout time.Duration

	// Interval is the pause between evaluations (0 = tight spin)
	Interval time.Duration

	// Now and Sleep replace the wall clock; nil means time.Now and time.Sleep
	Now   func() time.Time
	Sleep func(time.Duration)
}

// DefaultPollTimeout comfortably exceeds the 40 ms worst-case page erase time.
const DefaultPollTimeout = 100 * time.Millisecond

// Until implements Poller.
func (p *BoundedPoller) Until(done func() (bool, error)) (int, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	timeout := p.Timeout
	if p.MaxPolls <= 0 && timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	start := now()
	polls := 0
	for {
		polls++
		ok, err := done()
		if err != nil {
			return polls, err
		}
		if ok {
			return polls, nil
		}

		if p.MaxPolls > 0 && polls >= p.MaxPolls {
			return polls, ErrPollExpired
		}
		if timeout > 0 && now().Sub(start) >= timeout {
			return polls, ErrPollExpired
		}

		if p.Interval > 0 {
			sleep(p.Interval)
		}
	}
}
