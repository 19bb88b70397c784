package sources

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned by fail-fast upstreams while their breaker refuses requests.
var ErrCircuitOpen = errors.New("sources: circuit breaker open")

const (
	defaultBreakerTimeout = 30 * time.Second
	minBreakerWait        = 10 * time.Millisecond
)

// upstream serializes requests to one API: a fixed pause after every response
// and a breaker that stops traffic after repeated errors.
//
// While the breaker is open an ingestion upstream waits for it to half-open
// instead of failing, so no unit is skipped without its own request having
// failed. A failFast upstream returns ErrCircuitOpen instead.
type upstream struct {
	name     string
	http     *http.Client
	delay    time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	failFast bool
	reopenAt atomic.Int64 // unix nanos at which an open breaker half-opens
}

func newUpstream(name string, o options) *upstream {
	limit := rate.Inf
	if o.delay > 0 {
		limit = rate.Every(o.delay)
	}
	timeout := o.breakerTimeout
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}

	u := &upstream{
		name:    name,
		http:    o.http,
		delay:   o.delay,
		limiter: rate.NewLimiter(limit, 1),
	}
	u.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				u.reopenAt.Store(time.Now().Add(timeout).UnixNano())
			}
			log.Warn().Str("upstream", name).Str("from", from.String()).Str("to", to.String()).
				Msg("sources: circuit breaker state change")
		},
	})
	return u
}

// do waits for its pacing slot, sends the request built by build and returns
// the body of a 2xx response.
func (u *upstream) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	for {
		body, err := u.attempt(ctx, build)
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			return body, err
		}
		if u.failFast {
			return nil, eris.Wrapf(ErrCircuitOpen, "%s: %v", u.name, err)
		}
		if err := u.waitForBreaker(ctx); err != nil {
			return nil, err
		}
	}
}

func (u *upstream) attempt(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrapf(err, "%s: wait for rate limiter", u.name)
	}

	req, err := build(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", u.name)
	}

	result, err := u.breaker.Execute(func() (interface{}, error) {
		defer u.rest()

		resp, err := u.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: send request", u.name)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: read response", u.name)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, eris.Errorf("%s: unexpected status %d: %s", u.name, resp.StatusCode, truncate(body, 200))
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// rest empties the limiter's bucket, so the next request starts a full delay
// after this response has been read.
func (u *upstream) rest() {
	if u.delay <= 0 {
		return
	}
	now := time.Now()
	u.limiter.SetBurstAt(now, 0)
	u.limiter.SetBurstAt(now, 1)
}

func (u *upstream) waitForBreaker(ctx context.Context) error {
	wait := time.Until(time.Unix(0, u.reopenAt.Load()))
	if wait < minBreakerWait {
		wait = minBreakerWait
	}
	log.Warn().Str("upstream", u.name).Dur("wait", wait).Msg("sources: circuit breaker open, waiting")

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrapf(ctx.Err(), "%s: wait for circuit breaker", u.name)
	case <-t.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
