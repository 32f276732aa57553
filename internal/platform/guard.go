package platform

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"deskbridge/internal/observability"
)

// guard applies the per-pod rate limit and circuit breaker to one outbound
// platform API call. Breaker-open errors surface to the caller so queued jobs
// redrive once the platform recovers.
type guard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func (g guard) do(ctx context.Context, platformName string, call func() (any, error)) (any, error) {
	if g.limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := g.limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			observability.PlatformAPI.WithLabelValues(platformName, "rate_limited_local").Inc()
			return nil, err
		}
	}

	run := call
	if g.breaker != nil {
		run = func() (any, error) { return g.breaker.Execute(call) }
	}

	res, err := run()
	switch {
	case err == nil:
		observability.PlatformAPI.WithLabelValues(platformName, "ok").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.PlatformAPI.WithLabelValues(platformName, "cb_open").Inc()
	default:
		observability.PlatformAPI.WithLabelValues(platformName, "error").Inc()
	}
	return res, err
}
