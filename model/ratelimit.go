package model

import (
	"context"

	"golang.org/x/time/rate"
)

// Compile-time interface check.
var _ Model = (*RateLimited)(nil)

// RateLimited decorates a Model with a token-bucket limiter so bursts of
// generation requests (batch evaluation, subagent fan-out) do not hammer the
// provider. Each Generate call waits for a token before dispatching to the
// wrapped model.
type RateLimited struct {
	inner   Model
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter allowing requestsPerMinute
// sustained calls and the given burst. A requestsPerMinute of zero or less
// returns an unlimited wrapper.
func NewRateLimited(inner Model, requestsPerMinute, burst int) *RateLimited {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Generate implements Model. The token wait happens inside the goroutine so
// the call returns its channels immediately, matching the other adapters.
func (m *RateLimited) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := m.limiter.Wait(ctx); err != nil {
			errCh <- err
			return
		}

		innerResp, innerErr := m.inner.Generate(ctx, req)
		for innerResp != nil || innerErr != nil {
			select {
			case resp, ok := <-innerResp:
				if !ok {
					innerResp = nil
					continue
				}
				respCh <- resp
			case err, ok := <-innerErr:
				if !ok {
					innerErr = nil
					continue
				}
				errCh <- err
			}
		}
	}()

	return respCh, errCh
}

// Info implements Model by delegating to the wrapped model.
func (m *RateLimited) Info() Info { return m.inner.Info() }
