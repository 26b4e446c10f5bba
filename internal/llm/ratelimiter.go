package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider spaces requests to a provider with a token bucket
// holding up to rpm tokens that refills continuously at rpm per minute.
// Waiting callers leave in arrival order of their reservations.
type RateLimitedProvider struct {
	provider Provider
	rpm      int

	mu     sync.Mutex
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewRateLimitedProvider allows at most rpm requests per minute through to
// provider, with bursts of up to rpm.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		provider: provider,
		rpm:      rpm,
		tokens:   float64(rpm),
		last:     time.Now(),
		now:      time.Now,
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}

// wait takes a token, sleeping until one is available. A cancelled wait
// hands its reservation back.
func (r *RateLimitedProvider) wait(ctx context.Context) error {
	delay := r.reserve()
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.mu.Lock()
		r.tokens++
		r.mu.Unlock()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// reserve refills the bucket, takes one token and returns how long the
// caller must wait before the token is really there.
func (r *RateLimitedProvider) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	perToken := time.Minute / time.Duration(r.rpm)
	r.tokens += float64(now.Sub(r.last)) / float64(perToken)
	if r.tokens > float64(r.rpm) {
		r.tokens = float64(r.rpm)
	}
	r.last = now

	r.tokens--
	if r.tokens >= 0 {
		return 0
	}
	return time.Duration(-r.tokens * float64(perToken))
}
