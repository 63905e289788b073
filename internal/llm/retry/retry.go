package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
}

// DefaultConfig mirrors the shipped retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     true,
	}
}

// Attempt describes one retry for observers.
type Attempt struct {
	Provider string
	Attempt  int
	Delay    time.Duration
	Err      error
}

// Provider wraps an llm.Provider with classification-driven exponential
// backoff. It is transparent: same interface, same return contract, only
// latency changes.
type Provider struct {
	inner llm.Provider
	cfg   Config

	// Rand supplies jitter. Seedable for deterministic tests; nil uses a
	// time-seeded source.
	Rand *rand.Rand
	// Sleep is swapped out in tests. nil means a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is invoked before each backoff wait.
	OnRetry func(a Attempt)
}

// Wrap decorates a provider with retry behavior.
func Wrap(inner llm.Provider, cfg Config) *Provider {
	return &Provider{inner: inner, cfg: cfg}
}

func (p *Provider) Name() string { return p.inner.Name() }

func (p *Provider) SupportsJSON() bool { return p.inner.SupportsJSON() }

// Complete calls the wrapped provider, retrying retryable failures up to
// MaxRetries times. Non-retryable errors propagate immediately without
// consuming retry budget.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		raw, err := p.inner.Complete(ctx, req)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		var provErr *llm.ProviderError
		if !errors.As(err, &provErr) || !provErr.Retryable() {
			return "", err
		}
		if attempt == p.cfg.MaxRetries {
			return "", err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Provider: p.inner.Name(), Attempt: attempt + 1, Delay: delay, Err: err})
		}
		if err := p.sleep(ctx, delay); err != nil {
			return "", llm.NewProviderError(p.inner.Name(), llm.KindTimeout, "retry cancelled", err)
		}
	}
	return "", lastErr
}

// Delay computes the backoff for a zero-indexed attempt:
// base * 2^attempt, capped at MaxDelay, plus uniform jitter in
// [0, 0.25*delay] when enabled.
func (p *Provider) Delay(attempt int) time.Duration {
	delay := p.cfg.BaseDelay << uint(attempt)
	if delay > p.cfg.MaxDelay || delay <= 0 {
		delay = p.cfg.MaxDelay
	}
	if p.cfg.Jitter {
		delay += time.Duration(p.rnd().Float64() * 0.25 * float64(delay))
	}
	return delay
}

func (p *Provider) rnd() *rand.Rand {
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return p.Rand
}

func (p *Provider) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ llm.Provider = (*Provider)(nil)
