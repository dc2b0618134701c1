package rateprovider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 5 * time.Second

// DefaultRetryAfter is how long a base whose refresh failed is not retried.
const DefaultRetryAfter = time.Minute

// Store receives the accepted rates.
type Store interface {
	Put(ctx context.Context, rate domain.ExchangeRate) error
}

// Chain queries providers in priority order until one returns a usable response.
type Chain struct {
	providers []Provider
	store     Store
	timeout   time.Duration
	required  []string
	now       func() time.Time
	metrics   *Metrics
	flight    singleflight.Group

	retryAfter time.Duration
	mu         sync.Mutex
	failed     map[string]failure
}

// failure is the last failed refresh of a base.
type failure struct {
	at  time.Time
	err error
}

// Option configures a Chain.
type Option func(*Chain)

// WithTimeout sets the per-provider timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRequired sets the quote currencies every response must contain.
func WithRequired(codes []string) Option {
	return func(c *Chain) { c.required = codes }
}

// WithRetryAfter sets how long a failed base is left alone before the
// providers are asked again. Zero retries on every call.
func WithRetryAfter(d time.Duration) Option {
	return func(c *Chain) {
		if d >= 0 {
			c.retryAfter = d
		}
	}
}

// WithClock sets the clock used to stamp fetched rates.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(c *Chain) { c.metrics = m }
}

// NewChain returns a chain over providers, highest priority first.
// By default every supported currency is required in a response.
func NewChain(store Store, providers []Provider, opts ...Option) *Chain {
	c := &Chain{
		providers: providers,
		store:     store,
		timeout:   DefaultTimeout,
		required:  currencypkg.SupportedCurrencies,
		now:       time.Now,

		retryAfter: DefaultRetryAfter,
		failed:     make(map[string]failure),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchRates refreshes the rates quoted against base.
//
// The first provider with a valid response wins and all its rates are stored
// under today's date. Concurrent calls for the same base share one refresh;
// a caller that gives up does not cancel the refresh for the others.
// After every provider failed for a base, calls for it fail fast with the same
// error until the retry delay has passed.
func (c *Chain) FetchRates(ctx context.Context, base string) (domain.RateUpdate, error) {
	base = currencypkg.Normalize(base)
	if !currencypkg.IsCode(base) {
		return domain.RateUpdate{}, domain.ErrInvalidCurrency
	}

	if err := c.backoff(base); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("base", base).Msg("rate refresh skipped")
		return domain.RateUpdate{}, err
	}

	ch := c.flight.DoChan(base, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), base)
	})

	select {
	case <-ctx.Done():
		return domain.RateUpdate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.RateUpdate{}, res.Err
		}
		return res.Val.(domain.RateUpdate), nil
	}
}

func (c *Chain) fetch(ctx context.Context, base string) (domain.RateUpdate, error) {
	l := zerolog.Ctx(ctx)

	errs := []error{domain.ErrAllProvidersFailed}

	for _, p := range c.providers {
		rates, outcome, err := c.try(ctx, p, base)
		if err != nil {
			l.Warn().Err(err).Str("provider", p.ID()).Str("base", base).Str("outcome", outcome).
				Msg("rate provider failed")
			errs = append(errs, err)

			continue
		}

		update := domain.RateUpdate{
			Base:      base,
			Source:    p.ID(),
			Rates:     rates,
			FetchedAt: c.now().UTC(),
		}

		if err := c.save(ctx, update); err != nil {
			return domain.RateUpdate{}, err
		}

		l.Info().Str("provider", p.ID()).Str("base", base).Int("rates", len(rates)).Msg("rates refreshed")
		c.forget(base)

		return update, nil
	}

	err := errors.Join(errs...)
	c.remember(base, err)

	return domain.RateUpdate{}, err
}

// backoff returns the last refresh error of base while it is still recent.
func (c *Chain) backoff(base string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.failed[base]
	if !ok || c.now().Sub(f.at) >= c.retryAfter {
		return nil
	}

	return fmt.Errorf("%w; next attempt for %s after %s", f.err, base, f.at.Add(c.retryAfter).Format(time.RFC3339))
}

func (c *Chain) remember(base string, err error) {
	if c.retryAfter == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.failed[base] = failure{at: c.now(), err: err}
}

func (c *Chain) forget(base string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.failed, base)
}

func (c *Chain) try(ctx context.Context, p Provider, base string) (map[string]decimal.Decimal, string, error) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rates, err := p.Rates(pctx, base)

	outcome := OutcomeSuccess

	switch {
	case err != nil && errors.Is(pctx.Err(), context.DeadlineExceeded):
		outcome = OutcomeTimeout
		err = fmt.Errorf("%w: %s: timed out after %s", domain.ErrProviderFailure, p.ID(), c.timeout)
	case err != nil:
		outcome = OutcomeError
		err = fmt.Errorf("%w: %s: %v", domain.ErrProviderFailure, p.ID(), err)
	default:
		rates, err = c.validate(p.ID(), base, rates)
		if err != nil {
			outcome = OutcomeInvalid
		}
	}

	c.metrics.observe(p.ID(), outcome, time.Since(start))

	return rates, outcome, err
}

// validate accepts or rejects a response as a whole.
func (c *Chain) validate(id, base string, rates map[string]decimal.Decimal) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(rates))

	for code, r := range rates {
		q := currencypkg.Normalize(code)
		if !currencypkg.IsCode(q) {
			return nil, fmt.Errorf("%w: %s: malformed currency %q", domain.ErrProviderFailure, id, code)
		}

		if !r.IsPositive() {
			return nil, fmt.Errorf("%w: %s: non-positive rate %s for %s", domain.ErrProviderFailure, id, r, q)
		}

		if q != base {
			out[q] = r
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s: empty response", domain.ErrProviderFailure, id)
	}

	for _, q := range c.required {
		if _, ok := out[q]; !ok && q != base {
			return nil, fmt.Errorf("%w: %s: missing rate for %s", domain.ErrProviderFailure, id, q)
		}
	}

	return out, nil
}

func (c *Chain) save(ctx context.Context, u domain.RateUpdate) error {
	l := zerolog.Ctx(ctx)

	quotes := make([]string, 0, len(u.Rates))
	for q := range u.Rates {
		quotes = append(quotes, q)
	}
	sort.Strings(quotes)

	for _, q := range quotes {
		err := c.store.Put(ctx, domain.ExchangeRate{
			Base:      u.Base,
			Quote:     q,
			Date:      u.FetchedAt,
			Rate:      u.Rates[q],
			Source:    u.Source,
			FetchedAt: u.FetchedAt,
		})
		if err != nil {
			l.Error().Err(err).Str("base", u.Base).Str("quote", q).Msg("cannot store rate")
			return errorspkg.ErrInternal
		}
	}

	return nil
}
