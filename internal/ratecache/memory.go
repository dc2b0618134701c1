// Package ratecache stores exchange rates keyed by (base, quote, date).
package ratecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/currencypkg"
)

// Store is implemented by every rate cache backend.
type Store interface {
	Get(ctx context.Context, base, quote string, date time.Time) (domain.ExchangeRate, bool, error)
	Put(ctx context.Context, rate domain.ExchangeRate) error
	IsFresh(ctx context.Context, base, quote string, date time.Time, maxAge time.Duration) (bool, error)
	Latest(ctx context.Context, base, quote string) (domain.ExchangeRate, bool, error)
	Stats(ctx context.Context) (domain.RateStats, error)
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// RatePrecision is the number of decimal places a stored rate keeps in every backend.
const RatePrecision = 10

// Normalize upper-cases the pair, truncates the date and rounds the rate to
// RatePrecision places, rejecting same-currency pairs.
func Normalize(r domain.ExchangeRate) (domain.ExchangeRate, error) {
	r.Base = currencypkg.Normalize(r.Base)
	r.Quote = currencypkg.Normalize(r.Quote)
	r.Date = Day(r.Date)
	r.Rate = r.Rate.Round(RatePrecision)

	if r.Base == r.Quote {
		return r, domain.ErrSameCurrencyPair
	}

	if !r.Rate.IsPositive() {
		return r, fmt.Errorf("%w: non-positive rate %s for %s/%s", domain.ErrInvalidAmount, r.Rate, r.Base, r.Quote)
	}

	return r, nil
}

// Newer reports whether a should replace b as the latest rate of a pair.
func Newer(a, b domain.ExchangeRate) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}

	return !a.FetchedAt.Before(b.FetchedAt)
}

type pairKey struct {
	base, quote string
}

type rateKey struct {
	pairKey
	date time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	rates  map[rateKey]domain.ExchangeRate
	latest map[pairKey]domain.ExchangeRate
	last   domain.ExchangeRate
	now    func() time.Time
}

// NewMemory returns an empty in-memory rate cache.
func NewMemory() *Memory {
	return &Memory{
		rates:  make(map[rateKey]domain.ExchangeRate),
		latest: make(map[pairKey]domain.ExchangeRate),
		now:    time.Now,
	}
}

// WithClock replaces the clock used by IsFresh.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func key(base, quote string, date time.Time) rateKey {
	return rateKey{
		pairKey: pairKey{currencypkg.Normalize(base), currencypkg.Normalize(quote)},
		date:    Day(date),
	}
}

// Get returns the rate stored for the pair on date.
func (m *Memory) Get(_ context.Context, base, quote string, date time.Time) (domain.ExchangeRate, bool, error) {
	k := key(base, quote, date)
	if k.base == k.quote {
		return domain.ExchangeRate{}, false, nil
	}

	m.mu.RLock()
	r, ok := m.rates[k]
	m.mu.RUnlock()

	return r, ok, nil
}

// Put stores rate, replacing any rate for the same pair and date.
func (m *Memory) Put(_ context.Context, rate domain.ExchangeRate) error {
	r, err := Normalize(rate)
	if err != nil {
		return err
	}

	k := rateKey{pairKey: pairKey{r.Base, r.Quote}, date: r.Date}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rates[k] = r

	if cur, ok := m.latest[k.pairKey]; !ok || Newer(r, cur) {
		m.latest[k.pairKey] = r
	}

	if m.last.FetchedAt.IsZero() || !r.FetchedAt.Before(m.last.FetchedAt) {
		m.last = r
	}

	return nil
}

// IsFresh reports whether the rate for the pair on date was fetched within maxAge.
func (m *Memory) IsFresh(ctx context.Context, base, quote string, date time.Time, maxAge time.Duration) (bool, error) {
	r, ok, err := m.Get(ctx, base, quote, date)
	if err != nil || !ok {
		return false, err
	}

	return m.now().Sub(r.FetchedAt) <= maxAge, nil
}

// Latest returns the most recent rate known for the pair regardless of age.
func (m *Memory) Latest(_ context.Context, base, quote string) (domain.ExchangeRate, bool, error) {
	k := pairKey{currencypkg.Normalize(base), currencypkg.Normalize(quote)}

	m.mu.RLock()
	r, ok := m.latest[k]
	m.mu.RUnlock()

	return r, ok, nil
}

// Stats returns the number of cached rates and the most recent write.
func (m *Memory) Stats(context.Context) (domain.RateStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return domain.RateStats{
		Count:         len(m.rates),
		LastFetchedAt: m.last.FetchedAt,
		LastSource:    m.last.Source,
	}, nil
}
