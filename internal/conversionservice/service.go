// Package conversionservice manages business logic layer of currency conversion.
package conversionservice

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/moneypkg"
)

// Defaults.
const (
	DefaultMaxAge = 24 * time.Hour
	DefaultPivot  = currencypkg.CAD
)

// ratePrecision is the number of decimal places kept for derived rates.
const ratePrecision = 10

// Cache provides the rate cache interface needed by the conversion service.
type Cache interface {
	Get(ctx context.Context, base, quote string, date time.Time) (domain.ExchangeRate, bool, error)
	Latest(ctx context.Context, base, quote string) (domain.ExchangeRate, bool, error)
	Stats(ctx context.Context) (domain.RateStats, error)
}

// Refresher provides the provider chain interface needed by the conversion service.
type Refresher interface {
	FetchRates(ctx context.Context, base string) (domain.RateUpdate, error)
}

// Service facilitates currency conversion logic.
type Service struct {
	cache  Cache
	chain  Refresher
	maxAge time.Duration
	pivot  string
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAge sets the staleness window.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithPivot sets the currency used for cross rates and as the default refresh base.
func WithPivot(code string) Option {
	return func(s *Service) {
		if c := currencypkg.Normalize(code); c != "" {
			s.pivot = c
		}
	}
}

// WithClock sets the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns conversion service struct to manage conversion business logic.
func New(cache Cache, chain Refresher, opts ...Option) *Service {
	s := &Service{
		cache:  cache,
		chain:  chain,
		maxAge: DefaultMaxAge,
		pivot:  DefaultPivot,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Convert converts amount from one currency into another.
// Both currencies must be supported.
//
// The converted amount is rounded to 2 decimal places, half to even.
// A rate older than the staleness window is used when no fresh rate can be
// obtained; the result is then marked Stale.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error) {
	from, to = currencypkg.Normalize(from), currencypkg.Normalize(to)
	if !currencypkg.IsSupportedCurrency(from) || !currencypkg.IsSupportedCurrency(to) {
		return domain.Conversion{}, domain.ErrInvalidCurrency
	}

	now := s.now().UTC()

	if from == to {
		return domain.Conversion{
			OriginalAmount:  amount,
			ConvertedAmount: amount,
			FromCurrency:    from,
			ToCurrency:      to,
			Rate:            decimal.NewFromInt(1),
			Source:          domain.SourceSameCurrency,
			Timestamp:       now,
		}, nil
	}

	rate, err := s.resolve(ctx, from, to)
	if err != nil {
		return domain.Conversion{}, err
	}

	date := rate.Date

	return domain.Conversion{
		OriginalAmount:  amount,
		ConvertedAmount: moneypkg.Round(amount.Mul(rate.Rate)),
		FromCurrency:    from,
		ToCurrency:      to,
		Rate:            rate.Rate,
		Source:          rate.Source,
		RateDate:        &date,
		Stale:           s.isStale(rate, now),
		Timestamp:       now,
	}, nil
}

func (s *Service) isStale(r domain.ExchangeRate, now time.Time) bool {
	return now.Sub(r.FetchedAt) > s.maxAge
}

type lookupFunc func(ctx context.Context, base, quote string) (domain.ExchangeRate, bool, error)

// freshLookup returns today's rate when it is within the staleness window.
func (s *Service) freshLookup(now time.Time) lookupFunc {
	return func(ctx context.Context, base, quote string) (domain.ExchangeRate, bool, error) {
		r, ok, err := s.cache.Get(ctx, base, quote, now)
		if err != nil || !ok || s.isStale(r, now) {
			return domain.ExchangeRate{}, false, err
		}

		return r, true, nil
	}
}

func (s *Service) resolve(ctx context.Context, from, to string) (domain.ExchangeRate, error) {
	l := zerolog.Ctx(ctx)
	now := s.now().UTC()

	r, ok, err := s.derive(ctx, from, to, s.freshLookup(now))
	if err != nil || ok {
		return r, err
	}

	_, err = s.chain.FetchRates(ctx, from)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ExchangeRate{}, ctx.Err()
		}

		l.Warn().Err(err).Str("from", from).Str("to", to).Msg("rate refresh failed, using last known rate")
	} else {
		r, ok, err = s.derive(ctx, from, to, s.freshLookup(now))
		if err != nil || ok {
			return r, err
		}
	}

	r, ok, err = s.derive(ctx, from, to, s.cache.Latest)
	if err != nil {
		return r, err
	}

	if !ok {
		return r, domain.ErrRateUnavailable
	}

	if s.isStale(r, now) {
		l.Warn().Str("from", from).Str("to", to).Str("source", r.Source).
			Time("fetched_at", r.FetchedAt).Msg("stale rate used")
	}

	return r, nil
}

// derive finds a from→to rate through the direct pair, the inverse pair or
// a cross rate through the pivot currency, in that order.
func (s *Service) derive(ctx context.Context, from, to string, lookup lookupFunc) (domain.ExchangeRate, bool, error) {
	r, ok, err := lookup(ctx, from, to)
	if err != nil || ok {
		return r, ok, err
	}

	inv, ok, err := lookup(ctx, to, from)
	if err != nil {
		return r, false, err
	}

	if ok {
		return domain.ExchangeRate{
			Base:      from,
			Quote:     to,
			Date:      inv.Date,
			Rate:      decimal.NewFromInt(1).DivRound(inv.Rate, ratePrecision),
			Source:    inv.Source,
			FetchedAt: inv.FetchedAt,
		}, true, nil
	}

	if from == s.pivot || to == s.pivot {
		return r, false, nil
	}

	pf, ok, err := lookup(ctx, s.pivot, from)
	if err != nil || !ok {
		return r, false, err
	}

	pt, ok, err := lookup(ctx, s.pivot, to)
	if err != nil || !ok {
		return r, false, err
	}

	// The older leg decides how old the cross rate is.
	older := pf
	if pt.FetchedAt.Before(pf.FetchedAt) {
		older = pt
	}

	source := pt.Source
	if pf.Source != pt.Source {
		source = pf.Source + "+" + pt.Source
	}

	return domain.ExchangeRate{
		Base:      from,
		Quote:     to,
		Date:      older.Date,
		Rate:      pt.Rate.DivRound(pf.Rate, ratePrecision),
		Source:    source,
		FetchedAt: older.FetchedAt,
	}, true, nil
}

// Refresh refreshes the rates quoted against base, or against the pivot currency when base is empty.
func (s *Service) Refresh(ctx context.Context, base string) (domain.RateUpdate, error) {
	base = currencypkg.Normalize(base)
	if base == "" {
		base = s.pivot
	}

	if !currencypkg.IsSupportedCurrency(base) {
		return domain.RateUpdate{}, domain.ErrInvalidCurrency
	}

	return s.chain.FetchRates(ctx, base)
}

// Status reports how fresh the cached rates are.
func (s *Service) Status(ctx context.Context) (domain.RateStatus, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return domain.RateStatus{}, err
	}

	status := domain.RateStatus{
		LastSource:          stats.LastSource,
		TotalRates:          stats.Count,
		NeedsUpdate:         true,
		SupportedCurrencies: currencypkg.SupportedCurrencies,
	}

	if stats.Count == 0 || stats.LastFetchedAt.IsZero() {
		return status, nil
	}

	last := stats.LastFetchedAt.UTC()
	since := s.now().Sub(last)
	hours := math.Round(since.Hours()*100) / 100

	status.LastUpdate = &last
	status.HoursSinceUpdate = &hours
	status.NeedsUpdate = since > s.maxAge

	return status, nil
}
