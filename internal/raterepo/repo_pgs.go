// Package raterepo manages repository layer of currency rates.
package raterepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/internal/ratecache"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/dbpkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
)

// RepoPGS is a rate cache persisted in the currency_rates table.
type RepoPGS struct {
	db  dbpkg.SQLInterface
	now func() time.Time
}

// NewRepoPGS returns rate RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db:  db,
		now: time.Now,
	}
}

// WithClock replaces the clock used by IsFresh.
func (r *RepoPGS) WithClock(now func() time.Time) *RepoPGS {
	r.now = now
	return r
}

const rateColumns = `base_currency, quote_currency, rate_date, rate, source, fetched_at`

func scanRate(row interface{ Scan(...any) error }) (domain.ExchangeRate, error) {
	var e domain.ExchangeRate

	err := row.Scan(
		&e.Base,
		&e.Quote,
		&e.Date,
		&e.Rate,
		&e.Source,
		&e.FetchedAt,
	)
	e.Date = e.Date.UTC()

	return e, err
}

const putQuery = `
INSERT INTO
    currency_rates (` + rateColumns + `)
VALUES
    ($1, $2, $3, $4, $5, $6)
ON CONFLICT (base_currency, quote_currency, rate_date) DO UPDATE
SET rate = EXCLUDED.rate, source = EXCLUDED.source, fetched_at = EXCLUDED.fetched_at
`

// Put stores rate, replacing any rate for the same pair and date.
func (r *RepoPGS) Put(ctx context.Context, rate domain.ExchangeRate) error {
	l := zerolog.Ctx(ctx)

	rate, err := ratecache.Normalize(rate)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, putQuery,
		rate.Base,
		rate.Quote,
		rate.Date,
		rate.Rate,
		rate.Source,
		rate.FetchedAt,
	)
	if err != nil {
		l.Error().Err(err).Msgf("Put(ctx, %s/%s)", rate.Base, rate.Quote)

		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "currency_rates_rate_check":
				return domain.ErrInvalidAmount
			case "currency_rates_pair_check":
				return domain.ErrSameCurrencyPair
			}
		}

		return errorspkg.ErrInternal
	}

	return nil
}

const getQuery = `
SELECT ` + rateColumns + `
FROM currency_rates
WHERE base_currency = $1 AND quote_currency = $2 AND rate_date = $3
`

// Get returns the rate stored for the pair on date.
func (r *RepoPGS) Get(ctx context.Context, base, quote string, date time.Time) (domain.ExchangeRate, bool, error) {
	base, quote = currencypkg.Normalize(base), currencypkg.Normalize(quote)
	if base == quote {
		return domain.ExchangeRate{}, false, nil
	}

	row := r.db.QueryRowContext(ctx, getQuery, base, quote, ratecache.Day(date))

	return r.scanOne(ctx, row)
}

func (r *RepoPGS) scanOne(ctx context.Context, row *sql.Row) (domain.ExchangeRate, bool, error) {
	l := zerolog.Ctx(ctx)

	rate, err := scanRate(row)
	if err == sql.ErrNoRows {
		return domain.ExchangeRate{}, false, nil
	}

	if err != nil {
		l.Error().Err(err).Send()
		return domain.ExchangeRate{}, false, errorspkg.ErrInternal
	}

	return rate, true, nil
}

// IsFresh reports whether the rate for the pair on date was fetched within maxAge.
func (r *RepoPGS) IsFresh(ctx context.Context, base, quote string, date time.Time, maxAge time.Duration) (bool, error) {
	rate, ok, err := r.Get(ctx, base, quote, date)
	if err != nil || !ok {
		return false, err
	}

	return r.now().Sub(rate.FetchedAt) <= maxAge, nil
}

const latestQuery = `
SELECT ` + rateColumns + `
FROM currency_rates
WHERE base_currency = $1 AND quote_currency = $2
ORDER BY rate_date DESC, fetched_at DESC
LIMIT 1
`

// Latest returns the most recent rate known for the pair regardless of age.
func (r *RepoPGS) Latest(ctx context.Context, base, quote string) (domain.ExchangeRate, bool, error) {
	base, quote = currencypkg.Normalize(base), currencypkg.Normalize(quote)
	if base == quote {
		return domain.ExchangeRate{}, false, nil
	}

	row := r.db.QueryRowContext(ctx, latestQuery, base, quote)

	return r.scanOne(ctx, row)
}

const statsQuery = `
SELECT
    count(*),
    COALESCE(max(fetched_at), 'epoch'::timestamptz),
    COALESCE((SELECT source FROM currency_rates ORDER BY fetched_at DESC LIMIT 1), '')
FROM currency_rates
`

// Stats returns the number of cached rates and the most recent write.
func (r *RepoPGS) Stats(ctx context.Context) (domain.RateStats, error) {
	l := zerolog.Ctx(ctx)

	var s domain.RateStats

	err := r.db.QueryRowContext(ctx, statsQuery).Scan(&s.Count, &s.LastFetchedAt, &s.LastSource)
	if err != nil {
		l.Error().Err(err).Send()
		return s, errorspkg.ErrInternal
	}

	if s.Count == 0 {
		s.LastFetchedAt = time.Time{}
	}

	return s, nil
}
