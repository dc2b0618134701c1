package ratecache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/randompkg"
)

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func rate(base, quote, value string, fetchedAt time.Time) domain.ExchangeRate {
	return domain.ExchangeRate{
		Base:      base,
		Quote:     quote,
		Date:      fetchedAt,
		Rate:      decimal.RequireFromString(value),
		Source:    "test",
		FetchedAt: fetchedAt,
	}
}

// testStore runs the Store contract against one backend.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)

		_, ok, err := s.Get(ctx, "USD", "EUR", testNow)
		require.NoError(t, err)
		require.False(t, ok)

		_, ok, err = s.Latest(ctx, "USD", "EUR")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("PutNormalizesCase", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, rate("usd", "eur", "0.92", testNow)))

		got, ok, err := s.Get(ctx, "USD", "eur", testNow.Add(-time.Hour))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "USD", got.Base)
		require.Equal(t, "EUR", got.Quote)
		require.True(t, got.Rate.Equal(decimal.RequireFromString("0.92")))
	})

	t.Run("PutLastWriteWins", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, rate("USD", "EUR", "0.90", testNow.Add(-time.Hour))))
		require.NoError(t, s.Put(ctx, rate("USD", "EUR", "0.95", testNow)))

		got, ok, err := s.Get(ctx, "USD", "EUR", testNow)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, got.Rate.Equal(decimal.RequireFromString("0.95")))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, stats.Count)
	})

	t.Run("SameCurrencyNotStored", func(t *testing.T) {
		s := newStore(t)

		err := s.Put(ctx, rate("USD", "usd", "1", testNow))
		require.ErrorIs(t, err, domain.ErrSameCurrencyPair)

		_, ok, err := s.Get(ctx, "USD", "USD", testNow)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("NonPositiveRejected", func(t *testing.T) {
		s := newStore(t)

		require.Error(t, s.Put(ctx, rate("USD", "EUR", "0", testNow)))
		require.Error(t, s.Put(ctx, rate("USD", "EUR", "-1.2", testNow)))
	})

	t.Run("IsFresh", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, rate("CAD", "USD", "0.73", testNow.Add(-2*time.Hour))))
		require.NoError(t, s.Put(ctx, rate("CAD", "EUR", "0.68", testNow.Add(-48*time.Hour))))

		fresh, err := s.IsFresh(ctx, "CAD", "USD", testNow, 24*time.Hour)
		require.NoError(t, err)
		require.True(t, fresh)

		fresh, err = s.IsFresh(ctx, "CAD", "EUR", testNow.Add(-48*time.Hour), 24*time.Hour)
		require.NoError(t, err)
		require.False(t, fresh)

		fresh, err = s.IsFresh(ctx, "CAD", "GBP", testNow, 24*time.Hour)
		require.NoError(t, err)
		require.False(t, fresh)
	})

	t.Run("LatestPicksNewestDate", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, rate("EUR", "GBP", "0.85", testNow)))
		require.NoError(t, s.Put(ctx, rate("EUR", "GBP", "0.80", testNow.Add(-72*time.Hour))))

		got, ok, err := s.Latest(ctx, "eur", "gbp")
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, got.Rate.Equal(decimal.RequireFromString("0.85")))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, stats.Count)
		require.Equal(t, "test", stats.LastSource)
	})

	t.Run("StatsIgnoreOlderFetch", func(t *testing.T) {
		s := newStore(t)

		newer := rate("CAD", "USD", "0.73", testNow)
		newer.Source = "open-er-api"

		older := rate("CAD", "EUR", "0.68", testNow.Add(-48*time.Hour))
		older.Source = "frankfurter"

		require.NoError(t, s.Put(ctx, newer))
		require.NoError(t, s.Put(ctx, older))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, stats.Count)
		require.Equal(t, "open-er-api", stats.LastSource)
		require.True(t, stats.LastFetchedAt.Equal(testNow), "last fetched at %s", stats.LastFetchedAt)
	})

	t.Run("RateRoundedToStoredPrecision", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Put(ctx, rate("CAD", "USD", "0.730000000049", testNow)))

		got, ok, err := s.Get(ctx, "CAD", "USD", testNow)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "0.73", got.Rate.String())

		// Rounds to zero, so it is not a usable rate.
		require.Error(t, s.Put(ctx, rate("CAD", "GBP", "0.00000000001", testNow)))
	})
}

func TestMemory(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		return NewMemory().WithClock(clock)
	})
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}

	testStore(t, func(t *testing.T) Store {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			t.Skipf("redis unavailable: %v", err)
		}

		prefix := "splitfx-test-" + randompkg.String(8)

		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := client.Keys(ctx, prefix+":*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			client.Close()
		})

		return NewRedis(client, prefix).WithClock(clock)
	})
}
