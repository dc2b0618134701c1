package ratecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
)

// DefaultRedisPrefix namespaces all keys written by Redis.
const DefaultRedisPrefix = "splitfx"

// setMeta records a write in the meta hash unless a newer fetch is already
// recorded there. ARGV: fetch time in unix microseconds, RFC 3339 fetch time, source.
var setMeta = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'last_fetched_us') or '0')
if tonumber(ARGV[1]) < cur then
	return 0
end
redis.call('HSET', KEYS[1], 'last_fetched_us', ARGV[1], 'last_fetched_at', ARGV[2], 'last_source', ARGV[3])
return 1
`)

// Redis is a Store shared by every process connected to the same server.
//
// Keys:
//
//	<prefix>:rate:<BASE>:<QUOTE>:<date>  JSON encoded domain.ExchangeRate
//	<prefix>:dates:<BASE>:<QUOTE>       sorted set of dates, score is the unix day
//	<prefix>:keys                       set of all rate keys
//	<prefix>:meta                       hash with the newest fetch written
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis returns a Redis backed rate cache.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &Redis{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock replaces the clock used by IsFresh.
func (r *Redis) WithClock(now func() time.Time) *Redis {
	r.now = now
	return r
}

func (r *Redis) rateKey(base, quote string, date time.Time) string {
	return fmt.Sprintf("%s:rate:%s:%s:%s", r.prefix, base, quote, Day(date).Format(time.DateOnly))
}

func (r *Redis) datesKey(base, quote string) string {
	return fmt.Sprintf("%s:dates:%s:%s", r.prefix, base, quote)
}

func (r *Redis) keysKey() string { return r.prefix + ":keys" }

func (r *Redis) metaKey() string { return r.prefix + ":meta" }

func (r *Redis) load(ctx context.Context, k string) (domain.ExchangeRate, bool, error) {
	l := zerolog.Ctx(ctx)

	var rate domain.ExchangeRate

	b, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return rate, false, nil
	}

	if err != nil {
		l.Error().Err(err).Str("key", k).Send()
		return rate, false, errorspkg.ErrInternal
	}

	if err := json.Unmarshal(b, &rate); err != nil {
		l.Error().Err(err).Str("key", k).Msg("corrupt cached rate")
		return rate, false, errorspkg.ErrInternal
	}

	return rate, true, nil
}

// Get returns the rate stored for the pair on date.
func (r *Redis) Get(ctx context.Context, base, quote string, date time.Time) (domain.ExchangeRate, bool, error) {
	base, quote = currencypkg.Normalize(base), currencypkg.Normalize(quote)
	if base == quote {
		return domain.ExchangeRate{}, false, nil
	}

	return r.load(ctx, r.rateKey(base, quote, date))
}

// Put stores rate, replacing any rate for the same pair and date.
// All keys touched by one rate are written in a single MULTI/EXEC.
func (r *Redis) Put(ctx context.Context, rate domain.ExchangeRate) error {
	l := zerolog.Ctx(ctx)

	rate, err := Normalize(rate)
	if err != nil {
		return err
	}

	b, err := json.Marshal(rate)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	k := r.rateKey(rate.Base, rate.Quote, rate.Date)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k, b, 0)
		pipe.ZAdd(ctx, r.datesKey(rate.Base, rate.Quote), redis.Z{
			Score:  float64(rate.Date.Unix() / 86400),
			Member: rate.Date.Format(time.DateOnly),
		})
		pipe.SAdd(ctx, r.keysKey(), k)
		setMeta.Eval(ctx, pipe, []string{r.metaKey()},
			rate.FetchedAt.UnixMicro(),
			rate.FetchedAt.UTC().Format(time.RFC3339Nano),
			rate.Source,
		)

		return nil
	})
	if err != nil {
		l.Error().Err(err).Str("key", k).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

// IsFresh reports whether the rate for the pair on date was fetched within maxAge.
func (r *Redis) IsFresh(ctx context.Context, base, quote string, date time.Time, maxAge time.Duration) (bool, error) {
	rate, ok, err := r.Get(ctx, base, quote, date)
	if err != nil || !ok {
		return false, err
	}

	return r.now().Sub(rate.FetchedAt) <= maxAge, nil
}

// Latest returns the most recent rate known for the pair regardless of age.
func (r *Redis) Latest(ctx context.Context, base, quote string) (domain.ExchangeRate, bool, error) {
	l := zerolog.Ctx(ctx)

	base, quote = currencypkg.Normalize(base), currencypkg.Normalize(quote)
	if base == quote {
		return domain.ExchangeRate{}, false, nil
	}

	dates, err := r.client.ZRevRange(ctx, r.datesKey(base, quote), 0, 0).Result()
	if err != nil {
		l.Error().Err(err).Send()
		return domain.ExchangeRate{}, false, errorspkg.ErrInternal
	}

	if len(dates) == 0 {
		return domain.ExchangeRate{}, false, nil
	}

	date, err := time.Parse(time.DateOnly, dates[0])
	if err != nil {
		l.Error().Err(err).Send()
		return domain.ExchangeRate{}, false, errorspkg.ErrInternal
	}

	return r.load(ctx, r.rateKey(base, quote, date))
}

// Stats returns the number of cached rates and the most recent write.
func (r *Redis) Stats(ctx context.Context) (domain.RateStats, error) {
	l := zerolog.Ctx(ctx)

	var stats domain.RateStats

	count, err := r.client.SCard(ctx, r.keysKey()).Result()
	if err != nil {
		l.Error().Err(err).Send()
		return stats, errorspkg.ErrInternal
	}

	meta, err := r.client.HGetAll(ctx, r.metaKey()).Result()
	if err != nil {
		l.Error().Err(err).Send()
		return stats, errorspkg.ErrInternal
	}

	stats.Count = int(count)
	stats.LastSource = meta["last_source"]

	if v := meta["last_fetched_at"]; v != "" {
		if stats.LastFetchedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			l.Error().Err(err).Send()
			return stats, errorspkg.ErrInternal
		}
	}

	return stats, nil
}
