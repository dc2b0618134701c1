package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/internal/ratecache"
	"github.com/go-petr/splitfx/internal/raterepo"
	"github.com/go-petr/splitfx/pkg/configpkg"
	"github.com/go-petr/splitfx/pkg/web"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func staticConfig() configpkg.Config {
	return configpkg.Config{
		RateCacheDriver:     CacheMemory,
		RateProviders:       "static",
		StaticRates:         "USD=0.73,EUR=0.68,GBP=0.58",
		DefaultBaseCurrency: "CAD",
		CORSAllowedOrigins:  "*",
	}
}

func TestCorsConfig(t *testing.T) {
	c := corsConfig("*")
	require.True(t, c.AllowAllOrigins)
	require.Empty(t, c.AllowOrigins)

	c = corsConfig(" https://a.example , https://b.example,")
	require.False(t, c.AllowAllOrigins)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowOrigins)
	require.Contains(t, c.ExposeHeaders, "X-Request-ID")
}

func TestNewRateStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewRateStore(ctx, nil, configpkg.Config{})
	require.NoError(t, err)
	require.IsType(t, &ratecache.Memory{}, store)

	store, err = NewRateStore(ctx, nil, configpkg.Config{RateCacheDriver: CachePostgres})
	require.NoError(t, err)
	require.IsType(t, &raterepo.RepoPGS{}, store)

	_, err = NewRateStore(ctx, nil, configpkg.Config{RateCacheDriver: "mongo"})
	require.ErrorContains(t, err, "unknown rate cache driver")
}

func TestNewUnknownProvider(t *testing.T) {
	config := staticConfig()
	config.RateProviders = "static,oracle"

	_, err := New(nil, zerolog.Nop(), config)
	require.ErrorContains(t, err, `unknown rate provider "oracle"`)
}

func TestConversionRoutes(t *testing.T) {
	server, err := New(nil, zerolog.Nop(), staticConfig())
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/currency/convert?amount=100&from=cad&to=usd", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var conv domain.Conversion
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&web.Response{Data: &conv}))
	require.True(t, decimal.NewFromInt(73).Equal(conv.ConvertedAmount), conv.ConvertedAmount.String())
	require.Equal(t, "static", conv.Source)
	require.False(t, conv.Stale)

	stats, err := server.Rates.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Count)

	recorder = httptest.NewRecorder()
	server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/currency/update", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var status domain.RateStatus
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&web.Response{Data: &status}))
	require.Equal(t, 3, status.TotalRates)
	require.False(t, status.NeedsUpdate)

	recorder = httptest.NewRecorder()
	server.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `splitfx_rate_provider_requests_total{outcome="success",provider="static"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	server, err := New(nil, zerolog.Nop(), staticConfig())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/currency/convert", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	require.True(t, strings.Contains(recorder.Header().Get("Access-Control-Allow-Methods"), http.MethodPost))
}
