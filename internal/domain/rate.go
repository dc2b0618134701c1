package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrRateUnavailable indicates that no fresh or stale rate exists and every provider failed.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrProviderFailure indicates that a single rate provider failed.
	ErrProviderFailure = errors.New("rate provider failure")
	// ErrInvalidCurrency indicates a malformed currency code.
	ErrInvalidCurrency = errors.New("invalid currency code")
	// ErrSameCurrencyPair indicates an attempt to store a rate for identical currencies.
	ErrSameCurrencyPair = errors.New("same currency pair is not stored")
)

// SourceSameCurrency is the conversion source reported when no rate was needed.
const SourceSameCurrency = "same-currency"

// ExchangeRate holds one quoted rate: 1 Base = Rate Quote.
type ExchangeRate struct {
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Date      time.Time       `json:"date"`
	Rate      decimal.Decimal `json:"rate"` // must be positive
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// RateUpdate is the accepted response of one provider for one base currency.
type RateUpdate struct {
	Base      string                     `json:"base_currency"`
	Source    string                     `json:"source"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

// RateStats summarizes the rate cache contents.
type RateStats struct {
	Count         int
	LastFetchedAt time.Time
	LastSource    string
}

// RateStatus is the rate cache freshness report.
type RateStatus struct {
	LastUpdate          *time.Time `json:"lastUpdate"`
	LastSource          string     `json:"lastSource"`
	TotalRates          int        `json:"totalRates"`
	HoursSinceUpdate    *float64   `json:"hoursSinceUpdate"`
	NeedsUpdate         bool       `json:"needsUpdate"`
	SupportedCurrencies []string   `json:"supportedCurrencies"`
}

// Conversion is the result of converting an amount between currencies.
type Conversion struct {
	OriginalAmount  decimal.Decimal `json:"originalAmount"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	FromCurrency    string          `json:"fromCurrency"`
	ToCurrency      string          `json:"toCurrency"`
	Rate            decimal.Decimal `json:"rate"`
	Source          string          `json:"source"`
	RateDate        *time.Time      `json:"rateDate,omitempty"`
	Stale           bool            `json:"stale"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ErrAllProvidersFailed indicates that no provider in the chain returned usable rates.
var ErrAllProvidersFailed = errors.New("all rate providers failed")
