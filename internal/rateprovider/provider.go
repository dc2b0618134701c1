// Package rateprovider fetches exchange rates from external providers.
package rateprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/configpkg"
	"github.com/go-petr/splitfx/pkg/currencypkg"
)

// Provider ids.
const (
	OpenERAPIID   = "open-er-api"
	FrankfurterID = "frankfurter"
	StaticID      = "static"
)

// Provider returns the rates of every quote currency it knows for base: 1 base = rate quote.
type Provider interface {
	ID() string
	Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

type httpProvider struct {
	id     string
	client *http.Client
	url    func(base string) string
	decode func(body io.Reader, base string) (map[string]decimal.Decimal, error)
}

func (p *httpProvider) ID() string { return p.id }

func (p *httpProvider) Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url(base), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	return p.decode(io.LimitReader(res.Body, 1<<20), base)
}

// NewOpenERAPI returns a provider for the open.er-api.com payload:
//
//	{"result": "success", "base_code": "CAD", "rates": {"USD": 0.73, ...}}
func NewOpenERAPI(client *http.Client, baseURL string) Provider {
	baseURL = strings.TrimRight(baseURL, "/")

	return &httpProvider{
		id:     OpenERAPIID,
		client: client,
		url: func(base string) string {
			return baseURL + "/" + url.PathEscape(base)
		},
		decode: func(body io.Reader, base string) (map[string]decimal.Decimal, error) {
			var payload struct {
				Result   string                     `json:"result"`
				BaseCode string                     `json:"base_code"`
				Rates    map[string]decimal.Decimal `json:"rates"`
			}

			if err := json.NewDecoder(body).Decode(&payload); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}

			if payload.Result != "success" {
				return nil, fmt.Errorf("result %q", payload.Result)
			}

			if currencypkg.Normalize(payload.BaseCode) != base {
				return nil, fmt.Errorf("base %q, want %q", payload.BaseCode, base)
			}

			return payload.Rates, nil
		},
	}
}

// NewFrankfurter returns a provider for the api.frankfurter.app payload:
//
//	{"amount": 1.0, "base": "CAD", "date": "2024-05-20", "rates": {"USD": 0.73, ...}}
func NewFrankfurter(client *http.Client, baseURL string) Provider {
	baseURL = strings.TrimRight(baseURL, "/")

	return &httpProvider{
		id:     FrankfurterID,
		client: client,
		url: func(base string) string {
			return baseURL + "/latest?from=" + url.QueryEscape(base)
		},
		decode: func(body io.Reader, base string) (map[string]decimal.Decimal, error) {
			var payload struct {
				Amount decimal.Decimal            `json:"amount"`
				Base   string                     `json:"base"`
				Rates  map[string]decimal.Decimal `json:"rates"`
			}

			if err := json.NewDecoder(body).Decode(&payload); err != nil {
				return nil, fmt.Errorf("decode payload: %w", err)
			}

			if currencypkg.Normalize(payload.Base) != base {
				return nil, fmt.Errorf("base %q, want %q", payload.Base, base)
			}

			if !payload.Amount.IsZero() && !payload.Amount.Equal(decimal.NewFromInt(1)) {
				return nil, fmt.Errorf("amount %s, want 1", payload.Amount)
			}

			return payload.Rates, nil
		},
	}
}

// Static serves a fixed rate table quoted against one base currency.
// Rates for other bases are derived as cross rates through that base.
type Static struct {
	id    string
	base  string
	rates map[string]decimal.Decimal
}

// NewStatic returns a Static provider. rates are quoted as 1 base = rate quote.
func NewStatic(id, base string, rates map[string]decimal.Decimal) *Static {
	s := &Static{
		id:    id,
		base:  currencypkg.Normalize(base),
		rates: make(map[string]decimal.Decimal, len(rates)+1),
	}

	for q, r := range rates {
		s.rates[currencypkg.Normalize(q)] = r
	}
	s.rates[s.base] = decimal.NewFromInt(1)

	return s
}

// ID returns the provider id.
func (s *Static) ID() string { return s.id }

// Rates returns the table rebased on base.
func (s *Static) Rates(_ context.Context, base string) (map[string]decimal.Decimal, error) {
	pivot, ok := s.rates[base]
	if !ok || !pivot.IsPositive() {
		return nil, fmt.Errorf("%w: %s has no rate for %s", domain.ErrProviderFailure, s.id, base)
	}

	out := make(map[string]decimal.Decimal, len(s.rates)-1)

	for q, r := range s.rates {
		if q == base {
			continue
		}
		out[q] = r.DivRound(pivot, 10)
	}

	return out, nil
}

// ParseStaticRates parses "USD=0.73,EUR=0.68" into a rate table.
func ParseStaticRates(s string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("static rate %q: missing '='", pair)
		}

		r, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("static rate %q: %w", pair, err)
		}

		rates[currencypkg.Normalize(code)] = r
	}

	return rates, nil
}

// FromConfig builds the providers named in config.RateProviders, in order.
func FromConfig(config configpkg.Config, client *http.Client) ([]Provider, error) {
	var providers []Provider

	for _, name := range strings.Split(config.RateProviders, ",") {
		switch strings.TrimSpace(name) {
		case "":
			continue
		case OpenERAPIID:
			providers = append(providers, NewOpenERAPI(client, config.OpenERAPIURL))
		case FrankfurterID:
			providers = append(providers, NewFrankfurter(client, config.FrankfurterURL))
		case StaticID:
			rates, err := ParseStaticRates(config.StaticRates)
			if err != nil {
				return nil, err
			}
			providers = append(providers, NewStatic(StaticID, config.DefaultBaseCurrency, rates))
		default:
			return nil, fmt.Errorf("unknown rate provider %q", name)
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no rate providers configured")
	}

	return providers, nil
}
