// Package conversiondelivery manages delivery layer of currency conversion.
package conversiondelivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
	"github.com/go-petr/splitfx/pkg/web"
)

// Service provides service layer interface needed by conversion delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package conversiondelivery
type Service interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error)
	Refresh(ctx context.Context, base string) (domain.RateUpdate, error)
	Status(ctx context.Context) (domain.RateStatus, error)
}

// Handler facilitates conversion delivery layer logic.
type Handler struct {
	service     Service
	defaultBase string
}

// NewHandler returns conversion handler. Updates without a base currency refresh defaultBase.
func NewHandler(cs Service, defaultBase string) *Handler {
	return &Handler{
		service:     cs,
		defaultBase: defaultBase,
	}
}

// StaleRateUsed is the warning rule attached to conversions made with a stale rate.
const StaleRateUsed = "stale_rate_used"

var errAmountNotPositive = errors.New("amount must be greater than zero")

type convertRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	FromCurrency string          `json:"fromCurrency" binding:"required"`
	ToCurrency   string          `json:"toCurrency" binding:"required"`
}

type convertQuery struct {
	Amount string `form:"amount" binding:"required"`
	From   string `form:"from" binding:"required"`
	To     string `form:"to" binding:"required"`
}

// Convert handles http request to convert an amount given in the JSON body.
func (h *Handler) Convert(gctx *gin.Context) {
	l := zerolog.Ctx(gctx.Request.Context())

	var req convertRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	h.convert(gctx, req.Amount, req.FromCurrency, req.ToCurrency)
}

// ConvertQuery handles http request to convert an amount given in the query string.
func (h *Handler) ConvertQuery(gctx *gin.Context) {
	l := zerolog.Ctx(gctx.Request.Context())

	var req convertQuery
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidAmount))

		return
	}

	h.convert(gctx, amount, req.From, req.To)
}

func (h *Handler) convert(gctx *gin.Context, amount decimal.Decimal, from, to string) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	if !amount.IsPositive() {
		gctx.JSON(http.StatusBadRequest, web.Error(errAmountNotPositive))
		return
	}

	from, to = currencypkg.Normalize(from), currencypkg.Normalize(to)
	if !currencypkg.IsSupportedCurrency(from) || !currencypkg.IsSupportedCurrency(to) {
		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidCurrency))
		return
	}

	conv, err := h.service.Convert(ctx, amount, from, to)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCurrency):
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		case errors.Is(err, domain.ErrRateUnavailable):
			l.Warn().Err(err).Str("from", from).Str("to", to).Send()
			gctx.JSON(http.StatusServiceUnavailable, web.Error(domain.ErrRateUnavailable))
		default:
			l.Error().Err(err).Send()
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	res := web.OK(conv)
	if conv.Stale {
		res.Warnings = coercepkg.Warnings{{Field: "rate", Rule: StaleRateUsed, From: conv.Source}}
	}

	gctx.JSON(http.StatusOK, res)
}

type updateRequest struct {
	BaseCurrency string `json:"baseCurrency"`
}

type updateData struct {
	BaseCurrency string    `json:"baseCurrency"`
	RatesUpdated int       `json:"ratesUpdated"`
	Source       string    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
}

// Update handles http request to refresh the cached rates for a base currency.
func (h *Handler) Update(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req updateRequest
	// An empty body means the default base.
	if gctx.Request.ContentLength != 0 {
		if err := gctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			l.Info().Err(err).Send()
			gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

			return
		}
	}

	base := currencypkg.Normalize(req.BaseCurrency)
	if base == "" {
		base = h.defaultBase
	}

	if !currencypkg.IsSupportedCurrency(base) {
		gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidCurrency))
		return
	}

	update, err := h.service.Refresh(ctx, base)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCurrency):
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		case errors.Is(err, domain.ErrAllProvidersFailed):
			l.Warn().Err(err).Str("base", base).Send()
			gctx.JSON(http.StatusServiceUnavailable, web.Error(domain.ErrAllProvidersFailed))
		default:
			l.Error().Err(err).Send()
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, web.OK(updateData{
		BaseCurrency: update.Base,
		RatesUpdated: len(update.Rates),
		Source:       update.Source,
		Timestamp:    update.FetchedAt,
	}))
}

// Status handles http request to report how fresh the cached rates are.
func (h *Handler) Status(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	status, err := h.service.Status(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.OK(status))
}
