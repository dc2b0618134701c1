// Package paymentdelivery manages delivery layer of payments.
package paymentdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
	"github.com/go-petr/splitfx/pkg/web"
)

// Service provides service layer interface needed by payment delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package paymentdelivery
type Service interface {
	Create(ctx context.Context, arg domain.CreatePaymentParams) (domain.Payment, coercepkg.Warnings, error)
	List(ctx context.Context, groupID uuid.UUID) ([]domain.Payment, error)
}

// Handler facilitates payment delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns payment handler.
func NewHandler(ps Service) *Handler {
	return &Handler{service: ps}
}

type groupRequest struct {
	GroupID string `uri:"id" binding:"required,uuid"`
}

type createRequest struct {
	PayerID  string          `json:"payerId" binding:"required,uuid"`
	PayeeID  string          `json:"payeeId" binding:"required,uuid,nefield=PayerID"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Note     string          `json:"note" binding:"max=200"`
}

type paymentsData struct {
	Payments []domain.Payment `json:"payments"`
}

func writeError(gctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNegativeAmount),
		errors.Is(err, domain.ErrSelfPayment),
		errors.Is(err, domain.ErrPayerNotMember),
		errors.Is(err, domain.ErrPayeeNotMember):
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case errors.Is(err, domain.ErrGroupNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(err))
	case errors.Is(err, domain.ErrGroupDeleted):
		gctx.JSON(http.StatusConflict, web.Error(err))
	default:
		zerolog.Ctx(gctx.Request.Context()).Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

// Create handles http request to record a payment between two members.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri groupRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	payment, warnings, err := h.service.Create(ctx, domain.CreatePaymentParams{
		GroupID:  uuid.MustParse(uri.GroupID),
		PayerID:  uuid.MustParse(req.PayerID),
		PayeeID:  uuid.MustParse(req.PayeeID),
		Amount:   req.Amount.String(),
		Currency: req.Currency,
		Note:     req.Note,
	})
	if err != nil {
		writeError(gctx, err)
		return
	}

	res := web.OK(payment)
	res.Warnings = warnings

	gctx.JSON(http.StatusCreated, res)
}

// List handles http request to list payments of a group.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req groupRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	payments, err := h.service.List(ctx, uuid.MustParse(req.GroupID))
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(paymentsData{Payments: payments}))
}
