// Package balancedelivery manages delivery layer of group balances.
package balancedelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/errorspkg"
	"github.com/go-petr/splitfx/pkg/web"
)

// Service provides service layer interface needed by balance delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package balancedelivery
type Service interface {
	ComputeGroupBalances(ctx context.Context, groupID uuid.UUID, currency string) (domain.GroupBalances, error)
}

// Handler facilitates balance delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns balance handler.
func NewHandler(bs Service) *Handler {
	return &Handler{service: bs}
}

type getRequest struct {
	GroupID string `uri:"id" binding:"required,uuid"`
}

type getQuery struct {
	Currency string `form:"currency" binding:"omitempty,currency"`
}

// Get handles http request to compute the balances of a group.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req getRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	var query getQuery
	if err := gctx.ShouldBindQuery(&query); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	balances, err := h.service.ComputeGroupBalances(ctx, uuid.MustParse(req.GroupID), query.Currency)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGroupNotFound):
			gctx.JSON(http.StatusNotFound, web.Error(domain.ErrGroupNotFound))
		case errors.Is(err, domain.ErrInvalidCurrency):
			gctx.JSON(http.StatusBadRequest, web.Error(domain.ErrInvalidCurrency))
		default:
			l.Error().Err(err).Send()
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, web.OK(balances))
}
