// Package expensedelivery manages delivery layer of expenses.
package expensedelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
	"github.com/go-petr/splitfx/pkg/web"
)

// Service provides service layer interface needed by expense delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package expensedelivery
type Service interface {
	Create(ctx context.Context, arg domain.CreateExpenseParams) (domain.Expense, coercepkg.Warnings, error)
	List(ctx context.Context, groupID uuid.UUID) ([]domain.Expense, error)
	Delete(ctx context.Context, groupID, id uuid.UUID) error
	SetSettled(ctx context.Context, groupID, expenseID, memberID uuid.UUID, settled bool) (domain.Participant, error)
}

// Handler facilitates expense delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns expense handler.
func NewHandler(es Service) *Handler {
	return &Handler{service: es}
}

type groupRequest struct {
	GroupID string `uri:"id" binding:"required,uuid"`
}

type expenseRequest struct {
	GroupID   string `uri:"id" binding:"required,uuid"`
	ExpenseID string `uri:"expenseID" binding:"required,uuid"`
}

type shareRequest struct {
	GroupID   string `uri:"id" binding:"required,uuid"`
	ExpenseID string `uri:"expenseID" binding:"required,uuid"`
	MemberID  string `uri:"memberID" binding:"required,uuid"`
}

type settleRequest struct {
	Settled *bool `json:"settled" binding:"required"`
}

type participantRequest struct {
	MemberID string          `json:"memberId" binding:"required,uuid"`
	Value    decimal.Decimal `json:"value"`
}

type createRequest struct {
	Description  string               `json:"description" binding:"max=200"`
	Amount       decimal.Decimal      `json:"amount"`
	Currency     string               `json:"currency"`
	PaidBy       string               `json:"paidBy" binding:"required,uuid"`
	SplitPolicy  string               `json:"splitPolicy" binding:"omitempty,oneof=equal exact percentage shares"`
	Category     string               `json:"category"`
	ExpenseDate  string               `json:"expenseDate" binding:"omitempty,datetime=2006-01-02"`
	Participants []participantRequest `json:"participants" binding:"dive"`
}

type expensesData struct {
	Expenses []domain.Expense `json:"expenses"`
}

func writeError(gctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrNegativeAmount),
		errors.Is(err, domain.ErrInvalidSplitInput),
		errors.Is(err, domain.ErrPayerNotMember),
		errors.Is(err, domain.ErrParticipantNotMember):
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrExpenseNotFound),
		errors.Is(err, domain.ErrParticipantNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(err))
	case errors.Is(err, domain.ErrGroupDeleted):
		gctx.JSON(http.StatusConflict, web.Error(err))
	default:
		zerolog.Ctx(gctx.Request.Context()).Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

// Create handles http request to add an expense to a group.
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

	arg := domain.CreateExpenseParams{
		GroupID:      uuid.MustParse(uri.GroupID),
		Description:  req.Description,
		Amount:       req.Amount.String(),
		Currency:     req.Currency,
		PaidBy:       uuid.MustParse(req.PaidBy),
		SplitPolicy:  domain.SplitPolicy(req.SplitPolicy),
		Category:     req.Category,
		Participants: make([]domain.SplitParticipant, len(req.Participants)),
	}

	if req.ExpenseDate != "" {
		// Format is checked by the datetime binding.
		arg.ExpenseDate, _ = time.Parse(time.DateOnly, req.ExpenseDate)
	}

	for i, p := range req.Participants {
		arg.Participants[i] = domain.SplitParticipant{
			MemberID: uuid.MustParse(p.MemberID),
			Value:    p.Value,
		}
	}

	expense, warnings, err := h.service.Create(ctx, arg)
	if err != nil {
		writeError(gctx, err)
		return
	}

	res := web.OK(expense)
	res.Warnings = warnings

	gctx.JSON(http.StatusCreated, res)
}

// List handles http request to list live expenses of a group.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req groupRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	expenses, err := h.service.List(ctx, uuid.MustParse(req.GroupID))
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(expensesData{Expenses: expenses}))
}

// Delete handles http request to soft-delete an expense.
func (h *Handler) Delete(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req expenseRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	if err := h.service.Delete(ctx, uuid.MustParse(req.GroupID), uuid.MustParse(req.ExpenseID)); err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(nil))
}

// SetSettled handles http request to mark a member's share of an expense settled.
func (h *Handler) SetSettled(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var uri shareRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	var req settleRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	p, err := h.service.SetSettled(ctx,
		uuid.MustParse(uri.GroupID), uuid.MustParse(uri.ExpenseID), uuid.MustParse(uri.MemberID), *req.Settled)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(p))
}
