// Package groupdelivery manages delivery layer of groups and membership.
package groupdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
	"github.com/go-petr/splitfx/pkg/web"
)

// Service provides service layer interface needed by group delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package groupdelivery
type Service interface {
	Create(ctx context.Context, name, currency, adminName string) (domain.Group, domain.Member, coercepkg.Warnings, error)
	Join(ctx context.Context, inviteCode, displayName string) (domain.Group, domain.Member, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Group, error)
	Delete(ctx context.Context, id uuid.UUID) (domain.Group, error)
	Recover(ctx context.Context, id uuid.UUID) (domain.Group, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error)
	Leave(ctx context.Context, groupID, memberID uuid.UUID) (domain.Member, error)
}

// Handler facilitates group delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns group handler.
func NewHandler(gs Service) *Handler {
	return &Handler{service: gs}
}

type membershipData struct {
	Group  domain.Group  `json:"group"`
	Member domain.Member `json:"member"`
}

type membersData struct {
	Members []domain.Member `json:"members"`
}

type groupRequest struct {
	GroupID string `uri:"id" binding:"required,uuid"`
}

type memberRequest struct {
	GroupID  string `uri:"id" binding:"required,uuid"`
	MemberID string `uri:"memberID" binding:"required,uuid"`
}

func writeError(gctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrInviteCodeNotFound),
		errors.Is(err, domain.ErrMemberNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(err))
	case errors.Is(err, domain.ErrGroupDeleted),
		errors.Is(err, domain.ErrGroupNotDeleted),
		errors.Is(err, domain.ErrMemberLeft):
		gctx.JSON(http.StatusConflict, web.Error(err))
	case errors.Is(err, domain.ErrRecoveryExpired):
		gctx.JSON(http.StatusGone, web.Error(err))
	default:
		zerolog.Ctx(gctx.Request.Context()).Error().Err(err).Send()
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

func bindURI(gctx *gin.Context, req any) bool {
	if err := gctx.ShouldBindUri(req); err != nil {
		zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return false
	}

	return true
}

type createRequest struct {
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	DisplayName string `json:"displayName" binding:"required,max=64"`
}

// Create handles http request to create a group. The caller becomes its admin.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	group, admin, warnings, err := h.service.Create(ctx, req.Name, req.Currency, req.DisplayName)
	if err != nil {
		writeError(gctx, err)
		return
	}

	res := web.OK(membershipData{Group: group, Member: admin})
	res.Warnings = warnings

	gctx.JSON(http.StatusCreated, res)
}

type joinRequest struct {
	InviteCode  string `json:"inviteCode" binding:"required"`
	DisplayName string `json:"displayName" binding:"required,max=64"`
}

// Join handles http request to join a group by its invite code.
func (h *Handler) Join(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req joinRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.ErrorMsg(web.BindErrorMsg(err)))

		return
	}

	group, member, err := h.service.Join(ctx, req.InviteCode, req.DisplayName)
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(membershipData{Group: group, Member: member}))
}

// Get handles http request to get a group.
func (h *Handler) Get(gctx *gin.Context) {
	h.groupAction(gctx, h.service.Get)
}

// Delete handles http request to soft-delete a group.
func (h *Handler) Delete(gctx *gin.Context) {
	h.groupAction(gctx, h.service.Delete)
}

// Recover handles http request to recover a deleted group.
func (h *Handler) Recover(gctx *gin.Context) {
	h.groupAction(gctx, h.service.Recover)
}

func (h *Handler) groupAction(gctx *gin.Context, action func(context.Context, uuid.UUID) (domain.Group, error)) {
	var req groupRequest
	if !bindURI(gctx, &req) {
		return
	}

	group, err := action(gctx.Request.Context(), uuid.MustParse(req.GroupID))
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(group))
}

// ListMembers handles http request to list members of a group, including those who left.
func (h *Handler) ListMembers(gctx *gin.Context) {
	var req groupRequest
	if !bindURI(gctx, &req) {
		return
	}

	members, err := h.service.ListMembers(gctx.Request.Context(), uuid.MustParse(req.GroupID))
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(membersData{Members: members}))
}

// Leave handles http request to remove a member from a group.
func (h *Handler) Leave(gctx *gin.Context) {
	var req memberRequest
	if !bindURI(gctx, &req) {
		return
	}

	member, err := h.service.Leave(gctx.Request.Context(), uuid.MustParse(req.GroupID), uuid.MustParse(req.MemberID))
	if err != nil {
		writeError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.OK(member))
}
