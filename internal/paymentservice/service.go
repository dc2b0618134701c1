// Package paymentservice manages business logic layer of payments.
package paymentservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/moneypkg"
)

// Repo provides data access layer interface needed by payment service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package paymentservice
type Repo interface {
	Create(ctx context.Context, p domain.Payment) (domain.Payment, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Payment, error)
}

// GroupService provides group lookups needed by payment service layer.
type GroupService interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Group, error)
	GetMember(ctx context.Context, groupID, memberID uuid.UUID) (domain.Member, error)
}

// Service facilitates payment service layer logic.
type Service struct {
	repo   Repo
	groups GroupService
	now    func() time.Time
}

// New returns payment service struct to manage payment business logic.
func New(repo Repo, groups GroupService) *Service {
	return &Service{
		repo:   repo,
		groups: groups,
		now:    time.Now,
	}
}

// Create records a direct payment from one active member to another.
func (s *Service) Create(ctx context.Context, arg domain.CreatePaymentParams) (domain.Payment, coercepkg.Warnings, error) {
	if arg.PayerID == arg.PayeeID {
		return domain.Payment{}, nil, domain.ErrSelfPayment
	}

	amount, err := moneypkg.Parse(arg.Amount)
	if err != nil {
		return domain.Payment{}, nil, domain.ErrInvalidAmount
	}

	if !amount.IsPositive() {
		return domain.Payment{}, nil, domain.ErrNegativeAmount
	}

	group, err := s.groups.Get(ctx, arg.GroupID)
	if err != nil {
		return domain.Payment{}, nil, err
	}

	if group.IsDeleted() {
		return domain.Payment{}, nil, domain.ErrGroupDeleted
	}

	if err := s.checkActive(ctx, group.ID, arg.PayerID, domain.ErrPayerNotMember); err != nil {
		return domain.Payment{}, nil, err
	}

	if err := s.checkActive(ctx, group.ID, arg.PayeeID, domain.ErrPayeeNotMember); err != nil {
		return domain.Payment{}, nil, err
	}

	var warnings coercepkg.Warnings

	currency := group.Currency
	if arg.Currency != "" {
		currency = warnings.Currency("currency", arg.Currency)
	}

	warnings.Log(zerolog.Ctx(ctx))

	created, err := s.repo.Create(ctx, domain.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		PayerID:  arg.PayerID,
		PayeeID:  arg.PayeeID,
		Amount:   amount,
		Currency: currency,
		Note:     strings.TrimSpace(arg.Note),
		PaidAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.Payment{}, nil, err
	}

	return created, warnings, nil
}

// checkActive returns notMember unless memberID is an active member of the group.
func (s *Service) checkActive(ctx context.Context, groupID, memberID uuid.UUID, notMember error) error {
	m, err := s.groups.GetMember(ctx, groupID, memberID)

	switch {
	case err == nil && m.Active():
		return nil
	case err == nil, errors.Is(err, domain.ErrMemberNotFound):
		return notMember
	default:
		return err
	}
}

// List returns payments of the group.
func (s *Service) List(ctx context.Context, groupID uuid.UUID) ([]domain.Payment, error) {
	if _, err := s.groups.Get(ctx, groupID); err != nil {
		return nil, err
	}

	return s.repo.ListByGroup(ctx, groupID)
}
