// Package expenseservice manages business logic layer of expenses.
package expenseservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/internal/splitservice"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/moneypkg"
)

// Repo provides data access layer interface needed by expense service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package expenseservice
type Repo interface {
	Create(ctx context.Context, e domain.Expense) (domain.Expense, error)
	Get(ctx context.Context, groupID, id uuid.UUID) (domain.Expense, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Expense, error)
	SetSettled(ctx context.Context, expenseID, memberID uuid.UUID, settled bool) (domain.Participant, error)
	SoftDelete(ctx context.Context, groupID, id uuid.UUID, deletedAt time.Time) error
}

// GroupService provides group lookups needed by expense service layer.
type GroupService interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Group, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error)
}

// Service facilitates expense service layer logic.
type Service struct {
	repo   Repo
	groups GroupService
	now    func() time.Time
}

// New returns expense service struct to manage expense business logic.
func New(repo Repo, groups GroupService) *Service {
	return &Service{
		repo:   repo,
		groups: groups,
		now:    time.Now,
	}
}

// Create validates the expense, splits it between participants and stores it.
// Without participants the expense is split between every active member.
func (s *Service) Create(ctx context.Context, arg domain.CreateExpenseParams) (domain.Expense, coercepkg.Warnings, error) {
	l := zerolog.Ctx(ctx)

	amount, err := moneypkg.Parse(arg.Amount)
	if err != nil {
		return domain.Expense{}, nil, domain.ErrInvalidAmount
	}

	if !amount.IsPositive() {
		return domain.Expense{}, nil, domain.ErrNegativeAmount
	}

	group, err := s.groups.Get(ctx, arg.GroupID)
	if err != nil {
		return domain.Expense{}, nil, err
	}

	if group.IsDeleted() {
		return domain.Expense{}, nil, domain.ErrGroupDeleted
	}

	members, err := s.groups.ListMembers(ctx, group.ID)
	if err != nil {
		return domain.Expense{}, nil, err
	}

	active := activeMembers(members)

	if _, ok := active[arg.PaidBy]; !ok {
		return domain.Expense{}, nil, domain.ErrPayerNotMember
	}

	participants := arg.Participants
	if len(participants) == 0 {
		for _, m := range members {
			if m.Active() {
				participants = append(participants, domain.SplitParticipant{MemberID: m.ID})
			}
		}
	}

	for _, p := range participants {
		if _, ok := active[p.MemberID]; !ok {
			return domain.Expense{}, nil, domain.ErrParticipantNotMember
		}
	}

	var warnings coercepkg.Warnings

	currency := group.Currency
	if arg.Currency != "" {
		currency = warnings.Currency("currency", arg.Currency)
	}

	policy := arg.SplitPolicy
	if policy == "" {
		policy = domain.SplitEqual
	}

	shares, err := splitservice.ComputeShares(amount, currency, policy, participants)
	if err != nil {
		return domain.Expense{}, nil, err
	}

	e := domain.Expense{
		ID:           uuid.New(),
		GroupID:      group.ID,
		Description:  warnings.Description(arg.Description),
		Amount:       amount,
		Currency:     currency,
		PaidBy:       arg.PaidBy,
		SplitPolicy:  policy,
		Category:     warnings.Category(arg.Category),
		ExpenseDate:  warnings.ExpenseDate(arg.ExpenseDate, s.now()),
		Participants: make([]domain.Participant, len(shares)),
	}

	for i, sh := range shares {
		e.Participants[i] = domain.Participant{
			ExpenseID:   e.ID,
			MemberID:    sh.MemberID,
			ShareAmount: sh.ShareAmount,
		}
	}

	warnings.Log(l)

	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return domain.Expense{}, nil, err
	}

	return created, warnings, nil
}

// List returns live expenses of the group.
func (s *Service) List(ctx context.Context, groupID uuid.UUID) ([]domain.Expense, error) {
	if _, err := s.groups.Get(ctx, groupID); err != nil {
		return nil, err
	}

	return s.repo.ListByGroup(ctx, groupID)
}

// Delete soft-deletes the expense so it no longer counts towards balances.
func (s *Service) Delete(ctx context.Context, groupID, id uuid.UUID) error {
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}

	if group.IsDeleted() {
		return domain.ErrGroupDeleted
	}

	return s.repo.SoftDelete(ctx, groupID, id, s.now().UTC())
}

// SetSettled marks a member's share of a live expense settled or unsettled.
// It does not change balances.
func (s *Service) SetSettled(ctx context.Context, groupID, expenseID, memberID uuid.UUID, settled bool) (domain.Participant, error) {
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return domain.Participant{}, err
	}

	if group.IsDeleted() {
		return domain.Participant{}, domain.ErrGroupDeleted
	}

	e, err := s.repo.Get(ctx, groupID, expenseID)
	if err != nil {
		return domain.Participant{}, err
	}

	for _, p := range e.Participants {
		if p.MemberID != memberID {
			continue
		}

		if p.Settled == settled {
			return p, nil
		}

		updated, err := s.repo.SetSettled(ctx, expenseID, memberID, settled)
		if err != nil {
			return domain.Participant{}, err
		}

		zerolog.Ctx(ctx).Info().Stringer("expense_id", expenseID).Stringer("member_id", memberID).
			Bool("settled", settled).Msg("share settlement changed")

		return updated, nil
	}

	return domain.Participant{}, domain.ErrParticipantNotFound
}

func activeMembers(members []domain.Member) map[uuid.UUID]struct{} {
	active := make(map[uuid.UUID]struct{}, len(members))

	for _, m := range members {
		if m.Active() {
			active[m.ID] = struct{}{}
		}
	}

	return active
}
