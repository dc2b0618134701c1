// Package groupservice manages business logic layer of groups and membership.
package groupservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/randompkg"
)

// DefaultRecoveryWindow is how long a deleted group can be recovered.
const DefaultRecoveryWindow = 7 * 24 * time.Hour

// inviteAttempts bounds retries on invite code collisions.
const inviteAttempts = 5

// Repo provides data access layer interface needed by group service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package groupservice
type Repo interface {
	Create(ctx context.Context, arg domain.CreateGroupParams) (domain.Group, domain.Member, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Group, error)
	GetByInviteCode(ctx context.Context, code string) (domain.Group, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt, recoverUntil time.Time) (domain.Group, error)
	Restore(ctx context.Context, id uuid.UUID) (domain.Group, error)
	AddMember(ctx context.Context, arg domain.CreateMemberParams) (domain.Member, error)
	GetMember(ctx context.Context, groupID, memberID uuid.UUID) (domain.Member, error)
	Leave(ctx context.Context, groupID, memberID uuid.UUID, leftAt time.Time) (domain.Member, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error)
}

// Service facilitates group service layer logic.
type Service struct {
	repo           Repo
	recoveryWindow time.Duration
	now            func() time.Time
	inviteCode     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithRecoveryWindow sets how long deleted groups stay recoverable.
func WithRecoveryWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recoveryWindow = d
		}
	}
}

// WithClock sets the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithInviteCodes sets the invite code generator.
func WithInviteCodes(gen func() string) Option {
	return func(s *Service) { s.inviteCode = gen }
}

// New returns group service struct to manage group business logic.
func New(repo Repo, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		recoveryWindow: DefaultRecoveryWindow,
		now:            time.Now,
		inviteCode:     randompkg.InviteCode,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create creates a group whose creator becomes its admin.
func (s *Service) Create(ctx context.Context, name, currency, adminName string) (domain.Group, domain.Member, coercepkg.Warnings, error) {
	l := zerolog.Ctx(ctx)

	var warnings coercepkg.Warnings

	arg := domain.CreateGroupParams{
		ID:        uuid.New(),
		Name:      warnings.GroupName(name),
		Currency:  warnings.Currency("currency", currency),
		AdminID:   uuid.New(),
		AdminName: strings.TrimSpace(adminName),
	}

	warnings.Log(l)

	for attempt := 1; ; attempt++ {
		arg.InviteCode = s.inviteCode()

		group, admin, err := s.repo.Create(ctx, arg)
		if errors.Is(err, domain.ErrInviteCodeTaken) && attempt < inviteAttempts {
			l.Info().Int("attempt", attempt).Msg("invite code collision")
			continue
		}

		if err != nil {
			return domain.Group{}, domain.Member{}, nil, err
		}

		return group, admin, warnings, nil
	}
}

// Join adds a new member to the group using the invite code.
func (s *Service) Join(ctx context.Context, inviteCode, displayName string) (domain.Group, domain.Member, error) {
	group, err := s.repo.GetByInviteCode(ctx, strings.ToUpper(strings.TrimSpace(inviteCode)))
	if err != nil {
		return domain.Group{}, domain.Member{}, err
	}

	if group.IsDeleted() {
		return domain.Group{}, domain.Member{}, domain.ErrGroupDeleted
	}

	member, err := s.repo.AddMember(ctx, domain.CreateMemberParams{
		ID:          uuid.New(),
		GroupID:     group.ID,
		DisplayName: strings.TrimSpace(displayName),
		Role:        domain.RoleMember,
	})
	if err != nil {
		return domain.Group{}, domain.Member{}, err
	}

	return group, member, nil
}

// Get returns the group, deleted or not.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes the group. It stays recoverable for the recovery window.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	group, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Group{}, err
	}

	if group.IsDeleted() {
		return domain.Group{}, domain.ErrGroupDeleted
	}

	now := s.now().UTC()

	return s.repo.SoftDelete(ctx, id, now, now.Add(s.recoveryWindow))
}

// Recover restores a deleted group while its recovery deadline has not passed.
func (s *Service) Recover(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	group, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Group{}, err
	}

	if !group.IsDeleted() {
		return domain.Group{}, domain.ErrGroupNotDeleted
	}

	if !group.CanRecover(s.now()) {
		return domain.Group{}, domain.ErrRecoveryExpired
	}

	return s.repo.Restore(ctx, id)
}

// ListMembers returns every member of the group, including those who left.
func (s *Service) ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error) {
	if _, err := s.repo.Get(ctx, groupID); err != nil {
		return nil, err
	}

	return s.repo.ListMembers(ctx, groupID)
}

// GetMember returns the member of the group.
func (s *Service) GetMember(ctx context.Context, groupID, memberID uuid.UUID) (domain.Member, error) {
	return s.repo.GetMember(ctx, groupID, memberID)
}

// Leave marks the member as departed. Its expenses and payments stay in the group.
func (s *Service) Leave(ctx context.Context, groupID, memberID uuid.UUID) (domain.Member, error) {
	group, err := s.repo.Get(ctx, groupID)
	if err != nil {
		return domain.Member{}, err
	}

	if group.IsDeleted() {
		return domain.Member{}, domain.ErrGroupDeleted
	}

	member, err := s.repo.GetMember(ctx, groupID, memberID)
	if err != nil {
		return domain.Member{}, err
	}

	if !member.Active() {
		return domain.Member{}, domain.ErrMemberLeft
	}

	return s.repo.Leave(ctx, groupID, memberID, s.now().UTC())
}
