// Package grouprepo manages repository layer of groups and their members.
package grouprepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/dbpkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
)

// RepoPGS facilitates group repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns group RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

const groupColumns = `id, name, currency, invite_code, created_at, deleted_at, recover_until`

func scanGroup(row scanner) (domain.Group, error) {
	var g domain.Group

	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.Currency,
		&g.InviteCode,
		&g.CreatedAt,
		&g.DeletedAt,
		&g.RecoverUntil,
	)

	return g, err
}

const memberColumns = `id, group_id, display_name, role, joined_at, left_at`

func scanMember(row scanner) (domain.Member, error) {
	var m domain.Member

	err := row.Scan(
		&m.ID,
		&m.GroupID,
		&m.DisplayName,
		&m.Role,
		&m.JoinedAt,
		&m.LeftAt,
	)

	return m, err
}

const createQuery = `
INSERT INTO
    groups (id, name, currency, invite_code)
VALUES
    ($1, $2, $3, $4)
RETURNING ` + groupColumns

// Create creates the group together with its admin member and returns both.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateGroupParams) (domain.Group, domain.Member, error) {
	l := zerolog.Ctx(ctx)

	var (
		g domain.Group
		m domain.Member
	)

	err := dbpkg.WithTx(ctx, r.db, func(db dbpkg.SQLInterface) error {
		var err error

		g, err = scanGroup(db.QueryRowContext(ctx, createQuery, arg.ID, arg.Name, arg.Currency, arg.InviteCode))
		if err != nil {
			return err
		}

		m, err = NewRepoPGS(db).AddMember(ctx, domain.CreateMemberParams{
			ID:          arg.AdminID,
			GroupID:     g.ID,
			DisplayName: arg.AdminName,
			Role:        domain.RoleAdmin,
		})

		return err
	})
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "groups_invite_code_key" {
			return g, m, domain.ErrInviteCodeTaken
		}

		return g, m, errorspkg.ErrInternal
	}

	return g, m, nil
}

const getQuery = `
SELECT
	` + groupColumns + `
FROM groups
WHERE id = $1
`

// Get returns the group with the given id, deleted or not.
func (r *RepoPGS) Get(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return r.getGroup(ctx, getQuery, id, domain.ErrGroupNotFound)
}

const getByInviteCodeQuery = `
SELECT
	` + groupColumns + `
FROM groups
WHERE invite_code = $1
`

// GetByInviteCode returns the group using the invite code.
func (r *RepoPGS) GetByInviteCode(ctx context.Context, code string) (domain.Group, error) {
	return r.getGroup(ctx, getByInviteCodeQuery, code, domain.ErrInviteCodeNotFound)
}

const softDeleteQuery = `
UPDATE groups
SET deleted_at = $2, recover_until = $3
WHERE id = $1
RETURNING ` + groupColumns

// SoftDelete marks the group deleted at deletedAt, recoverable until recoverUntil.
func (r *RepoPGS) SoftDelete(ctx context.Context, id uuid.UUID, deletedAt, recoverUntil time.Time) (domain.Group, error) {
	return r.getGroup(ctx, softDeleteQuery, id, domain.ErrGroupNotFound, deletedAt, recoverUntil)
}

const restoreQuery = `
UPDATE groups
SET deleted_at = NULL, recover_until = NULL
WHERE id = $1
RETURNING ` + groupColumns

// Restore clears the deletion marks of the group.
func (r *RepoPGS) Restore(ctx context.Context, id uuid.UUID) (domain.Group, error) {
	return r.getGroup(ctx, restoreQuery, id, domain.ErrGroupNotFound)
}

func (r *RepoPGS) getGroup(ctx context.Context, query string, key any, notFound error, args ...any) (domain.Group, error) {
	l := zerolog.Ctx(ctx)

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, append([]any{key}, args...)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Send()
			return g, notFound
		}

		l.Error().Err(err).Send()

		return g, errorspkg.ErrInternal
	}

	return g, nil
}

const addMemberQuery = `
INSERT INTO
    group_members (id, group_id, display_name, role)
VALUES
    ($1, $2, $3, $4)
RETURNING ` + memberColumns

// AddMember adds a member to the group and returns it.
func (r *RepoPGS) AddMember(ctx context.Context, arg domain.CreateMemberParams) (domain.Member, error) {
	l := zerolog.Ctx(ctx)

	m, err := scanMember(r.db.QueryRowContext(ctx, addMemberQuery, arg.ID, arg.GroupID, arg.DisplayName, arg.Role))
	if err != nil {
		l.Error().Err(err).Msgf("AddMember(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "group_members_group_id_fkey" {
			return m, domain.ErrGroupNotFound
		}

		return m, errorspkg.ErrInternal
	}

	return m, nil
}

const getMemberQuery = `
SELECT
	` + memberColumns + `
FROM group_members
WHERE group_id = $1 AND id = $2
`

// GetMember returns a member of the group, including one who left.
func (r *RepoPGS) GetMember(ctx context.Context, groupID, memberID uuid.UUID) (domain.Member, error) {
	return r.getMember(ctx, getMemberQuery, groupID, memberID)
}

const leaveQuery = `
UPDATE group_members
SET left_at = $3
WHERE group_id = $1 AND id = $2
RETURNING ` + memberColumns

// Leave marks the member as departed at leftAt.
func (r *RepoPGS) Leave(ctx context.Context, groupID, memberID uuid.UUID, leftAt time.Time) (domain.Member, error) {
	return r.getMember(ctx, leaveQuery, groupID, memberID, leftAt)
}

func (r *RepoPGS) getMember(ctx context.Context, query string, args ...any) (domain.Member, error) {
	l := zerolog.Ctx(ctx)

	m, err := scanMember(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Send()
			return m, domain.ErrMemberNotFound
		}

		l.Error().Err(err).Send()

		return m, errorspkg.ErrInternal
	}

	return m, nil
}

const listMembersQuery = `
SELECT
	` + memberColumns + `
FROM group_members
WHERE group_id = $1
ORDER BY joined_at, id
`

// ListMembers returns every member of the group, including those who left.
func (r *RepoPGS) ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listMembersQuery, groupID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Member{}

	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, m)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
