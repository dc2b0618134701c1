// Package expenserepo manages repository layer of expenses.
package expenserepo

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

// RepoPGS facilitates expense repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns expense RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

const expenseColumns = `id, group_id, description, amount, currency, paid_by, split_policy, category, expense_date, created_at, deleted_at`

func scanExpense(row scanner) (domain.Expense, error) {
	var e domain.Expense

	err := row.Scan(
		&e.ID,
		&e.GroupID,
		&e.Description,
		&e.Amount,
		&e.Currency,
		&e.PaidBy,
		&e.SplitPolicy,
		&e.Category,
		&e.ExpenseDate,
		&e.CreatedAt,
		&e.DeletedAt,
	)
	e.ExpenseDate = e.ExpenseDate.UTC()

	return e, err
}

var constraintErrors = map[string]error{
	"expenses_group_id_fkey":               domain.ErrGroupNotFound,
	"expenses_paid_by_fkey":                domain.ErrPayerNotMember,
	"expenses_amount_check":                domain.ErrNegativeAmount,
	"expense_participants_member_id_fkey":  domain.ErrParticipantNotMember,
	"expense_participants_pkey":            domain.ErrInvalidSplitInput,
	"expense_participants_expense_id_fkey": domain.ErrExpenseNotFound,
}

const createQuery = `
INSERT INTO
    expenses (id, group_id, description, amount, currency, paid_by, split_policy, category, expense_date)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + expenseColumns

const addParticipantQuery = `
INSERT INTO
    expense_participants (expense_id, member_id, share_amount, settled, position)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING expense_id, member_id, share_amount, settled
`

// Create creates the expense with its participants within a single
// transaction and then returns it.
func (r *RepoPGS) Create(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	l := zerolog.Ctx(ctx)

	var created domain.Expense

	err := dbpkg.WithTx(ctx, r.db, func(db dbpkg.SQLInterface) error {
		var err error

		created, err = scanExpense(db.QueryRowContext(ctx, createQuery,
			e.ID,
			e.GroupID,
			e.Description,
			e.Amount,
			e.Currency,
			e.PaidBy,
			e.SplitPolicy,
			e.Category,
			e.ExpenseDate,
		))
		if err != nil {
			return err
		}

		created.Participants = make([]domain.Participant, 0, len(e.Participants))

		for i, p := range e.Participants {
			var cp domain.Participant

			err := db.QueryRowContext(ctx, addParticipantQuery, created.ID, p.MemberID, p.ShareAmount, p.Settled, i).
				Scan(&cp.ExpenseID, &cp.MemberID, &cp.ShareAmount, &cp.Settled)
			if err != nil {
				return err
			}

			created.Participants = append(created.Participants, cp)
		}

		return nil
	})
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", e)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if mapped, ok := constraintErrors[pqErr.Constraint]; ok {
				return domain.Expense{}, mapped
			}
		}

		return domain.Expense{}, errorspkg.ErrInternal
	}

	return created, nil
}

const getQuery = `
SELECT
	` + expenseColumns + `
FROM expenses
WHERE group_id = $1 AND id = $2 AND deleted_at IS NULL
`

// Get returns the live expense of the group with its participants.
func (r *RepoPGS) Get(ctx context.Context, groupID, id uuid.UUID) (domain.Expense, error) {
	l := zerolog.Ctx(ctx)

	e, err := scanExpense(r.db.QueryRowContext(ctx, getQuery, groupID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Send()
			return e, domain.ErrExpenseNotFound
		}

		l.Error().Err(err).Send()

		return e, errorspkg.ErrInternal
	}

	byExpense, err := r.participants(ctx, listParticipantsByExpenseQuery, id)
	if err != nil {
		return domain.Expense{}, err
	}

	e.Participants = byExpense[e.ID]

	return e, nil
}

const listQuery = `
SELECT
	` + expenseColumns + `
FROM expenses
WHERE group_id = $1 AND deleted_at IS NULL
ORDER BY expense_date, created_at, id
`

const listParticipantsByGroupQuery = `
SELECT
	p.expense_id, p.member_id, p.share_amount, p.settled
FROM expense_participants p
JOIN expenses e ON e.id = p.expense_id
WHERE e.group_id = $1 AND e.deleted_at IS NULL
ORDER BY p.expense_id, p.position
`

const listParticipantsByExpenseQuery = `
SELECT
	expense_id, member_id, share_amount, settled
FROM expense_participants
WHERE expense_id = $1
ORDER BY position
`

// ListByGroup returns the live expenses of the group with their participants.
func (r *RepoPGS) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Expense, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, groupID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Expense{}

	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	byExpense, err := r.participants(ctx, listParticipantsByGroupQuery, groupID)
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].Participants = byExpense[items[i].ID]
	}

	return items, nil
}

func (r *RepoPGS) participants(ctx context.Context, query string, id uuid.UUID) (map[uuid.UUID][]domain.Participant, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	byExpense := make(map[uuid.UUID][]domain.Participant)

	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ExpenseID, &p.MemberID, &p.ShareAmount, &p.Settled); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		byExpense[p.ExpenseID] = append(byExpense[p.ExpenseID], p)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return byExpense, nil
}

const setSettledQuery = `
UPDATE expense_participants
SET settled = $3
WHERE expense_id = $1 AND member_id = $2
RETURNING expense_id, member_id, share_amount, settled
`

// SetSettled marks the member's share of the expense settled or not.
func (r *RepoPGS) SetSettled(ctx context.Context, expenseID, memberID uuid.UUID, settled bool) (domain.Participant, error) {
	l := zerolog.Ctx(ctx)

	var p domain.Participant

	err := r.db.QueryRowContext(ctx, setSettledQuery, expenseID, memberID, settled).
		Scan(&p.ExpenseID, &p.MemberID, &p.ShareAmount, &p.Settled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Send()
			return p, domain.ErrParticipantNotFound
		}

		l.Error().Err(err).Send()

		return p, errorspkg.ErrInternal
	}

	return p, nil
}

const softDeleteQuery = `
UPDATE expenses
SET deleted_at = $3
WHERE group_id = $1 AND id = $2 AND deleted_at IS NULL
`

// SoftDelete marks the expense deleted at deletedAt.
func (r *RepoPGS) SoftDelete(ctx context.Context, groupID, id uuid.UUID, deletedAt time.Time) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, softDeleteQuery, groupID, id, deletedAt)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	n, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	if n == 0 {
		return domain.ErrExpenseNotFound
	}

	return nil
}
