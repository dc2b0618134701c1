// Package paymentrepo manages repository layer of payments.
package paymentrepo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/dbpkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
)

// RepoPGS facilitates payment repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns payment RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

type scanner interface {
	Scan(dest ...any) error
}

const paymentColumns = `id, group_id, payer_id, payee_id, amount, currency, note, paid_at`

func scanPayment(row scanner) (domain.Payment, error) {
	var p domain.Payment

	err := row.Scan(
		&p.ID,
		&p.GroupID,
		&p.PayerID,
		&p.PayeeID,
		&p.Amount,
		&p.Currency,
		&p.Note,
		&p.PaidAt,
	)

	return p, err
}

const createQuery = `
INSERT INTO
    payments (id, group_id, payer_id, payee_id, amount, currency, note, paid_at)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + paymentColumns

// Create records the payment and then returns it.
func (r *RepoPGS) Create(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		p.ID,
		p.GroupID,
		p.PayerID,
		p.PayeeID,
		p.Amount,
		p.Currency,
		p.Note,
		p.PaidAt,
	)

	created, err := scanPayment(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", p)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "payments_group_id_fkey":
				return created, domain.ErrGroupNotFound
			case "payments_payer_id_fkey":
				return created, domain.ErrPayerNotMember
			case "payments_payee_id_fkey":
				return created, domain.ErrPayeeNotMember
			case "payments_amount_check":
				return created, domain.ErrNegativeAmount
			case "payments_distinct_members_check":
				return created, domain.ErrSelfPayment
			}
		}

		return created, errorspkg.ErrInternal
	}

	return created, nil
}

const listQuery = `
SELECT
	` + paymentColumns + `
FROM payments
WHERE group_id = $1
ORDER BY paid_at, id
`

// ListByGroup returns the payments of the group in the order they were made.
func (r *RepoPGS) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Payment, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, groupID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Payment{}

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, p)
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
