package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrPaymentNotFound indicates that the payment is not found.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrSelfPayment indicates a payment where payer and payee are the same member.
	ErrSelfPayment = errors.New("payer and payee must differ")
	// ErrPayeeNotMember indicates that the payee is not an active group member.
	ErrPayeeNotMember = errors.New("payee is not an active group member")
)

// Payment holds a direct settlement between two group members.
type Payment struct {
	ID       uuid.UUID       `json:"id"`
	GroupID  uuid.UUID       `json:"group_id"`
	PayerID  uuid.UUID       `json:"payer_id"`
	PayeeID  uuid.UUID       `json:"payee_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Note     string          `json:"note,omitempty"`
	PaidAt   time.Time       `json:"paid_at"`
}

// CreatePaymentParams is the input data to record a payment.
type CreatePaymentParams struct {
	GroupID  uuid.UUID
	PayerID  uuid.UUID
	PayeeID  uuid.UUID
	Amount   string
	Currency string
	Note     string
}
