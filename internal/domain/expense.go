package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrExpenseNotFound indicates that the expense is not found.
	ErrExpenseNotFound = errors.New("expense not found")
	// ErrInvalidAmount indicates invalid amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeAmount indicates a zero or negative amount.
	ErrNegativeAmount = errors.New("amount must be positive")
	// ErrInvalidSplitInput indicates split input that can't produce shares.
	ErrInvalidSplitInput = errors.New("invalid split input")
	// ErrPayerNotMember indicates that the payer is not an active group member.
	ErrPayerNotMember = errors.New("payer is not an active group member")
	// ErrParticipantNotMember indicates that a participant is not an active group member.
	ErrParticipantNotMember = errors.New("participant is not an active group member")
	// ErrParticipantNotFound indicates that the member has no share in the expense.
	ErrParticipantNotFound = errors.New("participant not found")
)

// SplitPolicy names the rule used to divide an expense.
type SplitPolicy string

// Supported split policies.
const (
	SplitEqual      SplitPolicy = "equal"
	SplitExact      SplitPolicy = "exact"
	SplitPercentage SplitPolicy = "percentage"
	SplitShares     SplitPolicy = "shares"
)

// Expense holds data of money spent by one member on behalf of others.
type Expense struct {
	ID           uuid.UUID       `json:"id"`
	GroupID      uuid.UUID       `json:"group_id"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"` // must be positive
	Currency     string          `json:"currency"`
	PaidBy       uuid.UUID       `json:"paid_by"`
	SplitPolicy  SplitPolicy     `json:"split_policy"`
	Category     string          `json:"category"`
	ExpenseDate  time.Time       `json:"expense_date"`
	CreatedAt    time.Time       `json:"created_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
	Participants []Participant   `json:"participants"`
}

// Participant holds one member's share of an expense, in the expense currency.
// Settled is bookkeeping only: balances move through payments.
type Participant struct {
	ExpenseID   uuid.UUID       `json:"expense_id"`
	MemberID    uuid.UUID       `json:"member_id"`
	ShareAmount decimal.Decimal `json:"share_amount"`
	Settled     bool            `json:"settled"`
}

// SplitParticipant is the split input for one member. Value is ignored by the
// equal policy and means an amount, a percentage or a weight for the others.
type SplitParticipant struct {
	MemberID uuid.UUID       `json:"member_id"`
	Value    decimal.Decimal `json:"value"`
}

// Share is one computed share of an expense.
type Share struct {
	MemberID    uuid.UUID       `json:"member_id"`
	ShareAmount decimal.Decimal `json:"share_amount"`
}

// CreateExpenseParams is the input data to create an expense.
type CreateExpenseParams struct {
	GroupID      uuid.UUID
	Description  string
	Amount       string
	Currency     string
	PaidBy       uuid.UUID
	SplitPolicy  SplitPolicy
	Category     string
	ExpenseDate  time.Time
	Participants []SplitParticipant
}
