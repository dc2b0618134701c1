package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kinds of ledger items that can fail normalization.
const (
	ItemExpense = "expense"
	ItemPayment = "payment"
)

// MemberBalance is one member's position in the reporting currency.
// Net is positive when the member is owed money and negative when they owe.
type MemberBalance struct {
	MemberID uuid.UUID       `json:"member_id"`
	Paid     decimal.Decimal `json:"paid"`
	Owed     decimal.Decimal `json:"owed"`
	Net      decimal.Decimal `json:"net"`
}

// Transfer is one suggested settlement payment.
type Transfer struct {
	From   uuid.UUID       `json:"from"`
	To     uuid.UUID       `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// DebtPair identifies a debtor and a creditor.
type DebtPair struct {
	Debtor   uuid.UUID
	Creditor uuid.UUID
}

// UnresolvedItem is an expense or payment left out of the balances because its
// currency could not be normalized.
type UnresolvedItem struct {
	Kind     string          `json:"kind"`
	ID       uuid.UUID       `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Reason   string          `json:"reason"`
}

// GroupBalances is the aggregated balance report of a group.
type GroupBalances struct {
	GroupID    uuid.UUID        `json:"group_id"`
	Currency   string           `json:"currency"`
	Members    []MemberBalance  `json:"members"`
	Transfers  []Transfer       `json:"transfers"`
	Unresolved []UnresolvedItem `json:"unresolved"`
	Partial    bool             `json:"partial"`
	StaleRates bool             `json:"stale_rates"`
}

// Pairs returns the suggested transfers keyed by (debtor, creditor).
func (b GroupBalances) Pairs() map[DebtPair]decimal.Decimal {
	pairs := make(map[DebtPair]decimal.Decimal, len(b.Transfers))

	for _, t := range b.Transfers {
		k := DebtPair{Debtor: t.From, Creditor: t.To}
		pairs[k] = pairs[k].Add(t.Amount)
	}

	return pairs
}
