// Package helpers provides shared test helpers.
package helpers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/internal/expenserepo"
	"github.com/go-petr/splitfx/internal/grouprepo"
	"github.com/go-petr/splitfx/internal/paymentrepo"
	"github.com/go-petr/splitfx/internal/splitservice"
	"github.com/go-petr/splitfx/pkg/configpkg"
	"github.com/go-petr/splitfx/pkg/dbpkg"
	"github.com/go-petr/splitfx/pkg/randompkg"
)

// SetupTX opens a test transaction on the configured database. It is rolled
// back when the test ends and the test is skipped if the database is down.
func SetupTX(t *testing.T) *sql.Tx {
	t.Helper()

	config, err := configpkg.Load("../../configs")
	if err != nil {
		t.Fatalf(`configpkg.Load("../../configs") returned error: %v`, err)
	}

	return dbpkg.SetupTX(t, config.DBDriver, config.DBSource)
}

// SeedGroup creates a random group with its admin inside a test transaction.
func SeedGroup(t *testing.T, tx dbpkg.SQLInterface) (domain.Group, domain.Member) {
	t.Helper()

	arg := domain.CreateGroupParams{
		ID:         uuid.New(),
		Name:       randompkg.Name(),
		Currency:   randompkg.Currency(),
		InviteCode: randompkg.InviteCode(),
		AdminID:    uuid.New(),
		AdminName:  randompkg.Name(),
	}

	group, admin, err := grouprepo.NewRepoPGS(tx).Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("groupRepo.Create(context.Background(), %+v) returned error: %v", arg, err)
	}

	return group, admin
}

// SeedMember adds a random member to the group inside a test transaction.
func SeedMember(t *testing.T, tx dbpkg.SQLInterface, groupID uuid.UUID) domain.Member {
	t.Helper()

	arg := domain.CreateMemberParams{
		ID:          uuid.New(),
		GroupID:     groupID,
		DisplayName: randompkg.Name(),
		Role:        domain.RoleMember,
	}

	member, err := grouprepo.NewRepoPGS(tx).AddMember(context.Background(), arg)
	if err != nil {
		t.Fatalf("groupRepo.AddMember(context.Background(), %+v) returned error: %v", arg, err)
	}

	return member
}

// SeedExpense creates an equally split expense inside a test transaction.
func SeedExpense(t *testing.T, tx dbpkg.SQLInterface, groupID, paidBy uuid.UUID, amount, currency string, participants ...uuid.UUID) domain.Expense {
	t.Helper()

	e := RandomExpense(t, groupID, paidBy, amount, currency, participants...)

	created, err := expenserepo.NewRepoPGS(tx).Create(context.Background(), e)
	if err != nil {
		t.Fatalf("expenseRepo.Create(context.Background(), %+v) returned error: %v", e, err)
	}

	return created
}

// SeedPayment records a payment inside a test transaction.
func SeedPayment(t *testing.T, tx dbpkg.SQLInterface, groupID, payer, payee uuid.UUID, amount, currency string) domain.Payment {
	t.Helper()

	p := RandomPayment(groupID, payer, payee, amount, currency)

	created, err := paymentrepo.NewRepoPGS(tx).Create(context.Background(), p)
	if err != nil {
		t.Fatalf("paymentRepo.Create(context.Background(), %+v) returned error: %v", p, err)
	}

	return created
}

// RandomExpense returns an unsaved expense split equally between participants.
func RandomExpense(t *testing.T, groupID, paidBy uuid.UUID, amount, currency string, participants ...uuid.UUID) domain.Expense {
	t.Helper()

	id := uuid.New()
	d := randompkg.MoneyAmountBetween(1, 500)

	if amount != "" {
		var err error
		if d, err = decimal.NewFromString(amount); err != nil {
			t.Fatalf("decimal.NewFromString(%q) returned error: %v", amount, err)
		}
	}

	shares, err := splitservice.Equal(d, currency, participants)
	if err != nil {
		t.Fatalf("splitservice.Equal(%v, %v, %v) returned error: %v", d, currency, participants, err)
	}

	ps := make([]domain.Participant, len(shares))
	for i, s := range shares {
		ps[i] = domain.Participant{ExpenseID: id, MemberID: s.MemberID, ShareAmount: s.ShareAmount}
	}

	return domain.Expense{
		ID:           id,
		GroupID:      groupID,
		Description:  randompkg.String(10),
		Amount:       d,
		Currency:     currency,
		PaidBy:       paidBy,
		SplitPolicy:  domain.SplitEqual,
		Category:     "food",
		ExpenseDate:  time.Now().UTC().Truncate(24 * time.Hour),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Participants: ps,
	}
}

// RandomPayment returns an unsaved payment. A blank amount picks a random one.
func RandomPayment(groupID, payer, payee uuid.UUID, amount, currency string) domain.Payment {
	d := randompkg.MoneyAmountBetween(1, 100)
	if parsed, err := decimal.NewFromString(amount); err == nil {
		d = parsed
	}

	return domain.Payment{
		ID:       uuid.New(),
		GroupID:  groupID,
		PayerID:  payer,
		PayeeID:  payee,
		Amount:   d,
		Currency: currency,
		Note:     randompkg.String(8),
		PaidAt:   time.Now().UTC().Truncate(time.Second),
	}
}
