package balanceservice

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/internal/splitservice"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/moneypkg"
	"github.com/go-petr/splitfx/pkg/randompkg"
)

var (
	testGroupID = uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001")
	memberA     = uuid.MustParse("00000000-0000-4000-8000-00000000000a")
	memberB     = uuid.MustParse("00000000-0000-4000-8000-00000000000b")
	memberC     = uuid.MustParse("00000000-0000-4000-8000-00000000000c")
	testNow     = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
)

// rateTable converts with fixed rates keyed "FROM>TO".
type rateTable struct {
	rates map[string]string
	stale map[string]bool
}

func (r rateTable) Convert(_ context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error) {
	if from == to {
		return domain.Conversion{ConvertedAmount: amount, Rate: decimal.NewFromInt(1), Source: domain.SourceSameCurrency}, nil
	}

	key := from + ">" + to

	rate, ok := r.rates[key]
	if !ok {
		return domain.Conversion{}, domain.ErrRateUnavailable
	}

	d := decimal.RequireFromString(rate)

	return domain.Conversion{
		OriginalAmount:  amount,
		ConvertedAmount: moneypkg.Round(amount.Mul(d)),
		FromCurrency:    from,
		ToCurrency:      to,
		Rate:            d,
		Source:          "test",
		Stale:           r.stale[key],
	}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func group() domain.Group {
	return domain.Group{
		ID:         testGroupID,
		Name:       "Trip",
		Currency:   currencypkg.EUR,
		InviteCode: randompkg.InviteCode(),
		CreatedAt:  testNow,
	}
}

func members(ids ...uuid.UUID) []domain.Member {
	ms := make([]domain.Member, len(ids))
	for i, id := range ids {
		ms[i] = domain.Member{ID: id, GroupID: testGroupID, DisplayName: randompkg.Name(), Role: domain.RoleMember, JoinedAt: testNow}
	}

	return ms
}

func expense(t *testing.T, amount, currency string, paidBy uuid.UUID, ids ...uuid.UUID) domain.Expense {
	t.Helper()

	id := uuid.New()

	shares, err := splitservice.Equal(dec(amount), currency, ids)
	require.NoError(t, err)

	participants := make([]domain.Participant, len(shares))
	for i, s := range shares {
		participants[i] = domain.Participant{ExpenseID: id, MemberID: s.MemberID, ShareAmount: s.ShareAmount}
	}

	return domain.Expense{
		ID:           id,
		GroupID:      testGroupID,
		Description:  "Dinner",
		Amount:       dec(amount),
		Currency:     currency,
		PaidBy:       paidBy,
		SplitPolicy:  domain.SplitEqual,
		Category:     "food",
		ExpenseDate:  testNow,
		CreatedAt:    testNow,
		Participants: participants,
	}
}

func payment(amount, currency string, from, to uuid.UUID) domain.Payment {
	return domain.Payment{
		ID:       uuid.New(),
		GroupID:  testGroupID,
		PayerID:  from,
		PayeeID:  to,
		Amount:   dec(amount),
		Currency: currency,
		PaidAt:   testNow,
	}
}

type fixture struct {
	members  []domain.Member
	expenses []domain.Expense
	payments []domain.Payment
}

func newService(t *testing.T, f fixture, converter Converter) *Service {
	t.Helper()

	ctrl := gomock.NewController(t)

	groups := NewMockGroupRepo(ctrl)
	groups.EXPECT().Get(gomock.Any(), gomock.Eq(testGroupID)).AnyTimes().Return(group(), nil)
	groups.EXPECT().ListMembers(gomock.Any(), gomock.Eq(testGroupID)).AnyTimes().Return(f.members, nil)

	expenses := NewMockExpenseRepo(ctrl)
	expenses.EXPECT().ListByGroup(gomock.Any(), gomock.Eq(testGroupID)).AnyTimes().Return(f.expenses, nil)

	payments := NewMockPaymentRepo(ctrl)
	payments.EXPECT().ListByGroup(gomock.Any(), gomock.Eq(testGroupID)).AnyTimes().Return(f.payments, nil)

	return New(groups, expenses, payments, converter)
}

func nets(b domain.GroupBalances) map[uuid.UUID]string {
	m := make(map[uuid.UUID]string, len(b.Members))
	for _, mb := range b.Members {
		m[mb.MemberID] = mb.Net.StringFixed(2)
	}

	return m
}

// requireSettled checks the balances are zero-sum and that applying the
// suggested transfers brings every member to zero.
func requireSettled(t *testing.T, b domain.GroupBalances) {
	t.Helper()

	remaining := make(map[uuid.UUID]decimal.Decimal, len(b.Members))
	positive, negative := decimal.Zero, decimal.Zero

	for _, m := range b.Members {
		remaining[m.MemberID] = m.Net
		require.True(t, m.Net.Equal(m.Paid.Sub(m.Owed)))

		if m.Net.IsPositive() {
			positive = positive.Add(m.Net)
		} else {
			negative = negative.Add(m.Net.Neg())
		}
	}

	require.True(t, positive.Equal(negative), "positive %s, negative %s", positive, negative)

	for _, tr := range b.Transfers {
		require.True(t, tr.Amount.IsPositive())
		require.NotEqual(t, tr.From, tr.To)

		remaining[tr.From] = remaining[tr.From].Add(tr.Amount)
		remaining[tr.To] = remaining[tr.To].Sub(tr.Amount)
	}

	for id, r := range remaining {
		require.True(t, r.IsZero(), "member %s left with %s", id, r)
	}
}

func TestComputeGroupBalancesScenario(t *testing.T) {
	f := fixture{
		members:  members(memberA, memberB, memberC),
		expenses: []domain.Expense{expense(t, "30.00", currencypkg.EUR, memberA, memberA, memberB, memberC)},
	}

	got, err := newService(t, f, rateTable{}).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)

	require.Equal(t, "EUR", got.Currency)
	require.False(t, got.Partial)
	require.Empty(t, got.Unresolved)
	require.Equal(t, map[uuid.UUID]string{memberA: "20.00", memberB: "-10.00", memberC: "-10.00"}, nets(got))

	require.Len(t, got.Transfers, 2)
	require.Equal(t, memberB, got.Transfers[0].From)
	require.Equal(t, memberA, got.Transfers[0].To)
	require.True(t, got.Transfers[0].Amount.Equal(dec("10")))
	require.Equal(t, memberC, got.Transfers[1].From)
	require.Equal(t, memberA, got.Transfers[1].To)
	require.True(t, got.Transfers[1].Amount.Equal(dec("10")))

	pairs := got.Pairs()
	require.Len(t, pairs, 2)
	require.True(t, pairs[domain.DebtPair{Debtor: memberB, Creditor: memberA}].Equal(dec("10")))
	require.True(t, pairs[domain.DebtPair{Debtor: memberC, Creditor: memberA}].Equal(dec("10")))

	requireSettled(t, got)
}

func TestComputeGroupBalancesDefaultCurrency(t *testing.T) {
	f := fixture{
		members:  members(memberA, memberB),
		expenses: []domain.Expense{expense(t, "10.00", currencypkg.EUR, memberA, memberA, memberB)},
	}

	got, err := newService(t, f, rateTable{}).ComputeGroupBalances(context.Background(), testGroupID, "")
	require.NoError(t, err)
	require.Equal(t, currencypkg.EUR, got.Currency)
	require.Equal(t, map[uuid.UUID]string{memberA: "5.00", memberB: "-5.00"}, nets(got))
}

func TestComputeGroupBalancesConvertsOncePerExpense(t *testing.T) {
	f := fixture{
		members:  members(memberA, memberB, memberC),
		expenses: []domain.Expense{expense(t, "100.00", currencypkg.USD, memberB, memberA, memberB, memberC)},
	}

	rates := rateTable{rates: map[string]string{"USD>EUR": "0.9"}}

	got, err := newService(t, f, rates).ComputeGroupBalances(context.Background(), testGroupID, "eur")
	require.NoError(t, err)

	// 90.00 EUR spread over the stored shares 33.34/33.33/33.33.
	byID := make(map[uuid.UUID]domain.MemberBalance)
	for _, m := range got.Members {
		byID[m.MemberID] = m
	}

	require.True(t, byID[memberB].Paid.Equal(dec("90")))
	require.True(t, byID[memberA].Owed.Equal(dec("30.01")))
	require.True(t, byID[memberB].Owed.Equal(dec("30")))
	require.True(t, byID[memberC].Owed.Equal(dec("29.99")))

	requireSettled(t, got)
}

func TestComputeGroupBalancesPayments(t *testing.T) {
	f := fixture{
		members:  members(memberA, memberB, memberC),
		expenses: []domain.Expense{expense(t, "30.00", currencypkg.EUR, memberA, memberA, memberB, memberC)},
		payments: []domain.Payment{
			payment("10.00", currencypkg.EUR, memberB, memberA),
			payment("5.00", currencypkg.GBP, memberC, memberA),
		},
	}

	rates := rateTable{rates: map[string]string{"GBP>EUR": "1.2"}}

	got, err := newService(t, f, rates).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]string{memberA: "4.00", memberB: "0.00", memberC: "-4.00"}, nets(got))

	require.Len(t, got.Transfers, 1)
	require.Equal(t, memberC, got.Transfers[0].From)
	require.Equal(t, memberA, got.Transfers[0].To)
	require.True(t, got.Transfers[0].Amount.Equal(dec("4")))

	requireSettled(t, got)
}

func TestComputeGroupBalancesPartial(t *testing.T) {
	unresolved := expense(t, "1000", "JPY", memberB, memberA, memberB)
	unresolvedPayment := payment("7.00", "JPY", memberA, memberB)

	f := fixture{
		members:  members(memberA, memberB, memberC),
		expenses: []domain.Expense{expense(t, "30.00", currencypkg.EUR, memberA, memberA, memberB, memberC), unresolved},
		payments: []domain.Payment{unresolvedPayment},
	}

	got, err := newService(t, f, rateTable{}).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)

	require.True(t, got.Partial)
	require.Len(t, got.Unresolved, 2)
	require.Equal(t, domain.ItemExpense, got.Unresolved[0].Kind)
	require.Equal(t, unresolved.ID, got.Unresolved[0].ID)
	require.Equal(t, "JPY", got.Unresolved[0].Currency)
	require.True(t, got.Unresolved[0].Amount.Equal(dec("1000")))
	require.Equal(t, domain.ItemPayment, got.Unresolved[1].Kind)
	require.Equal(t, unresolvedPayment.ID, got.Unresolved[1].ID)

	// The rest is still balanced.
	require.Equal(t, map[uuid.UUID]string{memberA: "20.00", memberB: "-10.00", memberC: "-10.00"}, nets(got))
	requireSettled(t, got)
}

func TestComputeGroupBalancesStaleRates(t *testing.T) {
	f := fixture{
		members:  members(memberA, memberB),
		expenses: []domain.Expense{expense(t, "10.00", currencypkg.USD, memberA, memberA, memberB)},
	}

	rates := rateTable{
		rates: map[string]string{"USD>EUR": "0.5"},
		stale: map[string]bool{"USD>EUR": true},
	}

	got, err := newService(t, f, rates).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)
	require.True(t, got.StaleRates)
	require.False(t, got.Partial)
	require.Equal(t, map[uuid.UUID]string{memberA: "2.50", memberB: "-2.50"}, nets(got))
}

func TestComputeGroupBalancesSkipsDeletedExpenses(t *testing.T) {
	deleted := expense(t, "50.00", currencypkg.EUR, memberB, memberA, memberB)
	deletedAt := testNow
	deleted.DeletedAt = &deletedAt

	f := fixture{
		members:  members(memberA, memberB),
		expenses: []domain.Expense{deleted},
	}

	got, err := newService(t, f, rateTable{}).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]string{memberA: "0.00", memberB: "0.00"}, nets(got))
	require.Empty(t, got.Transfers)
}

func TestComputeGroupBalancesRecomputesBrokenShares(t *testing.T) {
	broken := expense(t, "9.00", currencypkg.EUR, memberA, memberA, memberB, memberC)
	broken.Participants[0].ShareAmount = dec("5.00")

	f := fixture{
		members:  members(memberA, memberB, memberC),
		expenses: []domain.Expense{broken},
	}

	got, err := newService(t, f, rateTable{}).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]string{memberA: "6.00", memberB: "-3.00", memberC: "-3.00"}, nets(got))
}

func TestComputeGroupBalancesKeepsLeftMembers(t *testing.T) {
	ms := members(memberA, memberB)
	left := testNow
	ms[1].LeftAt = &left

	f := fixture{
		members:  ms,
		expenses: []domain.Expense{expense(t, "8.00", currencypkg.EUR, memberA, memberA, memberB)},
	}

	got, err := newService(t, f, rateTable{}).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]string{memberA: "4.00", memberB: "-4.00"}, nets(got))
}

func TestComputeGroupBalancesIsIdempotent(t *testing.T) {
	f := randomFixture(t, 40, 10)
	rates := rateTable{rates: map[string]string{
		"USD>EUR": "0.92", "GBP>EUR": "1.17", "CAD>EUR": "0.68",
	}}

	s := newService(t, f, rates)

	first, err := s.ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)

	second, err := s.ComputeGroupBalances(context.Background(), testGroupID, "EUR")
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestComputeGroupBalancesZeroSum(t *testing.T) {
	rates := rateTable{rates: map[string]string{
		"USD>EUR": "0.9237", "GBP>EUR": "1.1713", "CAD>EUR": "0.6789",
		"EUR>USD": "1.0826", "GBP>USD": "1.2681", "CAD>USD": "0.7349",
	}}

	for i := 0; i < 25; i++ {
		f := randomFixture(t, 30, 8)

		for _, currency := range []string{"EUR", "USD"} {
			t.Run(fmt.Sprintf("%d/%s", i, currency), func(t *testing.T) {
				got, err := newService(t, f, rates).ComputeGroupBalances(context.Background(), testGroupID, currency)
				require.NoError(t, err)
				require.False(t, got.Partial)
				requireSettled(t, got)
			})
		}
	}
}

func TestComputeGroupBalancesErrors(t *testing.T) {
	t.Run("GroupNotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		groups := NewMockGroupRepo(ctrl)
		groups.EXPECT().Get(gomock.Any(), gomock.Any()).Times(1).Return(domain.Group{}, domain.ErrGroupNotFound)
		groups.EXPECT().ListMembers(gomock.Any(), gomock.Any()).Times(0)

		s := New(groups, NewMockExpenseRepo(ctrl), NewMockPaymentRepo(ctrl), NewMockConverter(ctrl))

		_, err := s.ComputeGroupBalances(context.Background(), testGroupID, "EUR")
		require.ErrorIs(t, err, domain.ErrGroupNotFound)
	})

	t.Run("InvalidCurrency", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		groups := NewMockGroupRepo(ctrl)
		groups.EXPECT().Get(gomock.Any(), gomock.Any()).Times(1).Return(group(), nil)

		s := New(groups, NewMockExpenseRepo(ctrl), NewMockPaymentRepo(ctrl), NewMockConverter(ctrl))

		_, err := s.ComputeGroupBalances(context.Background(), testGroupID, "EURO")
		require.ErrorIs(t, err, domain.ErrInvalidCurrency)
	})

	t.Run("ConverterAborts", func(t *testing.T) {
		ctrl := gomock.NewController(t)

		f := fixture{
			members:  members(memberA, memberB),
			expenses: []domain.Expense{expense(t, "8.00", currencypkg.USD, memberA, memberA, memberB)},
		}

		converter := NewMockConverter(ctrl)
		converter.EXPECT().
			Convert(gomock.Any(), gomock.Any(), gomock.Eq("USD"), gomock.Eq("EUR")).
			Times(1).
			Return(domain.Conversion{}, context.Canceled)

		_, err := newService(t, f, converter).ComputeGroupBalances(context.Background(), testGroupID, "EUR")
		require.ErrorIs(t, err, context.Canceled)
	})
}

// randomFixture returns a group of n members with e random expenses and a few payments.
func randomFixture(t *testing.T, e, n int) fixture {
	t.Helper()

	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}

	f := fixture{members: members(ids...)}

	for i := 0; i < e; i++ {
		k := randompkg.IntBetween(1, n)
		start := randompkg.IntBetween(0, n-k)
		participants := ids[start : start+k]
		payer := ids[randompkg.Intn(n)]
		amount := randompkg.MoneyAmountBetween(1, 500).StringFixed(2)

		f.expenses = append(f.expenses, expense(t, amount, randompkg.Currency(), payer, participants...))
	}

	for i := 0; i < e/4; i++ {
		from, to := ids[randompkg.Intn(n)], ids[randompkg.Intn(n)]
		if from == to {
			continue
		}

		f.payments = append(f.payments, payment(randompkg.MoneyAmountBetween(1, 50).StringFixed(2), randompkg.Currency(), from, to))
	}

	return f
}
