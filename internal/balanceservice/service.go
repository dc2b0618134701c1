// Package balanceservice computes group balances in a single reporting currency.
package balanceservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/internal/splitservice"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/moneypkg"
)

// GroupRepo provides group access needed by the balance service.
//
//go:generate mockgen -source service.go -destination service_mock.go -package balanceservice
type GroupRepo interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Group, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Member, error)
}

// ExpenseRepo provides expense access needed by the balance service.
type ExpenseRepo interface {
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Expense, error)
}

// PaymentRepo provides payment access needed by the balance service.
type PaymentRepo interface {
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.Payment, error)
}

// Converter converts amounts into the reporting currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (domain.Conversion, error)
}

// Service facilitates balance computation logic.
type Service struct {
	groups    GroupRepo
	expenses  ExpenseRepo
	payments  PaymentRepo
	converter Converter
}

// New returns balance service struct.
func New(gr GroupRepo, er ExpenseRepo, pr PaymentRepo, c Converter) *Service {
	return &Service{
		groups:    gr,
		expenses:  er,
		payments:  pr,
		converter: c,
	}
}

type account struct {
	paid, owed int64
}

// ledger accumulates minor-unit credits and debits per member.
type ledger map[uuid.UUID]*account

func (l ledger) get(id uuid.UUID) *account {
	a, ok := l[id]
	if !ok {
		a = &account{}
		l[id] = a
	}

	return a
}

func (l ledger) credit(id uuid.UUID, amount int64) {
	l.get(id).paid += amount
}

func (l ledger) debit(id uuid.UUID, amount int64) {
	l.get(id).owed += amount
}

// ids returns the member ids in ascending order.
func (l ledger) ids() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	return ids
}

// ComputeGroupBalances returns every member's net position and the suggested
// transfers that settle them, in currency or, when it is empty, the group currency.
//
// Items that can't be converted because no rate is known are reported as
// Unresolved and the result is marked Partial. Any other failure aborts.
func (s *Service) ComputeGroupBalances(ctx context.Context, groupID uuid.UUID, currency string) (domain.GroupBalances, error) {
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return domain.GroupBalances{}, err
	}

	reporting := currencypkg.Normalize(currency)
	if reporting == "" {
		reporting = group.Currency
	}

	if !currencypkg.IsCode(reporting) {
		return domain.GroupBalances{}, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, currency)
	}

	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return domain.GroupBalances{}, err
	}

	expenses, err := s.expenses.ListByGroup(ctx, groupID)
	if err != nil {
		return domain.GroupBalances{}, err
	}

	payments, err := s.payments.ListByGroup(ctx, groupID)
	if err != nil {
		return domain.GroupBalances{}, err
	}

	res := domain.GroupBalances{
		GroupID:    groupID,
		Currency:   reporting,
		Members:    []domain.MemberBalance{},
		Transfers:  []domain.Transfer{},
		Unresolved: []domain.UnresolvedItem{},
	}

	l := make(ledger, len(members))
	for _, m := range members {
		l.get(m.ID)
	}

	for _, e := range expenses {
		if e.DeletedAt != nil {
			continue
		}

		total, ok, err := s.convert(ctx, &res, domain.ItemExpense, e.ID, e.Amount, e.Currency)
		if err != nil {
			return domain.GroupBalances{}, err
		}

		if !ok {
			continue
		}

		ids, weights := shareWeights(ctx, e)
		parts := splitservice.Allocate(total, weights)

		l.credit(e.PaidBy, total)

		for i, id := range ids {
			l.debit(id, parts[i])
		}
	}

	for _, p := range payments {
		amount, ok, err := s.convert(ctx, &res, domain.ItemPayment, p.ID, p.Amount, p.Currency)
		if err != nil {
			return domain.GroupBalances{}, err
		}

		if !ok {
			continue
		}

		l.credit(p.PayerID, amount)
		l.debit(p.PayeeID, amount)
	}

	res.Partial = len(res.Unresolved) > 0

	nets := make(map[uuid.UUID]int64, len(l))

	for _, id := range l.ids() {
		a := l[id]
		net := a.paid - a.owed
		nets[id] = net

		res.Members = append(res.Members, domain.MemberBalance{
			MemberID: id,
			Paid:     moneypkg.FromMinor(a.paid),
			Owed:     moneypkg.FromMinor(a.owed),
			Net:      moneypkg.FromMinor(net),
		})
	}

	for _, t := range Settle(nets) {
		res.Transfers = append(res.Transfers, domain.Transfer{
			From:   t.From,
			To:     t.To,
			Amount: moneypkg.FromMinor(t.Amount),
		})
	}

	if res.Partial {
		zerolog.Ctx(ctx).Warn().
			Str("group_id", groupID.String()).
			Int("unresolved", len(res.Unresolved)).
			Msg("partial balances")
	}

	return res, nil
}

// convert returns amount in the reporting currency as minor units. Items
// without a rate are recorded as unresolved and reported with ok false.
func (s *Service) convert(ctx context.Context, res *domain.GroupBalances, kind string, id uuid.UUID, amount decimal.Decimal, currency string) (int64, bool, error) {
	conv, err := s.converter.Convert(ctx, amount, currency, res.Currency)
	if err != nil {
		if errors.Is(err, domain.ErrRateUnavailable) || errors.Is(err, domain.ErrInvalidCurrency) {
			res.Unresolved = append(res.Unresolved, domain.UnresolvedItem{
				Kind:     kind,
				ID:       id,
				Amount:   amount,
				Currency: currency,
				Reason:   err.Error(),
			})

			return 0, false, nil
		}

		return 0, false, err
	}

	if conv.Stale {
		res.StaleRates = true
	}

	minor, err := moneypkg.ToMinor(moneypkg.Round(conv.ConvertedAmount))
	if err != nil {
		return 0, false, fmt.Errorf("%s %s: %w", kind, id, err)
	}

	return minor, true, nil
}

// shareWeights returns the participants of e with their stored shares in minor
// units. Shares that don't add up to the amount are replaced with an equal split.
func shareWeights(ctx context.Context, e domain.Expense) ([]uuid.UUID, []decimal.Decimal) {
	if len(e.Participants) == 0 {
		zerolog.Ctx(ctx).Warn().Str("expense_id", e.ID.String()).Msg("expense without participants charged to payer")
		return []uuid.UUID{e.PaidBy}, []decimal.Decimal{decimal.NewFromInt(1)}
	}

	ids := make([]uuid.UUID, len(e.Participants))
	weights := make([]decimal.Decimal, len(e.Participants))
	sum := int64(0)
	valid := true

	for i, p := range e.Participants {
		ids[i] = p.MemberID

		m, err := moneypkg.ToMinor(p.ShareAmount)
		if err != nil || m < 0 {
			valid = false
		}

		weights[i] = decimal.NewFromInt(m)
		sum += m
	}

	if total, err := moneypkg.ToMinor(e.Amount); valid && err == nil && sum == total && sum > 0 {
		return ids, weights
	}

	zerolog.Ctx(ctx).Warn().Str("expense_id", e.ID.String()).Msg("stored shares don't match amount, splitting equally")

	for i := range weights {
		weights[i] = decimal.NewFromInt(1)
	}

	return ids, weights
}
