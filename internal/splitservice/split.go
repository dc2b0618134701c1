// Package splitservice divides expense amounts between participants.
//
// All policies reduce to Allocate: integer minor units are split in proportion
// to per-participant weights, the floored parts are handed out first and the
// leftover minor units go one at a time to the first participants in the order
// they were supplied. The shares of an expense therefore always add up to its
// amount exactly.
package splitservice

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/moneypkg"
)

var hundred = decimal.NewFromInt(100)

// Allocate splits total minor units proportionally to weights.
//
// Weights must not be negative, at least one must be positive and total must
// not be negative. Zero weights never receive leftover units.
func Allocate(total int64, weights []decimal.Decimal) []int64 {
	parts := make([]int64, len(weights))
	if len(weights) == 0 {
		return parts
	}

	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}

	t := decimal.NewFromInt(total)
	allocated := int64(0)

	for i, w := range weights {
		q, _ := t.Mul(w).QuoRem(sum, 0)
		parts[i] = q.IntPart()
		allocated += parts[i]
	}

	for i := 0; allocated < total; i = (i + 1) % len(parts) {
		if !weights[i].IsPositive() {
			continue
		}

		parts[i]++
		allocated++
	}

	return parts
}

// Equal splits amount equally between ids.
func Equal(amount decimal.Decimal, currency string, ids []uuid.UUID) ([]domain.Share, error) {
	participants := make([]domain.SplitParticipant, len(ids))
	for i, id := range ids {
		participants[i] = domain.SplitParticipant{MemberID: id}
	}

	return ComputeShares(amount, currency, domain.SplitEqual, participants)
}

// ComputeShares returns each participant's share of amount under policy.
// Shares are returned in the order of participants.
func ComputeShares(amount decimal.Decimal, currency string, policy domain.SplitPolicy, participants []domain.SplitParticipant) ([]domain.Share, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: no participants", domain.ErrInvalidSplitInput)
	}

	seen := make(map[uuid.UUID]struct{}, len(participants))
	for _, p := range participants {
		if _, ok := seen[p.MemberID]; ok {
			return nil, fmt.Errorf("%w: duplicate participant %s", domain.ErrInvalidSplitInput, p.MemberID)
		}
		seen[p.MemberID] = struct{}{}
	}

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidSplitInput)
	}

	total, err := moneypkg.ToMinor(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrInvalidSplitInput, amount, currency, err)
	}

	var parts []int64

	switch policy {
	case domain.SplitEqual, "":
		weights := make([]decimal.Decimal, len(participants))
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		parts = Allocate(total, weights)
	case domain.SplitShares:
		weights, err := positiveValues(participants)
		if err != nil {
			return nil, err
		}
		parts = Allocate(total, weights)
	case domain.SplitPercentage:
		weights, err := positiveValues(participants)
		if err != nil {
			return nil, err
		}
		if sum := sumOf(weights); !sum.Equal(hundred) {
			return nil, fmt.Errorf("%w: percentages add up to %s, not 100", domain.ErrInvalidSplitInput, sum)
		}
		parts = Allocate(total, weights)
	case domain.SplitExact:
		parts, err = exactParts(total, participants)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown split policy %q", domain.ErrInvalidSplitInput, policy)
	}

	shares := make([]domain.Share, len(participants))
	for i, p := range participants {
		shares[i] = domain.Share{
			MemberID:    p.MemberID,
			ShareAmount: moneypkg.FromMinor(parts[i]),
		}
	}

	return shares, nil
}

func positiveValues(participants []domain.SplitParticipant) ([]decimal.Decimal, error) {
	values := make([]decimal.Decimal, len(participants))

	for i, p := range participants {
		if !p.Value.IsPositive() {
			return nil, fmt.Errorf("%w: value for %s must be positive", domain.ErrInvalidSplitInput, p.MemberID)
		}
		values[i] = p.Value
	}

	return values, nil
}

func exactParts(total int64, participants []domain.SplitParticipant) ([]int64, error) {
	parts := make([]int64, len(participants))
	sum := int64(0)

	for i, p := range participants {
		if p.Value.IsNegative() {
			return nil, fmt.Errorf("%w: amount for %s is negative", domain.ErrInvalidSplitInput, p.MemberID)
		}

		m, err := moneypkg.ToMinor(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: amount for %s: %v", domain.ErrInvalidSplitInput, p.MemberID, err)
		}

		parts[i] = m
		sum += m
	}

	if sum != total {
		return nil, fmt.Errorf("%w: exact amounts add up to %s, not %s",
			domain.ErrInvalidSplitInput, moneypkg.FromMinor(sum), moneypkg.FromMinor(total))
	}

	return parts, nil
}

func sumOf(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}

	return sum
}
