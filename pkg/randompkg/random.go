// Package randompkg provides functionality gor generating random applications common items.
package randompkg

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/shopspring/decimal"
)

const (
	alphabet       = "abcdefghijklmnopqrstuvwxyz"
	inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	InviteCodeLen  = 8
)

// Intn is a shortcut for generating a random integer between 0 and max using crypto/rand.
func Intn(max int) int64 {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(err)
	}

	return nBig.Int64()
}

// IntBetween generates a random integer in [min, max].
func IntBetween(min, max int) int {
	return min + int(Intn(max-min+1))
}

func stringFrom(chars string, n int) string {
	var sb strings.Builder

	k := len(chars)

	for i := 0; i < n; i++ {
		c := chars[Intn(k)]

		_ = sb.WriteByte(c) // The returned err is always nil.
	}

	return sb.String()
}

// String generates a random string of length n.
func String(n int) string {
	return stringFrom(alphabet, n)
}

// InviteCode generates a group invite code. Ambiguous characters (0, O, 1, I) are left out.
func InviteCode() string {
	return stringFrom(inviteAlphabet, InviteCodeLen)
}

// Name generates a random display name.
func Name() string {
	return String(6)
}

// MoneyAmountBetween generates a random amount of money in minor units between min and max units.
func MoneyAmountBetween(min, max int) decimal.Decimal {
	minor := IntBetween(min*100, max*100)
	return decimal.New(int64(minor), -2)
}

// Currency generates a random supported currency code.
func Currency() string {
	currencies := currencypkg.SupportedCurrencies
	return currencies[Intn(len(currencies))]
}
