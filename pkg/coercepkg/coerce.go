// Package coercepkg holds every lenient default the API applies to incoming data.
//
// Callers never silently substitute values on their own; they go through one of
// the rules below, which report what was changed so it can be logged and
// surfaced to clients as a warning.
package coercepkg

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/splitfx/pkg/currencypkg"
)

// Rule names.
const (
	RuleCurrency    = "currency_coerced"
	RuleGroupName   = "group_name_defaulted"
	RuleDescription = "description_defaulted"
	RuleCategory    = "category_defaulted"
	RuleExpenseDate = "expense_date_defaulted"
)

// Placeholder values.
const (
	DefaultGroupName   = "Untitled group"
	DefaultDescription = "Expense"
	DefaultCategory    = "other"
)

// Categories lists the accepted expense categories.
var Categories = []string{
	"food",
	"transport",
	"rent",
	"utilities",
	"entertainment",
	"shopping",
	"travel",
	DefaultCategory,
}

// Warning describes one applied coercion.
type Warning struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Warnings collects coercions applied while normalizing one request.
type Warnings []Warning

func (w *Warnings) add(field, rule, from, to string) {
	*w = append(*w, Warning{Field: field, Rule: rule, From: from, To: to})
}

// Log writes every applied coercion to l at info level.
func (w Warnings) Log(l *zerolog.Logger) {
	for _, c := range w {
		l.Info().
			Str("field", c.Field).
			Str("rule", c.Rule).
			Str("from", c.From).
			Str("to", c.To).
			Msg("value coerced")
	}
}

// Currency normalizes code and replaces unsupported codes with currencypkg.Fallback.
func (w *Warnings) Currency(field, code string) string {
	c := currencypkg.Normalize(code)
	if currencypkg.IsSupportedCurrency(c) {
		return c
	}

	w.add(field, RuleCurrency, code, currencypkg.Fallback)

	return currencypkg.Fallback
}

// GroupName trims name and replaces a blank one with DefaultGroupName.
func (w *Warnings) GroupName(name string) string {
	n := strings.TrimSpace(name)
	if n != "" {
		return n
	}

	w.add("name", RuleGroupName, name, DefaultGroupName)

	return DefaultGroupName
}

// Description trims desc and replaces a blank one with DefaultDescription.
func (w *Warnings) Description(desc string) string {
	d := strings.TrimSpace(desc)
	if d != "" {
		return d
	}

	w.add("description", RuleDescription, desc, DefaultDescription)

	return DefaultDescription
}

// Category lower-cases category and replaces blank or unknown values with DefaultCategory.
func (w *Warnings) Category(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}

	// A missing category is normal, only report unknown ones.
	if c != "" {
		w.add("category", RuleCategory, category, DefaultCategory)
	}

	return DefaultCategory
}

// ExpenseDate truncates d to a UTC date and uses today's date when d is zero.
func (w *Warnings) ExpenseDate(d, now time.Time) time.Time {
	if d.IsZero() {
		today := now.UTC().Truncate(24 * time.Hour)
		w.add("expense_date", RuleExpenseDate, "", today.Format(time.DateOnly))

		return today
	}

	return d.UTC().Truncate(24 * time.Hour)
}
