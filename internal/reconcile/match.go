// Package reconcile links bills to the bank operations that paid them.
package reconcile

import (
	"strings"
	"time"

	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/shopspring/decimal"
)

// Policy bounds how far a bank operation may drift from a bill and still
// be considered its payment.
type Policy struct {
	// MinDateDelta is how many days before the bill date an operation may be
	MinDateDelta int
	// MaxDateDelta is how many days after the bill date an operation may be
	MaxDateDelta int
	// AmountDelta is the tolerated gap, in euros, between bill and payment
	AmountDelta decimal.Decimal
	// Identifiers are label fragments, any of which tags the operation as
	// coming from the provider. Empty matches every label.
	Identifiers []string
}

// Operation is one bank account movement. Debits are negative.
type Operation struct {
	ID       string
	Date     time.Time
	Label    string
	Amount   decimal.Decimal
	Currency string
}

// Link is a bill paired with the operation that settled it.
type Link struct {
	Bill      provider.Bill
	Operation Operation
	LinkedAt  time.Time
}

// FindMatch returns the index of the best candidate among ops for bill, or
// -1: the smallest amount gap wins, then the smallest date gap. Indexes for
// which skip returns true are ignored.
func FindMatch(bill provider.Bill, ops []Operation, policy Policy, skip func(int) bool) int {
	var (
		best     = -1
		bestGap  decimal.Decimal
		bestDays int
	)

	for i, op := range ops {
		if skip != nil && skip(i) {
			continue
		}

		days, ok := withinWindow(bill.Date, op.Date, policy)
		if !ok {
			continue
		}

		gap := amountGap(bill, op)
		if gap.GreaterThan(policy.AmountDelta) {
			continue
		}

		if !matchesIdentifier(op.Label, policy.Identifiers) {
			continue
		}

		if best < 0 || gap.LessThan(bestGap) || (gap.Equal(bestGap) && days < bestDays) {
			best, bestGap, bestDays = i, gap, days
		}
	}

	return best
}

// withinWindow reports whether opDate lies in
// [billDate - MinDateDelta, billDate + MaxDateDelta] and the distance in days.
func withinWindow(billDate, opDate time.Time, policy Policy) (int, bool) {
	bill := truncateDay(billDate)
	op := truncateDay(opDate)

	earliest := bill.AddDate(0, 0, -policy.MinDateDelta)
	latest := bill.AddDate(0, 0, policy.MaxDateDelta)
	if op.Before(earliest) || op.After(latest) {
		return 0, false
	}

	days := int(op.Sub(bill).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}

// amountGap compares the bill to the operation's outflow.
func amountGap(bill provider.Bill, op Operation) decimal.Decimal {
	return op.Amount.Neg().Sub(bill.Amount).Abs()
}

func matchesIdentifier(label string, identifiers []string) bool {
	if len(identifiers) == 0 {
		return true
	}

	label = strings.ToLower(label)
	for _, id := range identifiers {
		if id != "" && strings.Contains(label, strings.ToLower(id)) {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
