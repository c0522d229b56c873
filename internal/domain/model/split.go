package model

import (
	"fmt"
	"strings"

	"pix-subscription/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SplitRule sends Percent of the gross amount to AccountID. Percent is on a 0-100 scale.
type SplitRule struct {
	AccountID string
	Percent   decimal.Decimal
}

// ParseSplitRules parses "account:percent" pairs separated by commas, e.g. "acc-1:30,acc-2:2.5".
func ParseSplitRules(s string) ([]SplitRule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []SplitRule
	for _, part := range strings.Split(s, ",") {
		acc, pct, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("split rule %q: want account:percent: %w", part, domain.ErrInvalidArgument)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return nil, fmt.Errorf("split rule %q: %w", part, domain.ErrInvalidArgument)
		}
		out = append(out, SplitRule{AccountID: strings.TrimSpace(acc), Percent: p})
	}
	return out, nil
}

// Share is one beneficiary's part of a split.
type Share struct {
	AccountID string
	Amount    int64
}

// Split is the result of dividing a gross amount. Shares plus Primary always equal Gross.
type Split struct {
	Gross   int64
	Shares  []Share
	Primary int64
}

// SplitCalculator divides gross amounts across beneficiaries. It is immutable once built.
type SplitCalculator struct {
	rules     []SplitRule
	minAmount int64
	maxAmount int64
}

// NewSplitCalculator validates the rules: every account named, every percent >= 0,
// and the explicit percentages summing to strictly less than 100.
func NewSplitCalculator(rules []SplitRule, minAmount, maxAmount int64) (*SplitCalculator, error) {
	if minAmount <= 0 || maxAmount < minAmount {
		return nil, fmt.Errorf("split bounds [%d, %d]: %w", minAmount, maxAmount, domain.ErrInvalidArgument)
	}
	total := decimal.Zero
	for i, r := range rules {
		if strings.TrimSpace(r.AccountID) == "" {
			return nil, fmt.Errorf("split rule %d: empty account: %w", i, domain.ErrInvalidArgument)
		}
		if r.Percent.IsNegative() {
			return nil, fmt.Errorf("split rule %d: negative percent: %w", i, domain.ErrInvalidArgument)
		}
		total = total.Add(r.Percent)
	}
	if total.GreaterThanOrEqual(hundred) {
		return nil, fmt.Errorf("split rules sum to %s%%: %w", total.String(), domain.ErrInvalidArgument)
	}
	cp := make([]SplitRule, len(rules))
	copy(cp, rules)
	return &SplitCalculator{rules: cp, minAmount: minAmount, maxAmount: maxAmount}, nil
}

func (c *SplitCalculator) MinAmount() int64 { return c.minAmount }
func (c *SplitCalculator) MaxAmount() int64 { return c.maxAmount }

// Compute splits gross. Each beneficiary gets round(gross*percent/100) and the primary
// account receives the remainder, so rounding error always lands on the primary account.
// A share is capped at what is still unallocated, which keeps Primary >= 0 for tiny
// amounts where several half-up roundings would otherwise overshoot.
func (c *SplitCalculator) Compute(gross int64) (Split, error) {
	if gross < c.minAmount || gross > c.maxAmount {
		return Split{}, fmt.Errorf("amount %d outside [%d, %d]: %w", gross, c.minAmount, c.maxAmount, domain.ErrAmountOutOfRange)
	}
	g := decimal.NewFromInt(gross)
	remaining := gross
	shares := make([]Share, 0, len(c.rules))
	for _, r := range c.rules {
		amt := g.Mul(r.Percent).Div(hundred).Round(0).IntPart()
		if amt > remaining {
			amt = remaining
		}
		remaining -= amt
		shares = append(shares, Share{AccountID: r.AccountID, Amount: amt})
	}
	return Split{Gross: gross, Shares: shares, Primary: remaining}, nil
}
