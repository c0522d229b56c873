package model

import (
	"strings"
	"time"

	"pix-subscription/internal/domain"
)

// DefaultPlanDurationDays applies to plan ids missing from the catalog.
const DefaultPlanDurationDays = 30

// Plan is a purchasable subscription period with a fixed price in minor units.
type Plan struct {
	ID           string
	Price        int64
	DurationDays int
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// NewPlan validates and constructs a plan.
func NewPlan(id string, price int64, durationDays int) (*Plan, error) {
	id = strings.TrimSpace(id)
	if id == "" || price <= 0 || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{ID: id, Price: price, DurationDays: durationDays}, nil
}

// PlanCatalog is the immutable set of known plans keyed by id.
type PlanCatalog struct {
	plans map[string]Plan
}

func DefaultPlans() []Plan {
	return []Plan{
		{ID: "7days", Price: 1490, DurationDays: 7},
		{ID: "1month", Price: 2990, DurationDays: 30},
		{ID: "12months", Price: 19900, DurationDays: 365},
	}
}

func NewPlanCatalog(plans []Plan) (*PlanCatalog, error) {
	c := &PlanCatalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		np, err := NewPlan(p.ID, p.Price, p.DurationDays)
		if err != nil {
			return nil, err
		}
		if _, dup := c.plans[np.ID]; dup {
			return nil, domain.ErrAlreadyExists
		}
		c.plans[np.ID] = *np
	}
	return c, nil
}

// Lookup returns the plan for id, if known.
func (c *PlanCatalog) Lookup(id string) (Plan, bool) {
	if c == nil {
		return Plan{}, false
	}
	p, ok := c.plans[strings.TrimSpace(id)]
	return p, ok
}

// DurationDays falls back to DefaultPlanDurationDays for unknown plans.
func (c *PlanCatalog) DurationDays(id string) int {
	if p, ok := c.Lookup(id); ok {
		return p.DurationDays
	}
	return DefaultPlanDurationDays
}
