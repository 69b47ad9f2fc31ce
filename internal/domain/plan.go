package domain

import "sort"

// Plan is a purchasable subscription tier and the credits it grants on activation.
type Plan struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Grant Tranches `json:"grant"`
}

// PlanCatalog resolves plan IDs to plans.
type PlanCatalog map[string]Plan

// DefaultPlans is the catalog used when none is configured.
func DefaultPlans() PlanCatalog {
	return PlanCatalog{
		"basic": {
			ID:    "basic",
			Name:  "Basic",
			Grant: Tranches{Current: 50, Monthly: 100, Bonus: 10},
		},
		"pro": {
			ID:    "pro",
			Name:  "Pro",
			Grant: Tranches{Current: 200, Monthly: 500, Bonus: 50},
		},
		"premium": {
			ID:    "premium",
			Name:  "Premium",
			Grant: Tranches{Current: 1000, Monthly: 2000, Bonus: 250},
		},
	}
}

// Lookup returns the plan with id or ErrUnknownPlan.
func (c PlanCatalog) Lookup(id string) (Plan, error) {
	plan, ok := c[id]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return plan, nil
}

// IDs returns the plan IDs in sorted order.
func (c PlanCatalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
