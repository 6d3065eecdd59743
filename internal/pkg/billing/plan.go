package billing

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/config"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/entitlements"
)

// Plan is a purchasable tier. Values are fixed at start-up.
type Plan struct {
	ID                entitlements.Plan `json:"id"`
	DisplayName       string            `json:"displayName"`
	PriceMinorUnits   int64             `json:"priceMinorUnits"`
	SnippetLimitDelta int64             `json:"snippetLimit"`
	ExternalPriceID   string            `json:"-"`
}

func (p Plan) IsFree() bool {
	return p.ID == entitlements.PlanFree
}

// Catalog is the immutable set of plans. It is safe for concurrent use.
type Catalog struct {
	plans    map[entitlements.Plan]Plan
	order    []entitlements.Plan
	currency string
}

// NewCatalog builds the plan table. Empty price ids are allowed here and only
// rejected when a checkout for that plan is attempted.
func NewCatalog(basicPriceID, premiumPriceID, currency string) *Catalog {
	if currency == "" {
		currency = "usd"
	}
	plans := []Plan{
		{ID: entitlements.PlanFree, DisplayName: "Free", PriceMinorUnits: 0, SnippetLimitDelta: 10},
		{ID: entitlements.PlanBasic, DisplayName: "Basic", PriceMinorUnits: 2000, SnippetLimitDelta: 100, ExternalPriceID: strings.TrimSpace(basicPriceID)},
		{ID: entitlements.PlanPremium, DisplayName: "Premium", PriceMinorUnits: 5000, SnippetLimitDelta: 500, ExternalPriceID: strings.TrimSpace(premiumPriceID)},
	}

	c := &Catalog{plans: make(map[entitlements.Plan]Plan, len(plans)), currency: strings.ToLower(currency)}
	for _, p := range plans {
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c
}

func NewCatalogFromConfig(cfg config.Stripe) *Catalog {
	return NewCatalog(cfg.BasicPriceID, cfg.PremiumPriceID, cfg.Currency)
}

// Lookup resolves a plan id; unknown ids are a validation error.
func (c *Catalog) Lookup(planID string) (Plan, error) {
	id, ok := entitlements.ParsePlan(planID)
	if !ok {
		return Plan{}, fmt.Errorf("%w: unknown plan %q", ErrValidation, planID)
	}
	return c.plans[id], nil
}

// LookupByPriceID maps a provider price back to a plan.
func (c *Catalog) LookupByPriceID(priceID string) (Plan, bool) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return Plan{}, false
	}
	for _, id := range c.order {
		if p := c.plans[id]; p.ExternalPriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

func (c *Catalog) Free() Plan {
	return c.plans[entitlements.PlanFree]
}

// Plans lists every plan, cheapest first.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}

func (c *Catalog) Currency() string {
	return c.currency
}

// MajorUnits converts cents to a decimal amount for display and invoices.
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// nextAdditiveLimit is the one-time purchase rule: the first purchase by an
// untouched free user replaces the free allowance, any later purchase stacks.
func nextAdditiveLimit(currentPlan string, currentLimit int64, free Plan, delta int64) int64 {
	if currentPlan == string(free.ID) && currentLimit == free.SnippetLimitDelta {
		return delta
	}
	return currentLimit + delta
}
