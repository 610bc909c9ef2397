package billing

// Plan names.
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Subscription statuses mirrored from Stripe.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Plan describes the limits of a subscription tier.
type Plan struct {
	Name          string `json:"name" yaml:"name"`
	MaxAttendants int    `json:"max_attendants" yaml:"max_attendants"`
	APIAccess     bool   `json:"api_access" yaml:"api_access"`
	Campaigns     bool   `json:"campaigns" yaml:"campaigns"`
	StripePriceID string `json:"stripe_price_id,omitempty" yaml:"stripe_price_id"`
}

// Unlimited reports whether the plan has no attendant cap.
func (p Plan) Unlimited() bool { return p.MaxAttendants <= 0 }

// Catalog is an ordered set of plans.
type Catalog []Plan

// DefaultPlans is used when no plan file is configured.
func DefaultPlans() Catalog {
	return Catalog{
		{Name: PlanFree, MaxAttendants: 1},
		{Name: PlanPro, MaxAttendants: 5, Campaigns: true},
		{Name: PlanBusiness, MaxAttendants: 0, APIAccess: true, Campaigns: true},
	}
}

// Find returns the plan by name, falling back to the first plan.
func (c Catalog) Find(name string) Plan {
	for _, p := range c {
		if p.Name == name {
			return p
		}
	}
	if len(c) > 0 {
		return c[0]
	}
	return Plan{Name: PlanFree, MaxAttendants: 1}
}

// ByPriceID resolves a Stripe price id to a plan.
func (c Catalog) ByPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, p := range c {
		if p.StripePriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

// Has reports whether name is a known plan.
func (c Catalog) Has(name string) bool {
	for _, p := range c {
		if p.Name == name {
			return true
		}
	}
	return false
}
