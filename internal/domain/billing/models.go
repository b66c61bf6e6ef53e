package billing

import "time"

const (
	PlanFree = "free"

	// Unlimited marks a plan limit without a quota.
	Unlimited = -1

	usageWindow = 30 * 24 * time.Hour
)

type Plan struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	StripePriceID string         `json:"stripePriceId,omitempty"`
	Limits        map[string]int `json:"limits"`
}

// Limit returns the monthly quota for a feature. Unknown features are unlimited.
func (p Plan) Limit(feature string) int {
	limit, ok := p.Limits[feature]
	if !ok {
		return Unlimited
	}
	return limit
}

type Subscription struct {
	ID                   string     `json:"id"`
	StripeSubscriptionID string     `json:"stripeSubscriptionId"`
	StripeCustomerID     string     `json:"stripeCustomerId"`
	UserID               string     `json:"userId,omitempty"`
	OrganizationID       string     `json:"organizationId,omitempty"`
	Status               string     `json:"status"`
	PlanID               string     `json:"planId"`
	CurrentPeriodStart   *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancelAtPeriodEnd"`
	ClientSecret         string     `json:"clientSecret,omitempty"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// Customer is the billing view of a profile.
type Customer struct {
	UserID           string
	Email            string
	FullName         string
	OrganizationID   string
	StripeCustomerID string
}

type Usage struct {
	Feature string `json:"feature"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
}

type Summary struct {
	Plan         Plan          `json:"plan"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Usage        []Usage       `json:"usage"`
}

// activeStatuses grant the subscribed plan.
var activeStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
	"past_due": true,
}
