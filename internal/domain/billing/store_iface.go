package billing

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	FindPlanByPrice(ctx context.Context, priceID string) (*Plan, error)
	OrganizationPlan(ctx context.Context, orgID string) (Plan, error)
	SetOrganizationPlan(ctx context.Context, orgID, planID string) error

	GetCustomer(ctx context.Context, userID string) (*Customer, error)
	FindCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error)
	SetStripeCustomer(ctx context.Context, userID, stripeCustomerID string) error
	UpdateProfileSubscription(ctx context.Context, stripeCustomerID, status, planID string, periodEnd *time.Time) error
	RecordPayment(ctx context.Context, stripeCustomerID, status string, at time.Time) error

	UpsertSubscription(ctx context.Context, sub Subscription) (Subscription, error)
	CurrentSubscription(ctx context.Context, orgID string) (*Subscription, error)

	TrackUsage(ctx context.Context, orgID, userID, feature string, quantity int) error
	UsageSince(ctx context.Context, orgID, feature string, since time.Time) (int, error)
	UsageByFeature(ctx context.Context, orgID string, since time.Time) (map[string]int, error)
}

var _ StoreAPI = (*Store)(nil)
