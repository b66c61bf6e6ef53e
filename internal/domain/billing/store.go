package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (Plan, error) {
	var p Plan
	var limits []byte
	if err := row.Scan(&p.ID, &p.Name, &p.StripePriceID, &limits); err != nil {
		return Plan{}, err
	}
	p.Limits = map[string]int{}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &p.Limits); err != nil {
			return Plan{}, err
		}
	}
	return p, nil
}

const planColumns = "id, name, COALESCE(stripe_price_id, ''), limits"

func (s *Store) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+planColumns+" FROM subscription_plans ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) queryPlan(ctx context.Context, query string, args ...any) (*Plan, error) {
	p, err := scanPlan(s.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return s.queryPlan(ctx, "SELECT "+planColumns+" FROM subscription_plans WHERE id = $1", id)
}

func (s *Store) FindPlanByPrice(ctx context.Context, priceID string) (*Plan, error) {
	return s.queryPlan(ctx, "SELECT "+planColumns+" FROM subscription_plans WHERE stripe_price_id = $1", priceID)
}

func (s *Store) OrganizationPlan(ctx context.Context, orgID string) (Plan, error) {
	plan, err := s.queryPlan(ctx, `
    SELECT p.id, p.name, COALESCE(p.stripe_price_id, ''), p.limits
    FROM organizations o
    JOIN subscription_plans p ON p.id = o.plan_id
    WHERE o.id = $1
  `, orgID)
	if err != nil {
		return Plan{}, err
	}
	if plan == nil {
		return Plan{}, ErrPlanNotFound
	}
	return *plan, nil
}

func (s *Store) SetOrganizationPlan(ctx context.Context, orgID, planID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE organizations SET plan_id = $2, updated_at = now() WHERE id = $1", orgID, planID)
	return err
}

const customerSelect = `
    SELECT id::text, email, full_name, organization_id::text, COALESCE(stripe_customer_id, '')
    FROM profiles
`

func (s *Store) queryCustomer(ctx context.Context, query string, arg string) (*Customer, error) {
	var c Customer
	err := s.DB.QueryRow(ctx, query, arg).Scan(&c.UserID, &c.Email, &c.FullName, &c.OrganizationID, &c.StripeCustomerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCustomer(ctx context.Context, userID string) (*Customer, error) {
	return s.queryCustomer(ctx, customerSelect+" WHERE id = $1", userID)
}

func (s *Store) FindCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error) {
	return s.queryCustomer(ctx, customerSelect+" WHERE stripe_customer_id = $1", stripeCustomerID)
}

func (s *Store) SetStripeCustomer(ctx context.Context, userID, stripeCustomerID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE profiles SET stripe_customer_id = $2, updated_at = now() WHERE id = $1", userID, stripeCustomerID)
	return err
}

func (s *Store) UpdateProfileSubscription(ctx context.Context, stripeCustomerID, status, planID string, periodEnd *time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE profiles
    SET subscription_status = $2, subscription_plan = $3, subscription_period_end = $4, updated_at = now()
    WHERE stripe_customer_id = $1
  `, stripeCustomerID, status, planID, periodEnd)
	return err
}

func (s *Store) RecordPayment(ctx context.Context, stripeCustomerID, status string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE profiles SET last_payment_status = $2, last_payment_date = $3, updated_at = now()
    WHERE stripe_customer_id = $1
  `, stripeCustomerID, status, at)
	return err
}

const subscriptionColumns = `id::text, stripe_subscription_id, stripe_customer_id, COALESCE(user_id::text, ''),
       COALESCE(organization_id::text, ''), status, plan_id, current_period_start, current_period_end,
       cancel_at_period_end, updated_at`

func scanSubscription(row scanner) (Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.StripeSubscriptionID, &sub.StripeCustomerID, &sub.UserID, &sub.OrganizationID,
		&sub.Status, &sub.PlanID, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd, &sub.UpdatedAt)
	return sub, err
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// UpsertSubscription records the latest Stripe state. An empty plan keeps the
// plan already stored for the subscription.
func (s *Store) UpsertSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	return scanSubscription(s.DB.QueryRow(ctx, `
    INSERT INTO subscriptions (stripe_subscription_id, stripe_customer_id, user_id, organization_id, status, plan_id,
                               current_period_start, current_period_end, cancel_at_period_end)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    ON CONFLICT (stripe_subscription_id) DO UPDATE
    SET status = EXCLUDED.status,
        plan_id = COALESCE(NULLIF(EXCLUDED.plan_id, ''), subscriptions.plan_id),
        current_period_start = EXCLUDED.current_period_start,
        current_period_end = EXCLUDED.current_period_end,
        cancel_at_period_end = EXCLUDED.cancel_at_period_end,
        user_id = COALESCE(EXCLUDED.user_id, subscriptions.user_id),
        organization_id = COALESCE(EXCLUDED.organization_id, subscriptions.organization_id),
        updated_at = now()
    RETURNING `+subscriptionColumns,
		sub.StripeSubscriptionID, sub.StripeCustomerID, nullable(sub.UserID), nullable(sub.OrganizationID), sub.Status,
		sub.PlanID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd))
}

func (s *Store) CurrentSubscription(ctx context.Context, orgID string) (*Subscription, error) {
	sub, err := scanSubscription(s.DB.QueryRow(ctx, `
    SELECT `+subscriptionColumns+`
    FROM subscriptions
    WHERE organization_id = $1
    ORDER BY (status IN ('active', 'trialing', 'past_due')) DESC, updated_at DESC
    LIMIT 1
  `, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) TrackUsage(ctx context.Context, orgID, userID, feature string, quantity int) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO usage_logs (organization_id, user_id, feature, quantity)
    VALUES ($1, $2, $3, $4)
  `, orgID, nullable(userID), feature, quantity)
	return err
}

func (s *Store) UsageSince(ctx context.Context, orgID, feature string, since time.Time) (int, error) {
	var used int
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(quantity), 0)
    FROM usage_logs
    WHERE organization_id = $1 AND feature = $2 AND created_at >= $3
  `, orgID, feature, since).Scan(&used)
	return used, err
}

func (s *Store) UsageByFeature(ctx context.Context, orgID string, since time.Time) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT feature, COALESCE(SUM(quantity), 0)
    FROM usage_logs
    WHERE organization_id = $1 AND created_at >= $2
    GROUP BY feature
  `, orgID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var feature string
		var used int
		if err := rows.Scan(&feature, &used); err != nil {
			return nil, err
		}
		out[feature] = used
	}
	return out, rows.Err()
}
