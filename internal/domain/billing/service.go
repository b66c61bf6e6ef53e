package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"appraze/internal/platform/metrics"
	"appraze/internal/platform/payments"
)

// Gateway is the payment processor surface billing depends on.
type Gateway interface {
	Configured() bool
	CreateCustomer(ctx context.Context, email, name, orgID string) (string, error)
	CheckoutURL(ctx context.Context, req payments.CheckoutRequest) (string, error)
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID, orgID string) (payments.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (payments.Subscription, error)
	ParseEvent(payload []byte, signature string) (payments.Event, error)
}

type Service struct {
	Store   StoreAPI
	Gateway Gateway
	Metrics *metrics.Collector
	AppURL  string
	now     func() time.Time
}

func NewService(store StoreAPI, gateway Gateway, appURL string) *Service {
	return &Service{Store: store, Gateway: gateway, AppURL: appURL, now: time.Now}
}

func (s *Service) Plans(ctx context.Context) ([]Plan, error) {
	return s.Store.ListPlans(ctx)
}

func (s *Service) Subscription(ctx context.Context, orgID string) (*Subscription, error) {
	return s.Store.CurrentSubscription(ctx, orgID)
}

// EnsureCustomer returns the profile's processor customer, creating and
// storing one on first use.
func (s *Service) EnsureCustomer(ctx context.Context, userID string) (*Customer, error) {
	if !s.enabled() {
		return nil, ErrBillingDisabled
	}
	customer, err := s.Store.GetCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	if customer.StripeCustomerID != "" {
		return customer, nil
	}
	id, err := s.Gateway.CreateCustomer(ctx, customer.Email, customer.FullName, customer.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.SetStripeCustomer(ctx, userID, id); err != nil {
		return nil, err
	}
	customer.StripeCustomerID = id
	return customer, nil
}

func (s *Service) StartCheckout(ctx context.Context, userID, planID string) (string, error) {
	plan, err := s.purchasable(ctx, planID)
	if err != nil {
		return "", err
	}
	customer, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.Gateway.CheckoutURL(ctx, payments.CheckoutRequest{
		CustomerID:     customer.StripeCustomerID,
		PriceID:        plan.StripePriceID,
		OrganizationID: customer.OrganizationID,
		SuccessURL:     s.AppURL + "/dashboard/billing?success=true",
		CancelURL:      s.AppURL + "/dashboard/billing?canceled=true",
	})
}

func (s *Service) OpenPortal(ctx context.Context, userID string) (string, error) {
	customer, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.Gateway.PortalURL(ctx, customer.StripeCustomerID, s.AppURL+"/dashboard/billing")
}

// Subscribe creates an incomplete subscription; the returned client secret
// confirms the first payment in the browser.
func (s *Service) Subscribe(ctx context.Context, userID, planID string) (Subscription, error) {
	plan, err := s.purchasable(ctx, planID)
	if err != nil {
		return Subscription{}, err
	}
	customer, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return Subscription{}, err
	}
	created, err := s.Gateway.CreateSubscription(ctx, customer.StripeCustomerID, plan.StripePriceID, customer.OrganizationID)
	if err != nil {
		return Subscription{}, err
	}
	sub := toSubscription(created, plan.ID)
	sub.UserID = customer.UserID
	sub.OrganizationID = customer.OrganizationID
	stored, err := s.Store.UpsertSubscription(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}
	stored.ClientSecret = created.ClientSecret
	return stored, nil
}

func (s *Service) Cancel(ctx context.Context, orgID string) (Subscription, error) {
	if !s.enabled() {
		return Subscription{}, ErrBillingDisabled
	}
	current, err := s.Store.CurrentSubscription(ctx, orgID)
	if err != nil {
		return Subscription{}, err
	}
	if current == nil || !activeStatuses[current.Status] {
		return Subscription{}, ErrNoSubscription
	}
	canceled, err := s.Gateway.CancelSubscription(ctx, current.StripeSubscriptionID)
	if err != nil {
		return Subscription{}, err
	}
	if canceled.CustomerID == "" {
		canceled.CustomerID = current.StripeCustomerID
	}
	return s.applySubscription(ctx, canceled, current.PlanID)
}

// HandleWebhook verifies and applies a processor event. Event types the
// product does not track are acknowledged without changes.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (err error) {
	defer func() { s.Metrics.RecordWebhook(err == nil) }()

	evt, err := s.Gateway.ParseEvent(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	slog.Info("billing webhook", "event", evt.ID, "type", evt.Type)

	switch evt.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		if evt.Subscription == nil {
			return nil
		}
		_, err = s.applySubscription(ctx, *evt.Subscription, "")
		return err
	case "invoice.paid", "invoice.payment_succeeded":
		return s.recordInvoice(ctx, evt.Invoice, "succeeded")
	case "invoice.payment_failed":
		return s.recordInvoice(ctx, evt.Invoice, "failed")
	default:
		return nil
	}
}

func (s *Service) applySubscription(ctx context.Context, update payments.Subscription, fallbackPlan string) (Subscription, error) {
	planID := fallbackPlan
	if update.PriceID != "" {
		plan, err := s.Store.FindPlanByPrice(ctx, update.PriceID)
		if err != nil {
			return Subscription{}, err
		}
		if plan != nil {
			planID = plan.ID
		} else {
			slog.Warn("subscription price has no plan", "subscription", update.ID, "price", update.PriceID)
		}
	}
	sub := toSubscription(update, planID)

	customer, err := s.Store.FindCustomerByStripeID(ctx, update.CustomerID)
	if err != nil {
		return Subscription{}, err
	}
	if customer != nil {
		sub.UserID = customer.UserID
		if sub.OrganizationID == "" {
			sub.OrganizationID = customer.OrganizationID
		}
	}
	if sub.OrganizationID == "" {
		slog.Warn("subscription without organization", "subscription", update.ID, "customer", update.CustomerID)
	}

	stored, err := s.Store.UpsertSubscription(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}
	// An unrecognised price keeps whatever plan the subscription already had.
	planID = stored.PlanID
	if err := s.Store.UpdateProfileSubscription(ctx, update.CustomerID, sub.Status, planID, sub.CurrentPeriodEnd); err != nil {
		return Subscription{}, err
	}
	if sub.OrganizationID != "" {
		effective := PlanFree
		if activeStatuses[sub.Status] && planID != "" {
			effective = planID
		}
		if err := s.Store.SetOrganizationPlan(ctx, sub.OrganizationID, effective); err != nil {
			return Subscription{}, err
		}
	}
	return stored, nil
}

func (s *Service) recordInvoice(ctx context.Context, inv *payments.Invoice, status string) error {
	if inv == nil || inv.CustomerID == "" {
		return nil
	}
	at := inv.Created
	if at.IsZero() {
		at = s.now()
	}
	return s.Store.RecordPayment(ctx, inv.CustomerID, status, at)
}

func (s *Service) TrackUsage(ctx context.Context, orgID, userID, feature string, quantity int) error {
	if quantity <= 0 {
		quantity = 1
	}
	return s.Store.TrackUsage(ctx, orgID, userID, feature, quantity)
}

// CheckUsageLimit reports whether the organization may use the feature once
// more within the rolling 30 day window.
func (s *Service) CheckUsageLimit(ctx context.Context, orgID, feature string) (bool, error) {
	plan, err := s.Store.OrganizationPlan(ctx, orgID)
	if err != nil {
		return false, err
	}
	limit := plan.Limit(feature)
	if limit == Unlimited {
		return true, nil
	}
	used, err := s.Store.UsageSince(ctx, orgID, feature, s.now().Add(-usageWindow))
	if err != nil {
		return false, err
	}
	return used < limit, nil
}

func (s *Service) Usage(ctx context.Context, orgID string) (Summary, error) {
	plan, err := s.Store.OrganizationPlan(ctx, orgID)
	if err != nil {
		return Summary{}, err
	}
	used, err := s.Store.UsageByFeature(ctx, orgID, s.now().Add(-usageWindow))
	if err != nil {
		return Summary{}, err
	}
	sub, err := s.Store.CurrentSubscription(ctx, orgID)
	if err != nil {
		return Summary{}, err
	}

	features := map[string]bool{}
	for f := range plan.Limits {
		features[f] = true
	}
	for f := range used {
		features[f] = true
	}
	summary := Summary{Plan: plan, Subscription: sub, Usage: []Usage{}}
	for f := range features {
		summary.Usage = append(summary.Usage, Usage{Feature: f, Used: used[f], Limit: plan.Limit(f)})
	}
	sort.Slice(summary.Usage, func(i, j int) bool { return summary.Usage[i].Feature < summary.Usage[j].Feature })
	return summary, nil
}

func (s *Service) purchasable(ctx context.Context, planID string) (*Plan, error) {
	if !s.enabled() {
		return nil, ErrBillingDisabled
	}
	plan, err := s.Store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if plan.StripePriceID == "" {
		return nil, ErrPlanNotPurchased
	}
	return plan, nil
}

func (s *Service) enabled() bool {
	return s.Gateway != nil && s.Gateway.Configured()
}

func toSubscription(p payments.Subscription, planID string) Subscription {
	sub := Subscription{
		StripeSubscriptionID: p.ID,
		StripeCustomerID:     p.CustomerID,
		OrganizationID:       p.OrganizationID,
		Status:               p.Status,
		PlanID:               planID,
		CancelAtPeriodEnd:    p.CancelAtPeriodEnd,
	}
	if !p.PeriodStart.IsZero() {
		start := p.PeriodStart
		sub.CurrentPeriodStart = &start
	}
	if !p.PeriodEnd.IsZero() {
		end := p.PeriodEnd
		sub.CurrentPeriodEnd = &end
	}
	return sub
}
