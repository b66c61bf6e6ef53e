package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraze/internal/platform/payments"
)

type memoryStore struct {
	plans     map[string]Plan
	orgPlans  map[string]string
	customers map[string]*Customer
	subs      map[string]Subscription
	payments  map[string]string
	profiles  map[string]string
	profPlans map[string]string
	usage     []usageRow
}

type usageRow struct {
	org, feature string
	quantity     int
	at           time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		plans: map[string]Plan{
			"free": {ID: "free", Name: "Free", Limits: map[string]int{"reviews": 2}},
			"pro":  {ID: "pro", Name: "Pro", StripePriceID: "price_pro", Limits: map[string]int{"reviews": Unlimited}},
		},
		orgPlans:  map[string]string{"org-1": "free"},
		customers: map[string]*Customer{"user-1": {UserID: "user-1", Email: "a@example.com", FullName: "Ada", OrganizationID: "org-1"}},
		subs:      map[string]Subscription{},
		payments:  map[string]string{},
		profiles:  map[string]string{},
		profPlans: map[string]string{},
	}
}

func (m *memoryStore) ListPlans(context.Context) ([]Plan, error) {
	out := []Plan{}
	for _, p := range m.plans {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryStore) GetPlan(_ context.Context, id string) (*Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memoryStore) FindPlanByPrice(_ context.Context, priceID string) (*Plan, error) {
	for _, p := range m.plans {
		if p.StripePriceID == priceID {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) OrganizationPlan(_ context.Context, orgID string) (Plan, error) {
	p, ok := m.plans[m.orgPlans[orgID]]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

func (m *memoryStore) SetOrganizationPlan(_ context.Context, orgID, planID string) error {
	m.orgPlans[orgID] = planID
	return nil
}

func (m *memoryStore) GetCustomer(_ context.Context, userID string) (*Customer, error) {
	c, ok := m.customers[userID]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (m *memoryStore) FindCustomerByStripeID(_ context.Context, id string) (*Customer, error) {
	for _, c := range m.customers {
		if c.StripeCustomerID == id {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) SetStripeCustomer(_ context.Context, userID, id string) error {
	m.customers[userID].StripeCustomerID = id
	return nil
}

func (m *memoryStore) UpdateProfileSubscription(_ context.Context, customerID, status, planID string, _ *time.Time) error {
	m.profiles[customerID] = status
	m.profPlans[customerID] = planID
	return nil
}

func (m *memoryStore) RecordPayment(_ context.Context, customerID, status string, _ time.Time) error {
	m.payments[customerID] = status
	return nil
}

func (m *memoryStore) UpsertSubscription(_ context.Context, sub Subscription) (Subscription, error) {
	sub.ID = "local-" + sub.StripeSubscriptionID
	if existing, ok := m.subs[sub.StripeSubscriptionID]; ok && sub.PlanID == "" {
		sub.PlanID = existing.PlanID
	}
	m.subs[sub.StripeSubscriptionID] = sub
	return sub, nil
}

func (m *memoryStore) CurrentSubscription(_ context.Context, orgID string) (*Subscription, error) {
	for _, sub := range m.subs {
		if sub.OrganizationID == orgID {
			return &sub, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) TrackUsage(_ context.Context, orgID, _, feature string, quantity int) error {
	m.usage = append(m.usage, usageRow{orgID, feature, quantity, time.Now()})
	return nil
}

func (m *memoryStore) UsageSince(_ context.Context, orgID, feature string, since time.Time) (int, error) {
	total := 0
	for _, row := range m.usage {
		if row.org == orgID && row.feature == feature && !row.at.Before(since) {
			total += row.quantity
		}
	}
	return total, nil
}

func (m *memoryStore) UsageByFeature(_ context.Context, orgID string, since time.Time) (map[string]int, error) {
	out := map[string]int{}
	for _, row := range m.usage {
		if row.org == orgID && !row.at.Before(since) {
			out[row.feature] += row.quantity
		}
	}
	return out, nil
}

type fakeGateway struct {
	configured bool
	customers  int
	checkout   payments.CheckoutRequest
	event      payments.Event
	parseErr   error
	canceled   string
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) CreateCustomer(context.Context, string, string, string) (string, error) {
	g.customers++
	return "cus_1", nil
}

func (g *fakeGateway) CheckoutURL(_ context.Context, req payments.CheckoutRequest) (string, error) {
	g.checkout = req
	return "https://checkout.example/session", nil
}

func (g *fakeGateway) PortalURL(context.Context, string, string) (string, error) {
	return "https://portal.example/session", nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, customerID, priceID, orgID string) (payments.Subscription, error) {
	return payments.Subscription{ID: "sub_1", CustomerID: customerID, PriceID: priceID, OrganizationID: orgID, Status: "incomplete", ClientSecret: "pi_secret"}, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, id string) (payments.Subscription, error) {
	g.canceled = id
	return payments.Subscription{ID: id, CustomerID: "cus_1", Status: "canceled", PriceID: "price_pro"}, nil
}

func (g *fakeGateway) ParseEvent([]byte, string) (payments.Event, error) {
	return g.event, g.parseErr
}

func TestStartCheckoutCreatesCustomerOnce(t *testing.T) {
	store := newMemoryStore()
	gateway := &fakeGateway{configured: true}
	svc := NewService(store, gateway, "https://appraze.test")
	ctx := context.Background()

	url, err := svc.StartCheckout(ctx, "user-1", "pro")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/session", url)
	assert.Equal(t, "price_pro", gateway.checkout.PriceID)
	assert.Equal(t, "org-1", gateway.checkout.OrganizationID)
	assert.Equal(t, "https://appraze.test/dashboard/billing?success=true", gateway.checkout.SuccessURL)
	assert.Equal(t, "https://appraze.test/dashboard/billing?canceled=true", gateway.checkout.CancelURL)

	_, err = svc.OpenPortal(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.customers)

	_, err = svc.StartCheckout(ctx, "user-1", "free")
	assert.ErrorIs(t, err, ErrPlanNotPurchased)
	_, err = svc.StartCheckout(ctx, "user-1", "gold")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestBillingDisabled(t *testing.T) {
	svc := NewService(newMemoryStore(), &fakeGateway{}, "")
	_, err := svc.StartCheckout(context.Background(), "user-1", "pro")
	assert.ErrorIs(t, err, ErrBillingDisabled)
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	store := newMemoryStore()
	store.customers["user-1"].StripeCustomerID = "cus_1"
	gateway := &fakeGateway{configured: true}
	svc := NewService(store, gateway, "")
	ctx := context.Background()

	gateway.event = payments.Event{Type: "customer.subscription.created", Subscription: &payments.Subscription{
		ID: "sub_9", CustomerID: "cus_1", Status: "active", PriceID: "price_pro", PeriodEnd: time.Now().Add(720 * time.Hour),
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, "pro", store.orgPlans["org-1"])
	assert.Equal(t, "active", store.profiles["cus_1"])
	assert.Equal(t, "org-1", store.subs["sub_9"].OrganizationID)

	gateway.event = payments.Event{Type: "customer.subscription.deleted", Subscription: &payments.Subscription{
		ID: "sub_9", CustomerID: "cus_1", Status: "canceled", PriceID: "price_pro",
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, PlanFree, store.orgPlans["org-1"])

	gateway.event = payments.Event{Type: "invoice.payment_failed", Invoice: &payments.Invoice{CustomerID: "cus_1"}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, "failed", store.payments["cus_1"])

	gateway.event = payments.Event{Type: "invoice.paid", Invoice: &payments.Invoice{CustomerID: "cus_1"}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, "succeeded", store.payments["cus_1"])

	gateway.event = payments.Event{Type: "charge.refunded"}
	assert.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))

	gateway.parseErr = errors.New("bad signature")
	assert.ErrorIs(t, svc.HandleWebhook(ctx, nil, "sig"), ErrInvalidWebhook)
}

func TestWebhookUnknownPriceKeepsPlan(t *testing.T) {
	store := newMemoryStore()
	store.customers["user-1"].StripeCustomerID = "cus_1"
	gateway := &fakeGateway{configured: true}
	svc := NewService(store, gateway, "")
	ctx := context.Background()

	gateway.event = payments.Event{Type: "customer.subscription.created", Subscription: &payments.Subscription{
		ID: "sub_7", CustomerID: "cus_1", Status: "active", PriceID: "price_pro", PeriodEnd: time.Now().Add(720 * time.Hour),
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	require.Equal(t, "pro", store.orgPlans["org-1"])

	gateway.event = payments.Event{Type: "customer.subscription.updated", Subscription: &payments.Subscription{
		ID: "sub_7", CustomerID: "cus_1", Status: "active", PriceID: "price_legacy_annual", PeriodEnd: time.Now().Add(720 * time.Hour),
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, "pro", store.subs["sub_7"].PlanID)
	assert.Equal(t, "pro", store.orgPlans["org-1"])
	assert.Equal(t, "pro", store.profPlans["cus_1"])

	gateway.event = payments.Event{Type: "customer.subscription.updated", Subscription: &payments.Subscription{
		ID: "sub_7", CustomerID: "cus_1", Status: "active",
	}}
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	assert.Equal(t, "pro", store.orgPlans["org-1"])
}

func TestSubscribeAndCancel(t *testing.T) {
	store := newMemoryStore()
	gateway := &fakeGateway{configured: true}
	svc := NewService(store, gateway, "")
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "user-1", "pro")
	require.NoError(t, err)
	assert.Equal(t, "pi_secret", sub.ClientSecret)
	assert.Equal(t, "pro", sub.PlanID)

	_, err = svc.Cancel(ctx, "org-1")
	assert.ErrorIs(t, err, ErrNoSubscription)

	active := store.subs["sub_1"]
	active.Status = "active"
	store.subs["sub_1"] = active
	canceled, err := svc.Cancel(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", gateway.canceled)
	assert.Equal(t, "canceled", canceled.Status)
	assert.Equal(t, PlanFree, store.orgPlans["org-1"])
}

func TestUsageLimits(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, "")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := svc.CheckUsageLimit(ctx, "org-1", "reviews")
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, svc.TrackUsage(ctx, "org-1", "user-1", "reviews", 1))
	}
	ok, err := svc.CheckUsageLimit(ctx, "org-1", "reviews")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CheckUsageLimit(ctx, "org-1", "exports")
	require.NoError(t, err)
	assert.True(t, ok, "features without a limit are unlimited")

	store.orgPlans["org-1"] = "pro"
	ok, err = svc.CheckUsageLimit(ctx, "org-1", "reviews")
	require.NoError(t, err)
	assert.True(t, ok)

	summary, err := svc.Usage(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, summary.Usage, 1)
	assert.Equal(t, Usage{Feature: "reviews", Used: 2, Limit: Unlimited}, summary.Usage[0])
}
