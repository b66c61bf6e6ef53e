package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"appraze/internal/platform/config"
)

var (
	ErrNotConfigured    = errors.New("payments are not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Subscription is the subset of a processor subscription the product stores.
type Subscription struct {
	ID                string
	CustomerID        string
	OrganizationID    string
	Status            string
	PriceID           string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	ClientSecret      string
}

type Invoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Status         string
	AmountPaid     int64
	Created        time.Time
}

// Event is a verified webhook event. At most one of the payloads is set.
type Event struct {
	ID           string
	Type         string
	Subscription *Subscription
	Invoice      *Invoice
}

type CheckoutRequest struct {
	CustomerID     string
	PriceID        string
	OrganizationID string
	SuccessURL     string
	CancelURL      string
}

type Gateway struct {
	api           *client.API
	webhookSecret string
}

func New(cfg config.Config) *Gateway {
	g := &Gateway{webhookSecret: cfg.StripeWebhookSecret}
	if cfg.StripeSecretKey != "" {
		g.api = client.New(cfg.StripeSecretKey, nil)
	}
	return g
}

func (g *Gateway) Configured() bool {
	return g != nil && g.api != nil
}

func (g *Gateway) CreateCustomer(ctx context.Context, email, name, orgID string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("organization_id", orgID)
	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return customer.ID, nil
}

func (g *Gateway) CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrganizationID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"organization_id": req.OrganizationID},
		},
	}
	params.Context = ctx
	params.AddMetadata("organization_id", req.OrganizationID)
	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

func (g *Gateway) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	session, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return session.URL, nil
}

// CreateSubscription starts an incomplete subscription whose first invoice is
// confirmed client side with the returned client secret.
func (g *Gateway) CreateSubscription(ctx context.Context, customerID, priceID, orgID string) (Subscription, error) {
	if !g.Configured() {
		return Subscription{}, ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(customerID),
		Items:           []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceID)}},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.Context = ctx
	params.AddMetadata("organization_id", orgID)
	params.AddExpand("latest_invoice.payment_intent")
	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	out := fromStripeSubscription(sub)
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out, nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	if !g.Configured() {
		return Subscription{}, ErrNotConfigured
	}
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return Subscription{}, fmt.Errorf("cancel subscription: %w", err)
	}
	return fromStripeSubscription(sub), nil
}

// ParseEvent verifies the Stripe-Signature header and decodes the payload of
// the event types the product reacts to.
func (g *Gateway) ParseEvent(payload []byte, signature string) (Event, error) {
	if g == nil || g.webhookSecret == "" {
		return Event{}, ErrNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	out := Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil {
		return out, nil
	}
	switch evt.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		converted := fromStripeSubscription(&sub)
		out.Subscription = &converted
	case "invoice.paid", "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		converted := fromStripeInvoice(&inv)
		out.Invoice = &converted
	}
	return out, nil
}

func fromStripeSubscription(sub *stripe.Subscription) Subscription {
	out := Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PeriodStart:       unix(sub.CurrentPeriodStart),
		PeriodEnd:         unix(sub.CurrentPeriodEnd),
		OrganizationID:    sub.Metadata["organization_id"],
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				out.PriceID = item.Price.ID
				break
			}
		}
	}
	return out
}

func fromStripeInvoice(inv *stripe.Invoice) Invoice {
	out := Invoice{
		ID:         inv.ID,
		Status:     string(inv.Status),
		AmountPaid: inv.AmountPaid,
		Created:    unix(inv.Created),
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	return out
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
