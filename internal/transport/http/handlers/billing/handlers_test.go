package billinghandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraze/internal/domain/auth"
	"appraze/internal/domain/billing"
	"appraze/internal/transport/http/middleware"
)

type fakeBilling struct {
	err        error
	webhookErr error
	signature  string
	payload    []byte
}

func (f *fakeBilling) Plans(context.Context) ([]billing.Plan, error) {
	return []billing.Plan{{ID: billing.PlanFree, Limits: map[string]int{"reviews": 5}}}, nil
}

func (f *fakeBilling) Subscription(context.Context, string) (*billing.Subscription, error) {
	return nil, f.err
}

func (f *fakeBilling) StartCheckout(context.Context, string, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://checkout.example/session", nil
}

func (f *fakeBilling) OpenPortal(context.Context, string) (string, error) {
	return "https://portal.example/session", f.err
}

func (f *fakeBilling) Subscribe(_ context.Context, _, planID string) (billing.Subscription, error) {
	return billing.Subscription{PlanID: planID, Status: "incomplete", ClientSecret: "pi_secret"}, f.err
}

func (f *fakeBilling) Cancel(context.Context, string) (billing.Subscription, error) {
	return billing.Subscription{}, f.err
}

func (f *fakeBilling) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.payload = payload
	f.signature = signature
	return f.webhookErr
}

func (f *fakeBilling) Usage(context.Context, string) (billing.Summary, error) {
	return billing.Summary{Usage: []billing.Usage{{Feature: "reviews", Used: 2, Limit: 5}}}, f.err
}

func router(svc *fakeBilling, role string) http.Handler {
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Post("/billing/webhook", h.HandleWebhook)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				user := auth.UserContext{UserID: "u1", OrganizationID: "o1", Role: role}
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
			})
		})
		h.RegisterRoutes(r)
	})
	return r
}

func send(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	svc := &fakeBilling{}
	rec := send(router(svc, ""), http.MethodPost, "/billing/webhook", `{"id":"evt_1"}`, map[string]string{"Stripe-Signature": "t=1,v1=abc"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"id":"evt_1"}`, string(svc.payload))
	assert.Equal(t, "t=1,v1=abc", svc.signature)
}

func TestWebhookErrors(t *testing.T) {
	rec := send(router(&fakeBilling{webhookErr: fmt.Errorf("%w: bad signature", billing.ErrInvalidWebhook)}, ""), http.MethodPost, "/billing/webhook", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(router(&fakeBilling{webhookErr: errors.New("db down")}, ""), http.MethodPost, "/billing/webhook", `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCheckoutPermissions(t *testing.T) {
	rec := send(router(&fakeBilling{}, auth.RoleMember), http.MethodPost, "/billing/checkout", `{"planId":"pro"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(router(&fakeBilling{}, auth.RoleAdmin), http.MethodPost, "/billing/checkout", `{"planId":"pro"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://checkout.example/session")
}

func TestBillingErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{billing.ErrBillingDisabled, http.StatusServiceUnavailable},
		{billing.ErrPlanNotFound, http.StatusNotFound},
		{billing.ErrPlanNotPurchased, http.StatusBadRequest},
		{billing.ErrNoSubscription, http.StatusConflict},
		{errors.New("stripe down"), http.StatusBadGateway},
	}
	for _, tc := range tests {
		rec := send(router(&fakeBilling{err: tc.err}, auth.RoleAdmin), http.MethodPost, "/billing/cancel", "", nil)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestUsageForMembers(t *testing.T) {
	rec := send(router(&fakeBilling{}, auth.RoleMember), http.MethodGet, "/billing/usage", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"feature":"reviews"`)
}
