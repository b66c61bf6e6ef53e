package billinghandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/domain/billing"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

const maxWebhookBytes = 65536

type Billing interface {
	Plans(ctx context.Context) ([]billing.Plan, error)
	Subscription(ctx context.Context, orgID string) (*billing.Subscription, error)
	StartCheckout(ctx context.Context, userID, planID string) (string, error)
	OpenPortal(ctx context.Context, userID string) (string, error)
	Subscribe(ctx context.Context, userID, planID string) (billing.Subscription, error)
	Cancel(ctx context.Context, orgID string) (billing.Subscription, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	Usage(ctx context.Context, orgID string) (billing.Summary, error)
}

type Handler struct {
	Billing Billing
	Audit   shared.Auditor
}

func NewHandler(svc Billing, auditor shared.Auditor) *Handler {
	return &Handler{Billing: svc, Audit: auditor}
}

type planRequest struct {
	PlanID string `json:"planId"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/billing", func(r chi.Router) {
		r.Get("/plans", h.handlePlans)
		r.With(middleware.RequirePermission(auth.PermBillingRead)).Get("/subscription", h.handleSubscription)
		r.With(middleware.RequirePermission(auth.PermBillingRead)).Get("/usage", h.handleUsage)
		r.With(middleware.RequirePermission(auth.PermBillingManage)).Post("/checkout", h.handleCheckout)
		r.With(middleware.RequirePermission(auth.PermBillingManage)).Post("/portal", h.handlePortal)
		r.With(middleware.RequirePermission(auth.PermBillingManage)).Post("/subscribe", h.handleSubscribe)
		r.With(middleware.RequirePermission(auth.PermBillingManage)).Post("/cancel", h.handleCancel)
	})
}

// HandleWebhook is mounted outside the authenticated API; the signature is
// the only credential.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read webhook body", reqID)
		return
	}
	if err := h.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, billing.ErrInvalidWebhook) {
			slog.Warn("billing webhook rejected", "err", err)
			api.Fail(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed", reqID)
			return
		}
		slog.Warn("billing webhook failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "webhook_failed", "failed to process webhook", reqID)
		return
	}
	api.Success(w, map[string]bool{"received": true}, reqID)
}

func (h *Handler) handlePlans(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	plans, err := h.Billing.Plans(r.Context())
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	if plans == nil {
		plans = []billing.Plan{}
	}
	api.Success(w, plans, reqID)
}

func (h *Handler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	sub, err := h.Billing.Subscription(r.Context(), user.OrganizationID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{"subscription": sub}, reqID)
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	summary, err := h.Billing.Usage(r.Context(), user.OrganizationID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload planRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	url, err := h.Billing.StartCheckout(r.Context(), user.UserID, payload.PlanID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, map[string]string{"url": url}, reqID)
}

func (h *Handler) handlePortal(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	url, err := h.Billing.OpenPortal(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, map[string]string{"url": url}, reqID)
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload planRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	sub, err := h.Billing.Subscribe(r.Context(), user.UserID, payload.PlanID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionCreate, "subscription", sub.StripeSubscriptionID, map[string]string{"planId": sub.PlanID}))
	api.Created(w, sub, reqID)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	sub, err := h.Billing.Cancel(r.Context(), user.OrganizationID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionDelete, "subscription", sub.StripeSubscriptionID, nil))
	api.Success(w, sub, reqID)
}

func writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, billing.ErrBillingDisabled):
		api.Fail(w, http.StatusServiceUnavailable, "billing_disabled", err.Error(), reqID)
	case errors.Is(err, billing.ErrPlanNotFound):
		api.Fail(w, http.StatusNotFound, "plan_not_found", err.Error(), reqID)
	case errors.Is(err, billing.ErrPlanNotPurchased):
		api.Fail(w, http.StatusBadRequest, "plan_not_purchasable", err.Error(), reqID)
	case errors.Is(err, billing.ErrCustomerNotFound):
		api.Fail(w, http.StatusNotFound, "customer_not_found", err.Error(), reqID)
	case errors.Is(err, billing.ErrNoSubscription):
		api.Fail(w, http.StatusConflict, "no_subscription", err.Error(), reqID)
	default:
		slog.Warn("billing request failed", "err", err)
		api.Fail(w, http.StatusBadGateway, "billing_failed", "billing request failed", reqID)
	}
}
