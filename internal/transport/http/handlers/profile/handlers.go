package profilehandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/profiles"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

type Profiles interface {
	Get(ctx context.Context, userID string) (*profiles.Profile, error)
	Update(ctx context.Context, userID string, update profiles.Update) (*profiles.Profile, error)
}

type Handler struct {
	Profiles Profiles
	Audit    shared.Auditor
}

func NewHandler(svc Profiles, auditor shared.Auditor) *Handler {
	return &Handler{Profiles: svc, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGet)
	r.Put("/profile", h.handleUpdate)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	profile, err := h.Profiles.Get(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, profile, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	var payload profiles.Update
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	v := shared.NewValidator()
	if payload.FullName != nil {
		v.MaxLen("fullName", *payload.FullName, 200)
	}
	if payload.CompanyName != nil {
		v.MaxLen("companyName", *payload.CompanyName, 200)
	}
	if payload.AvatarURL != nil {
		v.MaxLen("avatarUrl", *payload.AvatarURL, 2048)
	}
	if v.Reject(w, reqID) {
		return
	}

	profile, err := h.Profiles.Update(r.Context(), user.UserID, payload)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionUpdate, "profile", user.UserID, nil))
	api.Success(w, profile, reqID)
}

func writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "profile not found", reqID)
	default:
		slog.Warn("profile request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "profile_failed", "failed to load profile", reqID)
	}
}
