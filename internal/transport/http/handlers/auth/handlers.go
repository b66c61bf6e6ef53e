package authhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

// Accounts is the auth service surface the handlers call.
type Accounts interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, user auth.UserContext) error
	Me(ctx context.Context, userID string) (*auth.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
}

type Handler struct {
	Accounts Accounts
	Audit    shared.Auditor
}

func NewHandler(accounts Accounts, auditor shared.Auditor) *Handler {
	return &Handler{Accounts: accounts, Audit: auditor}
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	CompanyName string `json:"companyName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.handleSignup)
		r.Post("/login", h.handleLogin)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post("/reset-password", h.handleResetPassword)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
			r.Post("/change-password", h.handleChangePassword)
		})
	})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload signupRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	v := shared.NewValidator()
	v.Email("email", payload.Email)
	v.Required("password", payload.Password, "is required")
	v.MaxLen("fullName", payload.FullName, 200)
	v.MaxLen("companyName", payload.CompanyName, 200)
	if v.Reject(w, reqID) {
		return
	}

	session, err := h.Accounts.Signup(r.Context(), auth.SignupInput{
		Email:       payload.Email,
		Password:    payload.Password,
		FullName:    payload.FullName,
		CompanyName: payload.CompanyName,
	})
	if err != nil {
		writeAuthError(w, err, "signup_failed", reqID)
		return
	}

	h.audit(r, session, audit.ActionSignup)
	api.Created(w, session, reqID)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	if payload.Email == "" || payload.Password == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "email and password are required", reqID)
		return
	}

	session, err := h.Accounts.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeAuthError(w, err, "login_failed", reqID)
		return
	}

	h.audit(r, session, audit.ActionLogin)
	api.Success(w, session, reqID)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	if err := h.Accounts.Logout(r.Context(), user); err != nil {
		slog.Warn("logout failed", "userId", user.UserID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "logout_failed", "failed to sign out", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "signed_out"}, reqID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	account, err := h.Accounts.Me(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
			return
		}
		slog.Warn("load account failed", "userId", user.UserID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "me_failed", "failed to load account", reqID)
		return
	}
	api.Success(w, account, reqID)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload forgotRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	if err := h.Accounts.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		slog.Warn("password reset request failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "if the account exists, a reset link has been sent"}, reqID)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload resetRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	if err := h.Accounts.ResetPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		writeAuthError(w, err, "reset_failed", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "password_updated"}, reqID)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	var payload changePasswordRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	err := h.Accounts.ChangePassword(r.Context(), user.UserID, payload.CurrentPassword, payload.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusBadRequest, "invalid_password", "current password is incorrect", reqID)
		return
	}
	if err != nil {
		writeAuthError(w, err, "change_password_failed", reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionUpdate, "password", user.UserID, nil))
	api.Success(w, map[string]string{"status": "password_updated"}, reqID)
}

func (h *Handler) audit(r *http.Request, session *auth.Session, action string) {
	user := auth.UserContext{UserID: session.User.ID, OrganizationID: session.User.OrganizationID, Role: session.User.Role}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, action, "user", session.User.ID, nil))
}

func writeAuthError(w http.ResponseWriter, err error, fallbackCode, reqID string) {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		api.Fail(w, http.StatusBadRequest, "invalid_email", err.Error(), reqID)
	case errors.Is(err, auth.ErrWeakPassword):
		api.Fail(w, http.StatusBadRequest, "weak_password", err.Error(), reqID)
	case errors.Is(err, auth.ErrEmailTaken):
		api.Fail(w, http.StatusConflict, "email_taken", err.Error(), reqID)
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
	case errors.Is(err, auth.ErrInvalidToken):
		api.Fail(w, http.StatusBadRequest, "invalid_token", err.Error(), reqID)
	case errors.Is(err, auth.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", reqID)
	default:
		slog.Warn("auth request failed", "code", fallbackCode, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "request failed", reqID)
	}
}
