package authhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/transport/http/middleware"
)

type fakeAccounts struct {
	signupErr  error
	loginErr   error
	resetErr   error
	changeErr  error
	resetCalls int
	loggedOut  []string
}

func (f *fakeAccounts) Signup(_ context.Context, in auth.SignupInput) (*auth.Session, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &auth.Session{Token: "tok", User: auth.User{ID: "u1", Email: in.Email, OrganizationID: "o1", Role: auth.RoleAdmin}}, nil
}

func (f *fakeAccounts) Login(_ context.Context, email, _ string) (*auth.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &auth.Session{Token: "tok", User: auth.User{ID: "u1", Email: email}}, nil
}

func (f *fakeAccounts) Logout(_ context.Context, user auth.UserContext) error {
	f.loggedOut = append(f.loggedOut, user.SessionID)
	return nil
}

func (f *fakeAccounts) Me(_ context.Context, userID string) (*auth.User, error) {
	return &auth.User{ID: userID, Email: "me@example.com"}, nil
}

func (f *fakeAccounts) RequestPasswordReset(context.Context, string) error {
	f.resetCalls++
	return errors.New("smtp down")
}

func (f *fakeAccounts) ResetPassword(context.Context, string, string) error {
	return f.resetErr
}

func (f *fakeAccounts) ChangePassword(context.Context, string, string, string) error {
	return f.changeErr
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Log(_ context.Context, e audit.Entry) {
	if a == nil {
		return
	}
	a.entries = append(a.entries, e)
}

func newRouter(accounts *fakeAccounts, auditor *recordingAuditor, user *auth.UserContext) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if user != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), *user)))
			})
		})
	}
	NewHandler(accounts, auditor).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   map[string]string
		status int
	}{
		{name: "created", body: map[string]string{"email": "a@example.com", "password": "Secret123"}, status: http.StatusCreated},
		{name: "taken", err: auth.ErrEmailTaken, body: map[string]string{"email": "a@example.com", "password": "Secret123"}, status: http.StatusConflict},
		{name: "weak password", err: auth.ErrWeakPassword, body: map[string]string{"email": "a@example.com", "password": "x"}, status: http.StatusBadRequest},
		{name: "bad email", body: map[string]string{"email": "nope", "password": "Secret123"}, status: http.StatusBadRequest},
		{name: "upstream failure", err: errors.New("db down"), body: map[string]string{"email": "a@example.com", "password": "Secret123"}, status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			auditor := &recordingAuditor{}
			rec := do(t, newRouter(&fakeAccounts{signupErr: tc.err}, auditor, nil), http.MethodPost, "/auth/signup", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status == http.StatusCreated && (len(auditor.entries) != 1 || auditor.entries[0].Action != audit.ActionSignup) {
				t.Fatalf("expected signup audit entry, got %+v", auditor.entries)
			}
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	rec := do(t, newRouter(&fakeAccounts{loginErr: auth.ErrInvalidCredentials}, nil, nil), http.MethodPost, "/auth/login",
		map[string]string{"email": "a@example.com", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestForgotPasswordAlwaysSucceeds(t *testing.T) {
	accounts := &fakeAccounts{}
	rec := do(t, newRouter(accounts, nil, nil), http.MethodPost, "/auth/forgot-password", map[string]string{"email": "ghost@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if accounts.resetCalls != 1 {
		t.Fatalf("expected reset to be requested once, got %d", accounts.resetCalls)
	}
}

func TestResetPasswordInvalidToken(t *testing.T) {
	rec := do(t, newRouter(&fakeAccounts{resetErr: auth.ErrInvalidToken}, nil, nil), http.MethodPost, "/auth/reset-password",
		map[string]string{"token": "bad", "newPassword": "Secret123"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthenticatedRoutes(t *testing.T) {
	rec := do(t, newRouter(&fakeAccounts{}, nil, nil), http.MethodGet, "/auth/me", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rec.Code)
	}

	accounts := &fakeAccounts{changeErr: auth.ErrInvalidCredentials}
	user := &auth.UserContext{UserID: "u1", OrganizationID: "o1", Role: auth.RoleMember, SessionID: "s1"}
	router := newRouter(accounts, &recordingAuditor{}, user)

	if rec := do(t, router, http.MethodGet, "/auth/me", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/auth/change-password", map[string]string{"currentPassword": "x", "newPassword": "Secret123"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong current password, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodPost, "/auth/logout", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(accounts.loggedOut) != 1 || accounts.loggedOut[0] != "s1" {
		t.Fatalf("expected session s1 revoked, got %v", accounts.loggedOut)
	}
}
