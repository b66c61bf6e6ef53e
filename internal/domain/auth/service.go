package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

const (
	AccessTokenTTL   = 8 * time.Hour
	PasswordResetTTL = time.Hour
)

// Notifier delivers the account emails. Errors are logged, never returned to callers.
type Notifier interface {
	Welcome(ctx context.Context, email, name string) error
	PasswordReset(ctx context.Context, email, token string) error
	PasswordChanged(ctx context.Context, email string) error
}

type Service struct {
	store    StoreAPI
	notifier Notifier
	secret   string
	now      func() time.Time
}

func NewService(store StoreAPI, notifier Notifier, secret string) *Service {
	return &Service{store: store, notifier: notifier, secret: secret, now: time.Now}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateAccount(ctx, email, hash, strings.TrimSpace(in.FullName), strings.TrimSpace(in.CompanyName))
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.Welcome(ctx, user.Email, user.FullName); err != nil {
			slog.Warn("welcome email failed", "userId", user.ID, "err", err)
		}
	}
	return s.IssueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last login failed", "userId", user.ID, "err", err)
	}
	return s.IssueSession(ctx, *user)
}

// IssueSession opens a server-side session and signs an access token bound to it.
func (s *Service) IssueSession(ctx context.Context, user User) (*Session, error) {
	expires := s.now().Add(AccessTokenTTL)
	sessionID, err := s.store.CreateSession(ctx, user.ID, expires)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	token, err := GenerateToken(s.secret, Claims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		SessionID:      sessionID,
	}, AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

// Reissue refreshes the caller's token after their organization or role changed.
func (s *Service) Reissue(ctx context.Context, user UserContext) (*Session, error) {
	current, err := s.store.FindUserByID(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrUserNotFound
	}
	if user.SessionID != "" {
		if err := s.store.RevokeSession(ctx, user.UserID, user.SessionID); err != nil {
			slog.Warn("revoke session failed", "userId", user.UserID, "err", err)
		}
	}
	return s.IssueSession(ctx, *current)
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.SessionID == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, user.UserID, user.SessionID)
}

func (s *Service) SessionValid(ctx context.Context, userID, sessionID string) (bool, error) {
	return s.store.SessionValid(ctx, userID, sessionID)
}

func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RequestPasswordReset never reveals whether the email exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user == nil || user.Status != UserStatusActive {
		return nil
	}
	token, err := NewOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.store.CreatePasswordReset(ctx, user.ID, HashToken(token), s.now().Add(PasswordResetTTL)); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.PasswordReset(ctx, user.Email, token); err != nil {
			slog.Warn("password reset email failed", "userId", user.ID, "err", err)
		}
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidToken
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	userID, err := s.store.ResetPassword(ctx, HashToken(token), hash)
	if err != nil {
		return err
	}
	s.notifyPasswordChanged(ctx, userID)
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := CheckPassword(user.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.notifyPasswordChanged(ctx, userID)
	return nil
}

func (s *Service) notifyPasswordChanged(ctx context.Context, userID string) {
	if s.notifier == nil {
		return
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil || user == nil {
		slog.Warn("password changed email skipped", "userId", userID, "err", err)
		return
	}
	if err := s.notifier.PasswordChanged(ctx, user.Email); err != nil {
		slog.Warn("password changed email failed", "userId", userID, "err", err)
	}
}

func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredTokens(ctx)
}
