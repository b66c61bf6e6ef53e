package auth

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateAccount(ctx context.Context, email, passwordHash, fullName, companyName string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	CreateSession(ctx context.Context, userID string, expires time.Time) (string, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	SessionValid(ctx context.Context, userID, sessionID string) (bool, error)
	CreatePasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string) (string, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

var _ StoreAPI = (*Store)(nil)
