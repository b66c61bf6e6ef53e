package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appraze/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const userSelect = `
    SELECT u.id, u.email, u.password_hash, u.status, p.full_name, p.organization_id::text, p.role, u.last_login, u.created_at
    FROM users u
    JOIN profiles p ON p.id = u.id
`

// CreateAccount writes the organization, user, profile and roster entry in
// one transaction so every user owns exactly one organization from the start.
func (s *Store) CreateAccount(ctx context.Context, email, passwordHash, fullName, companyName string) (User, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orgName := companyName
	if orgName == "" {
		orgName = fullName
	}
	if orgName == "" {
		orgName = email
	}

	var orgID string
	if err := tx.QueryRow(ctx, "INSERT INTO organizations (name) VALUES ($1) RETURNING id::text", orgName).Scan(&orgID); err != nil {
		return User{}, err
	}

	user := User{Email: email, PasswordHash: passwordHash, Status: UserStatusActive, FullName: fullName, OrganizationID: orgID, Role: RoleAdmin}
	err = tx.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, status)
    VALUES ($1, $2, $3)
    RETURNING id::text, created_at
  `, email, passwordHash, UserStatusActive).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO profiles (id, email, full_name, company_name, organization_id, role)
    VALUES ($1, $2, $3, $4, $5, $6)
  `, user.ID, email, fullName, companyName, orgID, RoleAdmin); err != nil {
		return User{}, err
	}

	if _, err := tx.Exec(ctx, `
    INSERT INTO team_members (organization_id, user_id, email, name, role, status)
    VALUES ($1, $2, $3, $4, $5, 'active')
  `, orgID, user.ID, email, fullName, RoleAdmin); err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, userSelect+" WHERE u.email = $1", email)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*User, error) {
	return s.findUser(ctx, userSelect+" WHERE u.id = $1", id)
}

func (s *Store) findUser(ctx context.Context, query string, arg string) (*User, error) {
	var user User
	err := s.DB.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Status, &user.FullName,
		&user.OrganizationID, &user.Role, &user.LastLogin, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, userID string, expires time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO sessions (user_id, expires_at)
    VALUES ($1, $2)
    RETURNING id::text
  `, userID, expires).Scan(&id)
	return id, err
}

func (s *Store) RevokeSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND id = $2", userID, sessionID)
	return err
}

func (s *Store) SessionValid(ctx context.Context, userID, sessionID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM sessions
    WHERE user_id = $1 AND id = $2 AND revoked_at IS NULL AND expires_at > now()
  `, userID, sessionID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) CreatePasswordReset(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	_, err := s.DB.Exec(ctx, "INSERT INTO password_resets (user_id, token, expires_at) VALUES ($1, $2, $3)", userID, tokenHash, expires)
	return err
}

// ResetPassword consumes the reset token and stores the new hash atomically.
func (s *Store) ResetPassword(ctx context.Context, tokenHash, passwordHash string) (string, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	err = tx.QueryRow(ctx, `
    UPDATE password_resets
    SET used_at = now()
    WHERE token = $1 AND expires_at > now() AND used_at IS NULL
    RETURNING user_id::text
  `, tokenHash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, userID); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, "UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL", userID); err != nil {
		return "", err
	}
	return userID, tx.Commit(ctx)
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE users SET password_hash = $1 WHERE id = $2", passwordHash, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	resets, err := s.DB.Exec(ctx, "DELETE FROM password_resets WHERE expires_at < now() OR used_at IS NOT NULL")
	if err != nil {
		return 0, err
	}
	sessions, err := s.DB.Exec(ctx, "DELETE FROM sessions WHERE expires_at < now() OR revoked_at IS NOT NULL")
	if err != nil {
		return resets.RowsAffected(), err
	}
	return resets.RowsAffected() + sessions.RowsAffected(), nil
}
