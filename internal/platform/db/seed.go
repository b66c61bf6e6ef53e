package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"appraze/internal/platform/config"
)

type seedPlan struct {
	ID     string
	Name   string
	Limits map[string]int
}

var defaultPlans = []seedPlan{
	{ID: "free", Name: "Free", Limits: map[string]int{"reviews": 3}},
	{ID: "pro", Name: "Pro", Limits: map[string]int{"reviews": 50}},
	{ID: "business", Name: "Business", Limits: map[string]int{"reviews": -1}},
}

type seedField struct {
	Label    string
	Type     string
	Required bool
}

var defaultTemplateFields = []seedField{
	{Label: "Key achievements", Type: "textarea", Required: true},
	{Label: "Goals for next period", Type: "textarea"},
	{Label: "Collaboration", Type: "rating"},
}

// Seed installs the plan catalogue and, when SEED_ADMIN_EMAIL and
// SEED_ADMIN_PASSWORD are set, an admin account with a starter template.
// Running it twice is a no-op.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensurePlans(ctx, pool); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(cfg.SeedAdminEmail))
	if email == "" || strings.TrimSpace(cfg.SeedAdminPassword) == "" {
		return nil
	}
	userID, orgID, err := ensureAdmin(ctx, pool, email, cfg.SeedAdminPassword, cfg.SeedAdminName, cfg.SeedCompanyName)
	if err != nil {
		return err
	}
	return ensureDefaultTemplate(ctx, pool, orgID, userID)
}

func ensurePlans(ctx context.Context, pool *pgxpool.Pool) error {
	for _, plan := range defaultPlans {
		limits, err := json.Marshal(plan.Limits)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `
      INSERT INTO subscription_plans (id, name, limits)
      VALUES ($1, $2, $3)
      ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, limits = EXCLUDED.limits
    `, plan.ID, plan.Name, limits)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureAdmin(ctx context.Context, pool *pgxpool.Pool, email, password, name, company string) (string, string, error) {
	var userID, orgID string
	err := pool.QueryRow(ctx, `
    SELECT u.id::text, p.organization_id::text
    FROM users u JOIN profiles p ON p.id = u.id
    WHERE u.email = $1
  `, email).Scan(&userID, &orgID)
	if err == nil {
		return userID, orgID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, "INSERT INTO organizations (name) VALUES ($1) RETURNING id::text", company).Scan(&orgID); err != nil {
		return "", "", err
	}
	if err := tx.QueryRow(ctx, "INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id::text", email, string(hash)).Scan(&userID); err != nil {
		return "", "", err
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO profiles (id, email, full_name, company_name, organization_id, role)
    VALUES ($1, $2, $3, $4, $5, 'admin')
  `, userID, email, name, company, orgID); err != nil {
		return "", "", err
	}
	if _, err := tx.Exec(ctx, `
    INSERT INTO team_members (organization_id, user_id, email, name, role, status)
    VALUES ($1, $2, $3, $4, 'admin', 'active')
  `, orgID, userID, email, name); err != nil {
		return "", "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", "", err
	}
	return userID, orgID, nil
}

func ensureDefaultTemplate(ctx context.Context, pool *pgxpool.Pool, orgID, userID string) error {
	var exists bool
	if err := pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM review_templates WHERE organization_id = $1)", orgID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var templateID string
	err = tx.QueryRow(ctx, `
    INSERT INTO review_templates (organization_id, name, description, review_type, created_by)
    VALUES ($1, 'Annual review', 'Starter template for yearly reviews', 'annual', $2)
    RETURNING id::text
  `, orgID, userID).Scan(&templateID)
	if err != nil {
		return err
	}
	for i, field := range defaultTemplateFields {
		if _, err := tx.Exec(ctx, `
      INSERT INTO review_fields (template_id, label, field_type, required, position)
      VALUES ($1, $2, $3, $4, $5)
    `, templateID, field.Label, field.Type, field.Required, i); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
