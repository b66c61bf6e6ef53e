package profiles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	var customerID *string
	err := s.DB.QueryRow(ctx, `
    SELECT p.id::text, p.email, p.full_name, p.avatar_url, p.company_name,
           COALESCE(p.organization_id::text, ''), COALESCE(o.name, ''), p.role,
           p.stripe_customer_id, p.subscription_status, p.subscription_plan, p.subscription_period_end,
           p.last_payment_status, p.last_payment_date, p.created_at, p.updated_at
    FROM profiles p
    LEFT JOIN organizations o ON o.id = p.organization_id
    WHERE p.id = $1
  `, id).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CompanyName,
		&p.OrganizationID, &p.OrganizationName, &p.Role,
		&customerID, &p.SubscriptionStatus, &p.SubscriptionPlan, &p.SubscriptionPeriodEnd,
		&p.LastPaymentStatus, &p.LastPaymentDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if customerID != nil {
		p.StripeCustomerID = *customerID
	}
	return &p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, update Update) (*Profile, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE profiles
    SET full_name = COALESCE($2, full_name),
        avatar_url = COALESCE($3, avatar_url),
        company_name = COALESCE($4, company_name),
        updated_at = now()
    WHERE id = $1
  `, id, update.FullName, update.AvatarURL, update.CompanyName)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrProfileNotFound
	}
	return s.GetProfile(ctx, id)
}
