package profiles

import (
	"context"
	"strings"
)

type Service struct {
	Store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{Store: store}
}

func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	profile, err := s.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// Organization returns the caller's organization id. Organizations are only
// created at signup, so a missing one is reported rather than created here.
func (s *Service) Organization(ctx context.Context, userID string) (string, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.OrganizationID == "" {
		return "", ErrNoOrganization
	}
	return profile.OrganizationID, nil
}

// Email satisfies the recipient lookup used by review notifications.
func (s *Service) Email(ctx context.Context, userID string) (string, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return profile.Email, nil
}

func (s *Service) Update(ctx context.Context, userID string, update Update) (*Profile, error) {
	update.FullName = trimmed(update.FullName)
	update.AvatarURL = trimmed(update.AvatarURL)
	update.CompanyName = trimmed(update.CompanyName)
	return s.Store.UpdateProfile(ctx, userID, update)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
