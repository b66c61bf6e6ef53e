package profiles

import "context"

type StoreAPI interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	UpdateProfile(ctx context.Context, id string, update Update) (*Profile, error)
}

var _ StoreAPI = (*Store)(nil)
