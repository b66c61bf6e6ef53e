package employees

import "context"

type StoreAPI interface {
	List(ctx context.Context, orgID string, filter Filter) ([]Employee, error)
	Get(ctx context.Context, orgID, id string) (*Employee, error)
	Create(ctx context.Context, emp Employee) (Employee, error)
	Update(ctx context.Context, emp Employee) (Employee, error)
	Delete(ctx context.Context, orgID, id string) error
}

var _ StoreAPI = (*Store)(nil)
