package reviews

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateReview(ctx context.Context, review Review, values []FieldValue) (Review, error)
	GetReview(ctx context.Context, orgID, id string) (*Review, error)
	FindByIdempotencyKey(ctx context.Context, orgID, key string) (*Review, error)
	ListReviews(ctx context.Context, orgID string, filter Filter) ([]Review, int, error)
	ListFieldValues(ctx context.Context, reviewID string) ([]FieldValue, error)

	MarkGenerating(ctx context.Context, orgID, id string) error
	MarkGenerationFailed(ctx context.Context, orgID, id, reason string) error
	MarkRegenerationFailed(ctx context.Context, orgID, id, reason string) error
	CompleteReview(ctx context.Context, orgID, id, content string) (Review, error)
	MarkNotified(ctx context.Context, orgID, id string) error
	UpdateContent(ctx context.Context, orgID, id, content string) (Review, error)
	SetStatus(ctx context.Context, orgID, id, status string) (Review, error)
	DeleteReview(ctx context.Context, orgID, id string) error
	ResetStale(ctx context.Context, before time.Time, reason string) (int64, error)

	ListTemplates(ctx context.Context, orgID string) ([]Template, error)
	GetTemplate(ctx context.Context, orgID, id string) (*Template, error)
	CreateTemplate(ctx context.Context, tmpl Template) (Template, error)
	DeleteTemplate(ctx context.Context, orgID, id string) error
}

var _ StoreAPI = (*Store)(nil)
