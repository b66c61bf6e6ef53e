package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appraze/internal/platform/crypto"
	"appraze/internal/platform/db"
)

// Store persists reviews. Free-text columns go through the crypto box so they
// are sealed at rest when a data key is configured.
type Store struct {
	DB  *pgxpool.Pool
	Box *crypto.Box
}

func NewStore(pool *pgxpool.Pool, box *crypto.Box) *Store {
	return &Store{DB: pool, Box: box}
}

const reviewColumns = `r.id::text, r.organization_id::text, r.user_id::text, r.employee_id::text, COALESCE(r.template_id::text, ''),
           r.title, r.review_type, r.reviewer_name, r.review_period, r.due_date,
           r.strengths, r.improvements, r.additional_comments, r.tone_preference, r.overall_rating,
           r.status, r.progress, r.workflow_state, r.content, r.last_error, COALESCE(r.idempotency_key, ''), r.request_hash,
           r.created_at, r.updated_at,
           e.id::text, e.name, e.position, e.department, e.image_url`

const reviewFrom = ` FROM reviews r JOIN employees e ON e.id = r.employee_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanReview(row rowScanner) (Review, error) {
	var r Review
	var emp EmployeeSnapshot
	err := row.Scan(&r.ID, &r.OrganizationID, &r.UserID, &r.EmployeeID, &r.TemplateID,
		&r.Title, &r.ReviewType, &r.ReviewerName, &r.ReviewPeriod, &r.DueDate,
		&r.Strengths, &r.Improvements, &r.AdditionalComments, &r.TonePreference, &r.Rating,
		&r.Status, &r.Progress, &r.WorkflowState, &r.Content, &r.LastError, &r.IdempotencyKey, &r.RequestHash,
		&r.CreatedAt, &r.UpdatedAt,
		&emp.ID, &emp.Name, &emp.Position, &emp.Department, &emp.ImageURL)
	if err != nil {
		return Review{}, err
	}
	r.Employee = &emp
	if err := s.open(&r); err != nil {
		return Review{}, err
	}
	return r, nil
}

func (s *Store) open(r *Review) error {
	var err error
	if r.Strengths, err = s.Box.Open(r.Strengths); err != nil {
		return err
	}
	if r.Improvements, err = s.Box.Open(r.Improvements); err != nil {
		return err
	}
	if r.AdditionalComments, err = s.Box.Open(r.AdditionalComments); err != nil {
		return err
	}
	if r.Content != nil {
		plain, err := s.Box.Open(*r.Content)
		if err != nil {
			return err
		}
		r.Content = &plain
	}
	return nil
}

func (s *Store) seal(values ...string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		sealed, err := s.Box.Seal(v)
		if err != nil {
			return nil, err
		}
		out[i] = sealed
	}
	return out, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// CreateReview inserts the review row and its template field values together.
func (s *Store) CreateReview(ctx context.Context, review Review, values []FieldValue) (Review, error) {
	sealed, err := s.seal(review.Strengths, review.Improvements, review.AdditionalComments)
	if err != nil {
		return Review{}, err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Review{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
    INSERT INTO reviews (organization_id, user_id, employee_id, template_id, title, review_type, reviewer_name,
                         review_period, due_date, strengths, improvements, additional_comments, tone_preference,
                         overall_rating, status, progress, workflow_state, idempotency_key, request_hash)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
    RETURNING id::text
  `, review.OrganizationID, review.UserID, review.EmployeeID, nullable(review.TemplateID), review.Title, review.ReviewType,
		review.ReviewerName, review.ReviewPeriod, review.DueDate, sealed[0], sealed[1], sealed[2], review.TonePreference,
		review.Rating, review.Status, review.Progress, review.WorkflowState, nullable(review.IdempotencyKey), review.RequestHash).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "reviews_idempotency_idx") {
			return Review{}, ErrDuplicateSubmission
		}
		return Review{}, err
	}

	for _, v := range values {
		if _, err := tx.Exec(ctx, `
      INSERT INTO review_field_values (review_id, field_id, value)
      VALUES ($1, $2, $3)
    `, id, v.FieldID, v.Value); err != nil {
			return Review{}, fmt.Errorf("insert field value: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Review{}, err
	}
	created, err := s.GetReview(ctx, review.OrganizationID, id)
	if err != nil {
		return Review{}, err
	}
	if created == nil {
		return Review{}, ErrReviewNotFound
	}
	return *created, nil
}

func (s *Store) GetReview(ctx context.Context, orgID, id string) (*Review, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+reviewColumns+reviewFrom+" WHERE r.organization_id = $1 AND r.id = $2", orgID, id)
	review, err := s.scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, orgID, key string) (*Review, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+reviewColumns+reviewFrom+" WHERE r.organization_id = $1 AND r.idempotency_key = $2", orgID, key)
	review, err := s.scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *Store) ListReviews(ctx context.Context, orgID string, filter Filter) ([]Review, int, error) {
	where := " WHERE r.organization_id = $1"
	args := []any{orgID}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND r.employee_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND r.status = $%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1)"+reviewFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + reviewColumns + reviewFrom + where + " ORDER BY r.created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		review, err := s.scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, review)
	}
	return out, total, rows.Err()
}

func (s *Store) ListFieldValues(ctx context.Context, reviewID string) ([]FieldValue, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT v.field_id::text, f.label, v.value
    FROM review_field_values v
    JOIN review_fields f ON f.id = v.field_id
    WHERE v.review_id = $1
    ORDER BY f.position
  `, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FieldValue
	for rows.Next() {
		var v FieldValue
		if err := rows.Scan(&v.FieldID, &v.Label, &v.Value); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.DB.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (s *Store) MarkGenerating(ctx context.Context, orgID, id string) error {
	return s.exec(ctx, `
    UPDATE reviews
    SET status = $3, progress = $4, workflow_state = $5, last_error = '', updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, id, StatusInProgress, ProgressDrafted, WorkflowGenerating)
}

// MarkGenerationFailed drops the row back to an empty draft.
func (s *Store) MarkGenerationFailed(ctx context.Context, orgID, id, reason string) error {
	return s.exec(ctx, `
    UPDATE reviews
    SET content = NULL, status = $3, progress = $4, workflow_state = $5, last_error = $6, updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, id, StatusDraft, ProgressFailed, WorkflowFailed, reason)
}

// MarkRegenerationFailed keeps the previous text and puts the row back to
// completed with the failure recorded.
func (s *Store) MarkRegenerationFailed(ctx context.Context, orgID, id, reason string) error {
	return s.exec(ctx, `
    UPDATE reviews
    SET status = $3, progress = $4, workflow_state = $5, last_error = $6, updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, id, StatusCompleted, ProgressCompleted, WorkflowFailed, reason)
}

func (s *Store) CompleteReview(ctx context.Context, orgID, id, content string) (Review, error) {
	return s.writeContent(ctx, orgID, id, content, WorkflowGenerated)
}

func (s *Store) UpdateContent(ctx context.Context, orgID, id, content string) (Review, error) {
	return s.writeContent(ctx, orgID, id, content, WorkflowGenerated)
}

func (s *Store) writeContent(ctx context.Context, orgID, id, content, state string) (Review, error) {
	sealed, err := s.Box.Seal(content)
	if err != nil {
		return Review{}, err
	}
	if err := s.exec(ctx, `
    UPDATE reviews
    SET content = $3, status = $4, progress = $5, workflow_state = $6, last_error = '', updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, id, sealed, StatusCompleted, ProgressCompleted, state); err != nil {
		return Review{}, err
	}
	return s.mustGet(ctx, orgID, id)
}

func (s *Store) MarkNotified(ctx context.Context, orgID, id string) error {
	return s.exec(ctx, `
    UPDATE reviews SET workflow_state = $3, updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, id, WorkflowNotified)
}

func (s *Store) SetStatus(ctx context.Context, orgID, id, status string) (Review, error) {
	if err := s.exec(ctx, `
    UPDATE reviews SET status = $3, updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, id, status); err != nil {
		return Review{}, err
	}
	return s.mustGet(ctx, orgID, id)
}

func (s *Store) DeleteReview(ctx context.Context, orgID, id string) error {
	return s.exec(ctx, "DELETE FROM reviews WHERE organization_id = $1 AND id = $2", orgID, id)
}

// ResetStale regresses rows whose generation never finished, for example
// after a process restart. Rows that still hold earlier text go back to
// completed; the rest look like any other failed draft.
func (s *Store) ResetStale(ctx context.Context, before time.Time, reason string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE reviews
    SET status = CASE WHEN content IS NULL THEN $1::text ELSE $7::text END,
        progress = CASE WHEN content IS NULL THEN $2::int ELSE $8::int END,
        workflow_state = $3, last_error = $4, updated_at = now()
    WHERE status = $5 AND updated_at < $6
  `, StatusDraft, ProgressFailed, WorkflowFailed, reason, StatusInProgress, before, StatusCompleted, ProgressCompleted)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) mustGet(ctx context.Context, orgID, id string) (Review, error) {
	review, err := s.GetReview(ctx, orgID, id)
	if err != nil {
		return Review{}, err
	}
	if review == nil {
		return Review{}, ErrReviewNotFound
	}
	return *review, nil
}
