package reviews

import "errors"

var (
	ErrInvalidReview        = errors.New("invalid review input")
	ErrEmployeeNotFound     = errors.New("employee not found")
	ErrReviewNotFound       = errors.New("review not found")
	ErrTemplateNotFound     = errors.New("review template not found")
	ErrInvalidTemplate      = errors.New("invalid review template")
	ErrCreateFailed         = errors.New("failed to create review")
	ErrGenerationFailed     = errors.New("failed to generate review")
	ErrSaveFailed           = errors.New("failed to save review")
	ErrReviewArchived       = errors.New("review is archived")
	ErrNoContent            = errors.New("review has no content yet")
	ErrSubmissionInProgress = errors.New("a submission with this idempotency key is still generating")
	ErrDuplicateSubmission  = errors.New("idempotency key already used")
	ErrIdempotencyConflict  = errors.New("idempotency key was already used for a different review")
	ErrUsageLimitReached    = errors.New("review limit reached for the current plan")
)
