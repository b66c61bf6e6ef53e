package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"appraze/internal/domain/employees"
	"appraze/internal/domain/generation"
	"appraze/internal/platform/metrics"
)

type EmployeeDirectory interface {
	Get(ctx context.Context, orgID, id string) (*employees.Employee, error)
}

type ReviewGenerator interface {
	GenerateReview(ctx context.Context, p generation.Params) (string, error)
}

type CompletionNotifier interface {
	ReviewCompleted(ctx context.Context, email, employeeName, period, reviewID string) error
}

type Recipients interface {
	Email(ctx context.Context, userID string) (string, error)
}

type UsageMeter interface {
	CheckUsageLimit(ctx context.Context, orgID, feature string) (bool, error)
	TrackUsage(ctx context.Context, orgID, userID, feature string, quantity int) error
}

type Service struct {
	Store      StoreAPI
	Employees  EmployeeDirectory
	Generator  ReviewGenerator
	Notifier   CompletionNotifier
	Recipients Recipients
	Usage      UsageMeter
	Metrics    *metrics.Collector
	StaleAfter time.Duration
	now        func() time.Time
}

func NewService(store StoreAPI, directory EmployeeDirectory, generator ReviewGenerator, notifier CompletionNotifier, recipients Recipients) *Service {
	return &Service{
		Store:      store,
		Employees:  directory,
		Generator:  generator,
		Notifier:   notifier,
		Recipients: recipients,
		StaleAfter: 15 * time.Minute,
		now:        time.Now,
	}
}

// Submit runs the review workflow: insert the in-progress row, generate the
// text, complete the row and notify the submitter. A generation failure leaves
// the row behind as a draft and is returned together with that row. Replaying
// an idempotency key with a different submission fails with
// ErrIdempotencyConflict.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Review, error) {
	in = normalizeInput(in)
	if err := validateSubmission(in); err != nil {
		return nil, err
	}
	emp, err := s.employee(ctx, in.OrganizationID, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	values, err := s.templateValues(ctx, in)
	if err != nil {
		return nil, err
	}

	hash := requestHash(in)
	if in.IdempotencyKey != "" {
		existing, err := s.Store.FindByIdempotencyKey(ctx, in.OrganizationID, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if !existing.matchesRequest(hash) {
				return nil, ErrIdempotencyConflict
			}
			return s.resume(ctx, in.UserID, *existing)
		}
	}

	if err := s.checkUsage(ctx, in.OrganizationID); err != nil {
		return nil, err
	}

	review, err := s.Store.CreateReview(ctx, newReview(in, *emp, hash), values)
	if errors.Is(err, ErrDuplicateSubmission) {
		return nil, ErrSubmissionInProgress
	}
	if err != nil {
		slog.Warn("review insert failed", "employee", in.EmployeeID, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	review.FieldValues = values
	return s.generate(ctx, in.UserID, review)
}

// resume continues a submission that was retried with the same idempotency key.
func (s *Service) resume(ctx context.Context, userID string, existing Review) (*Review, error) {
	switch existing.Status {
	case StatusCompleted, StatusArchived:
		return &existing, nil
	case StatusInProgress:
		if s.now().Sub(existing.UpdatedAt) < s.StaleAfter {
			return nil, ErrSubmissionInProgress
		}
	}
	if err := s.Store.MarkGenerating(ctx, existing.OrganizationID, existing.ID); err != nil {
		return nil, err
	}
	values, err := s.Store.ListFieldValues(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	existing.FieldValues = values
	existing.Status = StatusInProgress
	existing.Progress = ProgressDrafted
	existing.WorkflowState = WorkflowGenerating
	existing.LastError = ""
	return s.generate(ctx, userID, existing)
}

// Regenerate reruns generation for an existing review, replacing its content.
func (s *Service) Regenerate(ctx context.Context, orgID, userID, id string) (*Review, error) {
	review, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if review.Status == StatusArchived {
		return nil, ErrReviewArchived
	}
	if review.Status == StatusInProgress && s.now().Sub(review.UpdatedAt) < s.StaleAfter {
		return nil, ErrSubmissionInProgress
	}
	if err := s.checkUsage(ctx, orgID); err != nil {
		return nil, err
	}
	if err := s.Store.MarkGenerating(ctx, orgID, id); err != nil {
		return nil, err
	}
	review.Status = StatusInProgress
	review.Progress = ProgressDrafted
	review.WorkflowState = WorkflowGenerating
	review.LastError = ""
	return s.generate(ctx, userID, *review)
}

func (s *Service) generate(ctx context.Context, userID string, review Review) (*Review, error) {
	started := s.now()
	content, err := s.Generator.GenerateReview(ctx, paramsFor(review))
	s.Metrics.RecordGeneration(err == nil, s.now().Sub(started))

	// The caller may have gone away; the row still has to reach a final state.
	persist := context.WithoutCancel(ctx)
	if err != nil {
		slog.Warn("review generation failed", "review", review.ID, "err", err)
		return s.failGeneration(persist, review, err)
	}

	completed, err := s.Store.CompleteReview(persist, review.OrganizationID, review.ID, content)
	if err != nil {
		slog.Warn("review completion failed", "review", review.ID, "err", err)
		return &review, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	completed.FieldValues = review.FieldValues

	if s.Usage != nil {
		if err := s.Usage.TrackUsage(persist, completed.OrganizationID, userID, UsageFeature, 1); err != nil {
			slog.Warn("track review usage failed", "review", completed.ID, "err", err)
		}
	}
	s.notify(persist, userID, &completed)
	return &completed, nil
}

// failGeneration records a failed run. A review that already had text keeps it
// and stays completed; anything else falls back to an empty draft.
func (s *Service) failGeneration(ctx context.Context, review Review, cause error) (*Review, error) {
	reason := truncate(cause.Error(), maxErrorLength)
	if review.hasContent() {
		if err := s.Store.MarkRegenerationFailed(ctx, review.OrganizationID, review.ID, reason); err != nil {
			slog.Warn("mark regeneration failed", "review", review.ID, "err", err)
		}
		review.Status = StatusCompleted
		review.Progress = ProgressCompleted
	} else {
		if err := s.Store.MarkGenerationFailed(ctx, review.OrganizationID, review.ID, reason); err != nil {
			slog.Warn("mark review failed", "review", review.ID, "err", err)
		}
		review.Status = StatusDraft
		review.Progress = ProgressFailed
		review.Content = nil
	}
	review.WorkflowState = WorkflowFailed
	review.LastError = reason
	return &review, fmt.Errorf("%w: %w", ErrGenerationFailed, cause)
}

// notify is best effort. Failures are logged and never change the outcome.
func (s *Service) notify(ctx context.Context, userID string, review *Review) {
	if s.Notifier == nil || s.Recipients == nil {
		return
	}
	email, err := s.Recipients.Email(ctx, userID)
	if err != nil || email == "" {
		slog.Warn("review notification skipped", "review", review.ID, "err", err)
		return
	}
	if err := s.Notifier.ReviewCompleted(ctx, email, review.employeeName(), review.ReviewPeriod, review.ID); err != nil {
		slog.Warn("review notification failed", "review", review.ID, "err", err)
		return
	}
	if err := s.Store.MarkNotified(ctx, review.OrganizationID, review.ID); err != nil {
		slog.Warn("mark review notified failed", "review", review.ID, "err", err)
		return
	}
	review.WorkflowState = WorkflowNotified
}

// SaveContent stores manually edited text and treats the review as completed.
func (s *Service) SaveContent(ctx context.Context, orgID, userID, id, content string) (*Review, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidReview)
	}
	current, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusArchived {
		return nil, ErrReviewArchived
	}
	updated, err := s.Store.UpdateContent(ctx, orgID, id, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	updated.FieldValues = current.FieldValues
	s.notify(context.WithoutCancel(ctx), userID, &updated)
	return &updated, nil
}

func (s *Service) Archive(ctx context.Context, orgID, id string) (*Review, error) {
	review, err := s.Store.SetStatus(ctx, orgID, id, StatusArchived)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	return s.Store.DeleteReview(ctx, orgID, id)
}

func (s *Service) Get(ctx context.Context, orgID, id string) (*Review, error) {
	review, err := s.Store.GetReview(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrReviewNotFound
	}
	values, err := s.Store.ListFieldValues(ctx, review.ID)
	if err != nil {
		return nil, err
	}
	review.FieldValues = values
	return review, nil
}

func (s *Service) List(ctx context.Context, orgID string, filter Filter) ([]Review, int, error) {
	if filter.Status != "" && !contains(Statuses, filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidReview, filter.Status)
	}
	return s.Store.ListReviews(ctx, orgID, filter)
}

// SweepStale regresses reviews stuck in generation past StaleAfter.
func (s *Service) SweepStale(ctx context.Context) (int64, error) {
	return s.Store.ResetStale(ctx, s.now().Add(-s.StaleAfter), staleReason)
}

func (s *Service) employee(ctx context.Context, orgID, id string) (*employees.Employee, error) {
	emp, err := s.Employees.Get(ctx, orgID, id)
	if errors.Is(err, employees.ErrEmployeeNotFound) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, ErrEmployeeNotFound
	}
	return emp, nil
}

func (s *Service) checkUsage(ctx context.Context, orgID string) error {
	if s.Usage == nil {
		return nil
	}
	allowed, err := s.Usage.CheckUsageLimit(ctx, orgID, UsageFeature)
	if err != nil {
		slog.Warn("usage limit check failed", "organization", orgID, "err", err)
		return nil
	}
	if !allowed {
		return ErrUsageLimitReached
	}
	return nil
}

func normalizeInput(in SubmitInput) SubmitInput {
	in.EmployeeID = strings.TrimSpace(in.EmployeeID)
	in.TemplateID = strings.TrimSpace(in.TemplateID)
	in.ReviewType = strings.ToLower(strings.TrimSpace(in.ReviewType))
	in.ReviewPeriod = strings.TrimSpace(in.ReviewPeriod)
	in.ReviewerName = strings.TrimSpace(in.ReviewerName)
	in.Strengths = strings.TrimSpace(in.Strengths)
	in.Improvements = strings.TrimSpace(in.Improvements)
	in.AdditionalComments = strings.TrimSpace(in.AdditionalComments)
	in.TonePreference = strings.ToLower(strings.TrimSpace(in.TonePreference))
	in.Rating = strings.TrimSpace(in.Rating)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.ReviewType == "" {
		in.ReviewType = defaultType
	}
	if in.TonePreference == "" {
		in.TonePreference = ToneProfessional
	}
	return in
}

func validateSubmission(in SubmitInput) error {
	switch {
	case in.OrganizationID == "" || in.UserID == "":
		return fmt.Errorf("%w: missing owner", ErrInvalidReview)
	case in.EmployeeID == "":
		return fmt.Errorf("%w: employee is required", ErrInvalidReview)
	case in.ReviewPeriod == "":
		return fmt.Errorf("%w: review period is required", ErrInvalidReview)
	case in.ReviewerName == "":
		return fmt.Errorf("%w: reviewer name is required", ErrInvalidReview)
	case in.Strengths == "":
		return fmt.Errorf("%w: strengths are required", ErrInvalidReview)
	case in.Improvements == "":
		return fmt.Errorf("%w: areas for improvement are required", ErrInvalidReview)
	case !contains(Tones, in.TonePreference):
		return fmt.Errorf("%w: unknown tone %q", ErrInvalidReview, in.TonePreference)
	case !contains(ReviewTypes, in.ReviewType):
		return fmt.Errorf("%w: unknown review type %q", ErrInvalidReview, in.ReviewType)
	case len(in.IdempotencyKey) > 200:
		return fmt.Errorf("%w: idempotency key too long", ErrInvalidReview)
	}
	return nil
}

func newReview(in SubmitInput, emp employees.Employee, hash string) Review {
	return Review{
		OrganizationID:     in.OrganizationID,
		UserID:             in.UserID,
		EmployeeID:         emp.ID,
		TemplateID:         in.TemplateID,
		Title:              emp.Name + " - " + in.ReviewPeriod,
		ReviewType:         in.ReviewType,
		ReviewerName:       in.ReviewerName,
		ReviewPeriod:       in.ReviewPeriod,
		DueDate:            in.DueDate,
		Strengths:          in.Strengths,
		Improvements:       in.Improvements,
		AdditionalComments: in.AdditionalComments,
		TonePreference:     in.TonePreference,
		Rating:             ratingValue(in.Rating),
		Status:             StatusInProgress,
		Progress:           ProgressDrafted,
		WorkflowState:      WorkflowGenerating,
		IdempotencyKey:     in.IdempotencyKey,
		RequestHash:        hash,
		Employee: &EmployeeSnapshot{
			ID:         emp.ID,
			Name:       emp.Name,
			Position:   emp.Position,
			Department: emp.Department,
			ImageURL:   emp.ImageURL,
		},
	}
}

// ratingValue keeps only the codes the prompt knows how to label.
func ratingValue(code string) *int {
	if generation.RatingLabel(code) == "" {
		return nil
	}
	value, err := strconv.Atoi(code)
	if err != nil {
		return nil
	}
	return &value
}

func paramsFor(r Review) generation.Params {
	p := generation.Params{
		ReviewPeriod:       r.ReviewPeriod,
		ReviewerName:       r.ReviewerName,
		Strengths:          r.Strengths,
		Improvements:       r.Improvements,
		Tone:               r.TonePreference,
		AdditionalComments: r.AdditionalComments,
	}
	if r.Employee != nil {
		p.Employee = generation.Employee{
			Name:       r.Employee.Name,
			Position:   r.Employee.Position,
			Department: r.Employee.Department,
		}
	}
	if r.Rating != nil {
		p.Rating = strconv.Itoa(*r.Rating)
	}
	if extra := fieldContext(r.FieldValues); extra != "" {
		if p.AdditionalComments != "" {
			p.AdditionalComments += "\n"
		}
		p.AdditionalComments += extra
	}
	return p
}

func fieldContext(values []FieldValue) string {
	var lines []string
	for _, v := range values {
		if v.Label == "" || strings.TrimSpace(v.Value) == "" {
			continue
		}
		lines = append(lines, v.Label+": "+v.Value)
	}
	return strings.Join(lines, "\n")
}

func (r Review) hasContent() bool {
	return r.Content != nil && strings.TrimSpace(*r.Content) != ""
}

func (r Review) employeeName() string {
	if r.Employee != nil {
		return r.Employee.Name
	}
	return ""
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return strings.ToValidUTF8(value[:limit], "")
}
