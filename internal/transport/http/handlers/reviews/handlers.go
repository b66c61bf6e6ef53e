package reviewhandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/domain/reviews"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

// Reviews is the review workflow surface used by the handlers.
type Reviews interface {
	Submit(ctx context.Context, in reviews.SubmitInput) (*reviews.Review, error)
	Regenerate(ctx context.Context, orgID, userID, id string) (*reviews.Review, error)
	SaveContent(ctx context.Context, orgID, userID, id, content string) (*reviews.Review, error)
	Archive(ctx context.Context, orgID, id string) (*reviews.Review, error)
	Delete(ctx context.Context, orgID, id string) error
	Get(ctx context.Context, orgID, id string) (*reviews.Review, error)
	List(ctx context.Context, orgID string, filter reviews.Filter) ([]reviews.Review, int, error)
	ExportPDF(ctx context.Context, orgID, id string, w io.Writer) (*reviews.Review, error)
	ExportDOCX(ctx context.Context, orgID, id string, w io.Writer) (*reviews.Review, error)

	ListTemplates(ctx context.Context, orgID string) ([]reviews.Template, error)
	GetTemplate(ctx context.Context, orgID, id string) (*reviews.Template, error)
	CreateTemplate(ctx context.Context, tmpl reviews.Template) (reviews.Template, error)
	DeleteTemplate(ctx context.Context, orgID, id string) error
}

type Handler struct {
	Reviews Reviews
	Audit   shared.Auditor
}

func NewHandler(svc Reviews, auditor shared.Auditor) *Handler {
	return &Handler{Reviews: svc, Audit: auditor}
}

type submitRequest struct {
	EmployeeID         string            `json:"employeeId"`
	TemplateID         string            `json:"templateId"`
	ReviewType         string            `json:"reviewType"`
	ReviewPeriod       string            `json:"reviewPeriod"`
	ReviewerName       string            `json:"reviewerName"`
	DueDate            string            `json:"dueDate"`
	Strengths          string            `json:"strengths"`
	Improvements       string            `json:"improvements"`
	AdditionalComments string            `json:"additionalComments"`
	TonePreference     string            `json:"tonePreference"`
	Rating             string            `json:"rating"`
	FieldValues        map[string]string `json:"fieldValues"`
}

type contentRequest struct {
	Content string `json:"content"`
}

const maxFreeText = 10000

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reviews", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReviewsRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermReviewsWrite), middleware.IdempotencyKey).Post("/", h.handleSubmit)
		r.Route("/{reviewID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermReviewsRead)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermReviewsRead)).Get("/pdf", h.handleExportPDF)
			r.With(middleware.RequirePermission(auth.PermReviewsRead)).Get("/docx", h.handleExportDOCX)
			r.With(middleware.RequirePermission(auth.PermReviewsWrite)).Put("/content", h.handleSaveContent)
			r.With(middleware.RequirePermission(auth.PermReviewsWrite)).Post("/regenerate", h.handleRegenerate)
			r.With(middleware.RequirePermission(auth.PermReviewsWrite)).Post("/archive", h.handleArchive)
			r.With(middleware.RequirePermission(auth.PermReviewsDelete)).Delete("/", h.handleDelete)
		})
	})
	r.Route("/templates", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReviewsRead)).Get("/", h.handleListTemplates)
		r.With(middleware.RequirePermission(auth.PermTemplatesWrite)).Post("/", h.handleCreateTemplate)
		r.With(middleware.RequirePermission(auth.PermReviewsRead)).Get("/{templateID}", h.handleGetTemplate)
		r.With(middleware.RequirePermission(auth.PermTemplatesWrite)).Delete("/{templateID}", h.handleDeleteTemplate)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload submitRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	v.Required("reviewPeriod", payload.ReviewPeriod, "is required")
	v.Required("reviewerName", payload.ReviewerName, "is required")
	v.Required("strengths", payload.Strengths, "is required")
	v.Required("improvements", payload.Improvements, "is required")
	v.MaxLen("reviewPeriod", payload.ReviewPeriod, 100)
	v.MaxLen("reviewerName", payload.ReviewerName, 200)
	v.MaxLen("strengths", payload.Strengths, maxFreeText)
	v.MaxLen("improvements", payload.Improvements, maxFreeText)
	v.MaxLen("additionalComments", payload.AdditionalComments, maxFreeText)
	v.Enum("tonePreference", payload.TonePreference, reviews.Tones, "is not a supported tone")
	v.Enum("reviewType", payload.ReviewType, reviews.ReviewTypes, "is not a supported review type")
	v.Date("dueDate", payload.DueDate)
	if v.Reject(w, reqID) {
		return
	}
	dueDate, _ := shared.ParseDate(payload.DueDate)

	review, err := h.Reviews.Submit(r.Context(), reviews.SubmitInput{
		OrganizationID:     user.OrganizationID,
		UserID:             user.UserID,
		EmployeeID:         payload.EmployeeID,
		TemplateID:         payload.TemplateID,
		ReviewType:         payload.ReviewType,
		ReviewPeriod:       payload.ReviewPeriod,
		ReviewerName:       payload.ReviewerName,
		DueDate:            dueDate,
		Strengths:          payload.Strengths,
		Improvements:       payload.Improvements,
		AdditionalComments: payload.AdditionalComments,
		TonePreference:     payload.TonePreference,
		Rating:             payload.Rating,
		IdempotencyKey:     middleware.GetIdempotencyKey(r.Context()),
		FieldValues:        payload.FieldValues,
	})
	if review != nil {
		shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionGenerate, "review", review.ID, map[string]string{
			"employeeId": review.EmployeeID,
			"status":     review.Status,
		}))
	}
	if err != nil {
		writeError(w, err, review, reqID)
		return
	}
	api.Created(w, review, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	filter := reviews.Filter{
		EmployeeID: strings.TrimSpace(r.URL.Query().Get("employeeId")),
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	items, total, err := h.Reviews.List(r.Context(), user.OrganizationID, filter)
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	if items == nil {
		items = []reviews.Review{}
	}
	api.Success(w, api.Page{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	review, err := h.Reviews.Get(r.Context(), user.OrganizationID, chi.URLParam(r, "reviewID"))
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	api.Success(w, review, reqID)
}

func (h *Handler) handleSaveContent(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload contentRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	id := chi.URLParam(r, "reviewID")
	review, err := h.Reviews.SaveContent(r.Context(), user.OrganizationID, user.UserID, id, payload.Content)
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionUpdate, "review", id, nil))
	api.Success(w, review, reqID)
}

func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "reviewID")
	review, err := h.Reviews.Regenerate(r.Context(), user.OrganizationID, user.UserID, id)
	if review != nil {
		shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionGenerate, "review", id, map[string]string{"status": review.Status}))
	}
	if err != nil {
		writeError(w, err, review, reqID)
		return
	}
	api.Success(w, review, reqID)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "reviewID")
	review, err := h.Reviews.Archive(r.Context(), user.OrganizationID, id)
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionArchive, "review", id, nil))
	api.Success(w, review, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "reviewID")
	if err := h.Reviews.Delete(r.Context(), user.OrganizationID, id); err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionDelete, "review", id, nil))
	api.Success(w, map[string]string{"id": id, "status": "deleted"}, reqID)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type exportFunc func(ctx context.Context, orgID, id string, w io.Writer) (*reviews.Review, error)

type exportFormat struct {
	contentType string
	extension   string
}

var (
	pdfFormat  = exportFormat{contentType: "application/pdf", extension: "pdf"}
	docxFormat = exportFormat{contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", extension: "docx"}
)

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.Reviews.ExportPDF, pdfFormat)
}

func (h *Handler) handleExportDOCX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, h.Reviews.ExportDOCX, docxFormat)
}

// export renders into a buffer first so a failed render still gets a JSON
// error instead of a truncated download.
func (h *Handler) export(w http.ResponseWriter, r *http.Request, render exportFunc, format exportFormat) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	review, err := render(r.Context(), user.OrganizationID, chi.URLParam(r, "reviewID"), &buf)
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}

	name := strings.Trim(unsafeFilename.ReplaceAllString(review.Title, "-"), "-")
	if name == "" {
		name = "review"
	}
	w.Header().Set("Content-Type", format.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format.extension))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("write review export failed", "review", review.ID, "format", format.extension, "err", err)
	}
}

// writeError maps workflow errors to the envelope. A failed generation still
// returns the degraded review so the client can offer a retry.
func writeError(w http.ResponseWriter, err error, review *reviews.Review, reqID string) {
	switch {
	case errors.Is(err, reviews.ErrGenerationFailed):
		api.FailWithDetails(w, http.StatusBadGateway, "generation_failed", "failed to generate review", map[string]any{"review": review}, reqID)
	case errors.Is(err, reviews.ErrCreateFailed):
		api.Fail(w, http.StatusInternalServerError, "create_failed", "failed to create review", reqID)
	case errors.Is(err, reviews.ErrSaveFailed):
		api.Fail(w, http.StatusInternalServerError, "save_failed", "failed to save review", reqID)
	case errors.Is(err, reviews.ErrInvalidReview), errors.Is(err, reviews.ErrInvalidTemplate):
		api.Fail(w, http.StatusBadRequest, "invalid_review", err.Error(), reqID)
	case errors.Is(err, reviews.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "employee_not_found", "employee not found", reqID)
	case errors.Is(err, reviews.ErrReviewNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "review not found", reqID)
	case errors.Is(err, reviews.ErrTemplateNotFound):
		api.Fail(w, http.StatusNotFound, "template_not_found", "review template not found", reqID)
	case errors.Is(err, reviews.ErrSubmissionInProgress):
		api.Fail(w, http.StatusConflict, "submission_in_progress", err.Error(), reqID)
	case errors.Is(err, reviews.ErrIdempotencyConflict):
		api.Fail(w, http.StatusUnprocessableEntity, "idempotency_conflict", err.Error(), reqID)
	case errors.Is(err, reviews.ErrReviewArchived):
		api.Fail(w, http.StatusConflict, "review_archived", err.Error(), reqID)
	case errors.Is(err, reviews.ErrNoContent):
		api.Fail(w, http.StatusConflict, "no_content", err.Error(), reqID)
	case errors.Is(err, reviews.ErrUsageLimitReached):
		api.Fail(w, http.StatusPaymentRequired, "usage_limit_reached", err.Error(), reqID)
	default:
		slog.Warn("review request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "review_failed", "review request failed", reqID)
	}
}
