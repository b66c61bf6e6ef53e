package reviewhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraze/internal/domain/auth"
	"appraze/internal/domain/reviews"
	"appraze/internal/transport/http/middleware"
)

type fakeReviews struct {
	submitted []reviews.SubmitInput
	submitErr error
	filter    reviews.Filter
	deleted   []string
}

func (f *fakeReviews) Submit(_ context.Context, in reviews.SubmitInput) (*reviews.Review, error) {
	f.submitted = append(f.submitted, in)
	review := &reviews.Review{ID: "r1", OrganizationID: in.OrganizationID, EmployeeID: in.EmployeeID, Status: reviews.StatusCompleted}
	if f.submitErr != nil {
		if f.submitErr == reviews.ErrGenerationFailed {
			review.Status = reviews.StatusDraft
			review.Progress = reviews.ProgressFailed
			return review, fmt.Errorf("%w: upstream 500", reviews.ErrGenerationFailed)
		}
		return nil, f.submitErr
	}
	return review, nil
}

func (f *fakeReviews) Regenerate(_ context.Context, orgID, _, id string) (*reviews.Review, error) {
	return &reviews.Review{ID: id, OrganizationID: orgID, Status: reviews.StatusCompleted}, nil
}

func (f *fakeReviews) SaveContent(_ context.Context, orgID, _, id, content string) (*reviews.Review, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", reviews.ErrInvalidReview)
	}
	return &reviews.Review{ID: id, OrganizationID: orgID, Content: &content}, nil
}

func (f *fakeReviews) Archive(_ context.Context, orgID, id string) (*reviews.Review, error) {
	return &reviews.Review{ID: id, OrganizationID: orgID, Status: reviews.StatusArchived}, nil
}

func (f *fakeReviews) Delete(_ context.Context, _, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReviews) Get(_ context.Context, orgID, id string) (*reviews.Review, error) {
	if id != "r1" {
		return nil, reviews.ErrReviewNotFound
	}
	return &reviews.Review{ID: id, OrganizationID: orgID}, nil
}

func (f *fakeReviews) List(_ context.Context, _ string, filter reviews.Filter) ([]reviews.Review, int, error) {
	f.filter = filter
	return nil, 0, nil
}

func (f *fakeReviews) ExportPDF(_ context.Context, _, id string, w io.Writer) (*reviews.Review, error) {
	if id != "r1" {
		return nil, reviews.ErrNoContent
	}
	_, err := io.WriteString(w, "%PDF-1.3")
	return &reviews.Review{ID: id, Title: "Ada Lovelace - Q3 2026"}, err
}

func (f *fakeReviews) ExportDOCX(_ context.Context, _, id string, w io.Writer) (*reviews.Review, error) {
	if id != "r1" {
		return nil, reviews.ErrReviewNotFound
	}
	_, err := io.WriteString(w, "PK\x03\x04")
	return &reviews.Review{ID: id, Title: "Ada Lovelace - Q3 2026"}, err
}

func (f *fakeReviews) ListTemplates(context.Context, string) ([]reviews.Template, error) {
	return nil, nil
}

func (f *fakeReviews) GetTemplate(context.Context, string, string) (*reviews.Template, error) {
	return nil, reviews.ErrTemplateNotFound
}

func (f *fakeReviews) CreateTemplate(_ context.Context, tmpl reviews.Template) (reviews.Template, error) {
	tmpl.ID = "t1"
	return tmpl, nil
}

func (f *fakeReviews) DeleteTemplate(context.Context, string, string) error {
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func newRouter(svc *fakeReviews, role string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			user := auth.UserContext{UserID: "u1", OrganizationID: "o1", Role: role}
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), user)))
		})
	})
	NewHandler(svc, nil).RegisterRoutes(r)
	return r
}

func send(h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

const validSubmission = `{"employeeId":"e1","reviewPeriod":"Q3 2026","reviewerName":"Grace","strengths":"Ships\nMentors","improvements":"Docs","tonePreference":"direct","rating":"4","dueDate":"2026-12-31"}`

func TestSubmitReview(t *testing.T) {
	svc := &fakeReviews{}
	rec, env := send(newRouter(svc, auth.RoleMember), http.MethodPost, "/reviews", validSubmission, map[string]string{"Idempotency-Key": "k-1"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	require.Len(t, svc.submitted, 1)
	in := svc.submitted[0]
	assert.Equal(t, "o1", in.OrganizationID)
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, "k-1", in.IdempotencyKey)
	require.NotNil(t, in.DueDate)
	assert.Equal(t, 2026, in.DueDate.Year())
}

func TestSubmitReviewErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{name: "generation failure", err: reviews.ErrGenerationFailed, body: validSubmission, status: http.StatusBadGateway, code: "generation_failed"},
		{name: "create failure", err: fmt.Errorf("%w: db down", reviews.ErrCreateFailed), body: validSubmission, status: http.StatusInternalServerError, code: "create_failed"},
		{name: "in progress", err: reviews.ErrSubmissionInProgress, body: validSubmission, status: http.StatusConflict, code: "submission_in_progress"},
		{name: "key reused for another review", err: reviews.ErrIdempotencyConflict, body: validSubmission, status: http.StatusUnprocessableEntity, code: "idempotency_conflict"},
		{name: "usage limit", err: reviews.ErrUsageLimitReached, body: validSubmission, status: http.StatusPaymentRequired, code: "usage_limit_reached"},
		{name: "unknown employee", err: reviews.ErrEmployeeNotFound, body: validSubmission, status: http.StatusNotFound, code: "employee_not_found"},
		{name: "missing fields", body: `{"employeeId":"e1"}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "bad tone", body: `{"employeeId":"e1","reviewPeriod":"Q3","reviewerName":"G","strengths":"a","improvements":"b","tonePreference":"sarcastic"}`, status: http.StatusBadRequest, code: "validation_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := send(newRouter(&fakeReviews{submitErr: tc.err}, auth.RoleMember), http.MethodPost, "/reviews", tc.body, nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestGenerationFailureReturnsDegradedReview(t *testing.T) {
	_, env := send(newRouter(&fakeReviews{submitErr: reviews.ErrGenerationFailed}, auth.RoleMember), http.MethodPost, "/reviews", validSubmission, nil)
	require.NotNil(t, env.Error)

	var details struct {
		Review reviews.Review `json:"review"`
	}
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.Equal(t, reviews.StatusDraft, details.Review.Status)
	assert.Equal(t, reviews.ProgressFailed, details.Review.Progress)
}

func TestListReviewsPaginates(t *testing.T) {
	svc := &fakeReviews{}
	rec, env := send(newRouter(svc, auth.RoleMember), http.MethodGet, "/reviews?status=completed&limit=500&offset=20", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reviews.StatusCompleted, svc.filter.Status)
	assert.Equal(t, 100, svc.filter.Limit)
	assert.Equal(t, 20, svc.filter.Offset)
	assert.JSONEq(t, `{"items":[],"total":0,"limit":100,"offset":20}`, string(env.Data))
}

func TestDeleteRequiresAdmin(t *testing.T) {
	svc := &fakeReviews{}
	rec, _ := send(newRouter(svc, auth.RoleMember), http.MethodDelete, "/reviews/r1", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.deleted)

	rec, _ = send(newRouter(svc, auth.RoleAdmin), http.MethodDelete, "/reviews/r1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r1"}, svc.deleted)
}

func TestExportPDF(t *testing.T) {
	h := newRouter(&fakeReviews{}, auth.RoleMember)
	rec, _ := send(h, http.MethodGet, "/reviews/r1/pdf", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Ada-Lovelace-Q3-2026.pdf"`)
	assert.Equal(t, "%PDF-1.3", rec.Body.String())

	rec, env := send(h, http.MethodGet, "/reviews/r2/pdf", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "no_content", env.Error.Code)
}

func TestExportDOCX(t *testing.T) {
	h := newRouter(&fakeReviews{}, auth.RoleMember)
	rec, _ := send(h, http.MethodGet, "/reviews/r1/docx", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Ada-Lovelace-Q3-2026.docx"`)
	assert.Equal(t, "PK\x03\x04", rec.Body.String())

	rec, env := send(h, http.MethodGet, "/reviews/missing/docx", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestTemplateRoutes(t *testing.T) {
	member := newRouter(&fakeReviews{}, auth.RoleMember)
	rec, _ := send(member, http.MethodPost, "/templates", `{"name":"Quarterly"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := newRouter(&fakeReviews{}, auth.RoleAdmin)
	rec, _ = send(admin, http.MethodPost, "/templates", `{"name":"Quarterly","fields":[{"label":"Impact","fieldType":"rating"}]}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = send(admin, http.MethodGet, "/templates/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveContentValidation(t *testing.T) {
	rec, _ := send(newRouter(&fakeReviews{}, auth.RoleMember), http.MethodPut, "/reviews/r1/content", `{"content":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
