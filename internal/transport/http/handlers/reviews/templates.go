package reviewhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/reviews"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

type templateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ReviewType  string         `json:"reviewType"`
	Fields      []fieldRequest `json:"fields"`
}

type fieldRequest struct {
	Label     string   `json:"label"`
	FieldType string   `json:"fieldType"`
	Required  bool     `json:"required"`
	Options   []string `json:"options"`
}

const maxTemplateFields = 50

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	items, err := h.Reviews.ListTemplates(r.Context(), user.OrganizationID)
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	if items == nil {
		items = []reviews.Template{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	tmpl, err := h.Reviews.GetTemplate(r.Context(), user.OrganizationID, chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	api.Success(w, tmpl, reqID)
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload templateRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.MaxLen("name", payload.Name, 200)
	v.MaxLen("description", payload.Description, 2000)
	if len(payload.Fields) > maxTemplateFields {
		v.Add("fields", "too many fields")
	}
	if v.Reject(w, reqID) {
		return
	}

	tmpl := reviews.Template{
		OrganizationID: user.OrganizationID,
		Name:           payload.Name,
		Description:    payload.Description,
		ReviewType:     payload.ReviewType,
		CreatedBy:      user.UserID,
	}
	for _, f := range payload.Fields {
		tmpl.Fields = append(tmpl.Fields, reviews.Field{
			Label:     f.Label,
			FieldType: f.FieldType,
			Required:  f.Required,
			Options:   f.Options,
		})
	}
	created, err := h.Reviews.CreateTemplate(r.Context(), tmpl)
	if err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionCreate, "review_template", created.ID, map[string]string{"name": created.Name}))
	api.Created(w, created, reqID)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "templateID")
	if err := h.Reviews.DeleteTemplate(r.Context(), user.OrganizationID, id); err != nil {
		writeError(w, err, nil, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionDelete, "review_template", id, nil))
	api.Success(w, map[string]string{"id": id, "status": "deleted"}, reqID)
}
