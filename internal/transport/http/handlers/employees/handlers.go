package employeehandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/domain/employees"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

type Directory interface {
	List(ctx context.Context, orgID string, filter employees.Filter) ([]employees.Employee, error)
	Get(ctx context.Context, orgID, id string) (*employees.Employee, error)
	Create(ctx context.Context, emp employees.Employee) (employees.Employee, error)
	Update(ctx context.Context, orgID, id string, update employees.Update) (employees.Employee, error)
	Delete(ctx context.Context, orgID, id string) error
}

type Handler struct {
	Directory Directory
	Audit     shared.Auditor
}

func NewHandler(directory Directory, auditor shared.Auditor) *Handler {
	return &Handler{Directory: directory, Audit: auditor}
}

type createRequest struct {
	Name       string `json:"name"`
	Position   string `json:"position"`
	Department string `json:"department"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Status     string `json:"status"`
	ImageURL   string `json:"imageUrl"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite)).Post("/", h.handleCreate)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermEmployeesRead)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermEmployeesWrite)).Put("/", h.handleUpdate)
			r.With(middleware.RequirePermission(auth.PermEmployeesWrite)).Delete("/", h.handleDelete)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := employees.Filter{
		Status:     strings.TrimSpace(query.Get("status")),
		Department: strings.TrimSpace(query.Get("department")),
		Search:     strings.TrimSpace(query.Get("q")),
	}
	list, err := h.Directory.List(r.Context(), user.OrganizationID, filter)
	if err != nil {
		slog.Warn("employee list failed", "orgId", user.OrganizationID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "employee_list_failed", "failed to list employees", reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	emp, err := h.Directory.Get(r.Context(), user.OrganizationID, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload createRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.MaxLen("name", payload.Name, 200)
	v.Enum("status", payload.Status, employees.Statuses, "must be Active, On Leave or Inactive")
	if v.Reject(w, reqID) {
		return
	}

	emp, err := h.Directory.Create(r.Context(), employees.Employee{
		OrganizationID: user.OrganizationID,
		Name:           payload.Name,
		Position:       payload.Position,
		Department:     payload.Department,
		Email:          payload.Email,
		Phone:          payload.Phone,
		Status:         payload.Status,
		ImageURL:       payload.ImageURL,
	})
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionCreate, "employee", emp.ID, map[string]string{"name": emp.Name}))
	api.Created(w, emp, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload employees.Update
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	id := chi.URLParam(r, "employeeID")
	emp, err := h.Directory.Update(r.Context(), user.OrganizationID, id, payload)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionUpdate, "employee", id, nil))
	api.Success(w, emp, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "employeeID")
	if err := h.Directory.Delete(r.Context(), user.OrganizationID, id); err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionDelete, "employee", id, nil))
	api.Success(w, map[string]string{"id": id, "status": "deleted"}, reqID)
}

func writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, employees.ErrEmployeeNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
	case errors.Is(err, employees.ErrEmployeeInUse):
		api.Fail(w, http.StatusConflict, "employee_in_use", err.Error(), reqID)
	case errors.Is(err, employees.ErrNameRequired),
		errors.Is(err, employees.ErrInvalidStatus),
		errors.Is(err, employees.ErrInvalidEmail):
		api.Fail(w, http.StatusBadRequest, "invalid_employee", err.Error(), reqID)
	default:
		slog.Warn("employee request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "employee_failed", "employee request failed", reqID)
	}
}
