package audithandler

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

const maxExportRows = 5000

type Events interface {
	List(ctx context.Context, orgID string, filter audit.Filter, limit, offset int) ([]audit.Event, int, error)
}

type Handler struct {
	Events Events
}

func NewHandler(events Events) *Handler {
	return &Handler{Events: events}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAuditRead))
		r.Get("/events", h.handleListEvents)
		r.Get("/events/export", h.handleExportEvents)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	query := r.URL.Query()
	return audit.Filter{
		Action:     query.Get("action"),
		EntityType: query.Get("entityType"),
		UserID:     query.Get("userId"),
	}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 50, 500)
	events, total, err := h.Events.List(r.Context(), user.OrganizationID, filterFrom(r), page.Limit, page.Offset)
	if err != nil {
		slog.Warn("audit list failed", "orgId", user.OrganizationID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", reqID)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, api.Page{Items: events, Total: total, Limit: page.Limit, Offset: page.Offset}, reqID)
}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	events, _, err := h.Events.List(r.Context(), user.OrganizationID, filterFrom(r), maxExportRows, 0)
	if err != nil {
		slog.Warn("audit export failed", "orgId", user.OrganizationID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit events", reqID)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}); err != nil {
		slog.Warn("audit export header failed", "err", err)
		return
	}
	for _, evt := range events {
		row := []string{evt.ID, evt.UserID, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.IP, evt.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(row); err != nil {
			slog.Warn("audit export row failed", "err", err)
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("audit export flush failed", "err", err)
	}
}
