package shared

import (
	"context"
	"net/http"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/platform/requestctx"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
)

// Caller returns the authenticated user or writes a 401.
func Caller(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, false
	}
	return user, true
}

// OrgCaller is Caller for organization-scoped routes; a user without an
// organization gets a 403.
func OrgCaller(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := Caller(w, r)
	if !ok {
		return user, false
	}
	if user.OrganizationID == "" {
		api.Fail(w, http.StatusForbidden, "no_organization", "profile has no organization", middleware.GetRequestID(r.Context()))
		return user, false
	}
	return user, true
}

// AuditEntry fills the request metadata of an audit entry.
func AuditEntry(r *http.Request, user auth.UserContext, action, entityType, entityID string, details any) audit.Entry {
	return audit.Entry{
		OrganizationID: user.OrganizationID,
		UserID:         user.UserID,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		RequestID:      middleware.GetRequestID(r.Context()),
		IP:             requestctx.ClientIP(r),
		Details:        details,
	}
}

// Auditor records audit entries without failing the request.
type Auditor interface {
	Log(ctx context.Context, e audit.Entry)
}

func LogAudit(a Auditor, r *http.Request, e audit.Entry) {
	if a == nil {
		return
	}
	a.Log(r.Context(), e)
}
