package teamhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraze/internal/domain/audit"
	"appraze/internal/domain/auth"
	"appraze/internal/domain/profiles"
	"appraze/internal/domain/teams"
	"appraze/internal/transport/http/api"
	"appraze/internal/transport/http/middleware"
	"appraze/internal/transport/http/shared"
)

type Teams interface {
	ListMembers(ctx context.Context, orgID string) ([]teams.Member, error)
	InviteMember(ctx context.Context, from teams.Inviter, in teams.InviteInput) (teams.Member, error)
	ResendInvitation(ctx context.Context, from teams.Inviter, memberID string) (teams.Member, error)
	CancelInvitation(ctx context.Context, orgID, memberID string) error
	RemoveMember(ctx context.Context, actor auth.UserContext, memberID string) error
	AcceptInvitation(ctx context.Context, token, userID, email string) (teams.Member, error)
	ListTeams(ctx context.Context, orgID string) ([]teams.Team, error)
	GetTeam(ctx context.Context, orgID, id string) (*teams.Team, error)
	CreateTeam(ctx context.Context, orgID, createdBy, name string) (teams.Team, error)
	UpdateTeam(ctx context.Context, orgID, id, name string) (teams.Team, error)
	DeleteTeam(ctx context.Context, orgID, id string) error
	AssignMember(ctx context.Context, orgID, memberID, teamID string) error
}

type Profiles interface {
	Get(ctx context.Context, userID string) (*profiles.Profile, error)
}

// Sessions re-signs the caller's token once an accepted invitation moved
// them to another organization.
type Sessions interface {
	Reissue(ctx context.Context, user auth.UserContext) (*auth.Session, error)
}

type Handler struct {
	Teams    Teams
	Profiles Profiles
	Sessions Sessions
	Audit    shared.Auditor
}

func NewHandler(svc Teams, profiles Profiles, sessions Sessions, auditor shared.Auditor) *Handler {
	return &Handler{Teams: svc, Profiles: profiles, Sessions: sessions, Audit: auditor}
}

type inviteRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	TeamID string `json:"teamId"`
}

type acceptRequest struct {
	Token string `json:"token"`
}

type assignRequest struct {
	TeamID string `json:"teamId"`
}

type teamRequest struct {
	Name string `json:"name"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/team", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTeamRead)).Get("/", h.handleListMembers)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Post("/invite", h.handleInvite)
		r.Post("/accept", h.handleAccept)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Post("/invitations/{memberID}/resend", h.handleResend)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Delete("/invitations/{memberID}", h.handleCancel)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Delete("/members/{memberID}", h.handleRemove)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Put("/members/{memberID}/team", h.handleAssign)
	})
	r.Route("/teams", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTeamRead)).Get("/", h.handleListTeams)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Post("/", h.handleCreateTeam)
		r.With(middleware.RequirePermission(auth.PermTeamRead)).Get("/{teamID}", h.handleGetTeam)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Put("/{teamID}", h.handleUpdateTeam)
		r.With(middleware.RequirePermission(auth.PermTeamManage)).Delete("/{teamID}", h.handleDeleteTeam)
	})
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	members, err := h.Teams.ListMembers(r.Context(), user.OrganizationID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	if members == nil {
		members = []teams.Member{}
	}
	api.Success(w, members, reqID)
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload inviteRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	v.Email("email", payload.Email)
	v.MaxLen("name", payload.Name, 200)
	if v.Reject(w, reqID) {
		return
	}

	from, err := h.inviter(r.Context(), user)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	member, err := h.Teams.InviteMember(r.Context(), from, teams.InviteInput{
		Email:  payload.Email,
		Name:   payload.Name,
		Role:   payload.Role,
		TeamID: payload.TeamID,
	})
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionInvite, "team_member", member.ID, map[string]string{
		"email": member.Email,
		"role":  member.Role,
	}))
	api.Created(w, member, reqID)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	from, err := h.inviter(r.Context(), user)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	member, err := h.Teams.ResendInvitation(r.Context(), from, chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, member, reqID)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "memberID")
	if err := h.Teams.CancelInvitation(r.Context(), user.OrganizationID, id); err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionDelete, "invitation", id, nil))
	api.Success(w, map[string]string{"id": id, "status": "canceled"}, reqID)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "memberID")
	if err := h.Teams.RemoveMember(r.Context(), user, id); err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionRemove, "team_member", id, nil))
	api.Success(w, map[string]string{"id": id, "status": teams.StatusInactive}, reqID)
}

// handleAccept binds the invitation to the caller and returns a fresh session
// for the organization they joined.
func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.Caller(w, r)
	if !ok {
		return
	}
	var payload acceptRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	profile, err := h.Profiles.Get(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	member, err := h.Teams.AcceptInvitation(r.Context(), payload.Token, user.UserID, profile.Email)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	session, err := h.Sessions.Reissue(r.Context(), user)
	if err != nil {
		slog.Warn("reissue session after invite failed", "userId", user.UserID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "session_failed", "invitation accepted; please sign in again", reqID)
		return
	}
	joined := auth.UserContext{UserID: user.UserID, OrganizationID: member.OrganizationID, Role: member.Role}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, joined, audit.ActionAccept, "team_member", member.ID, nil))
	api.Success(w, map[string]any{"member": member, "session": session}, reqID)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload assignRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	id := chi.URLParam(r, "memberID")
	if err := h.Teams.AssignMember(r.Context(), user.OrganizationID, id, payload.TeamID); err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionUpdate, "team_member", id, map[string]string{"teamId": payload.TeamID}))
	api.Success(w, map[string]string{"id": id, "teamId": payload.TeamID}, reqID)
}

func (h *Handler) handleListTeams(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	list, err := h.Teams.ListTeams(r.Context(), user.OrganizationID)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	if list == nil {
		list = []teams.Team{}
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	team, err := h.Teams.GetTeam(r.Context(), user.OrganizationID, chi.URLParam(r, "teamID"))
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	api.Success(w, team, reqID)
}

func (h *Handler) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload teamRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	team, err := h.Teams.CreateTeam(r.Context(), user.OrganizationID, user.UserID, payload.Name)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionCreate, "team", team.ID, map[string]string{"name": team.Name}))
	api.Created(w, team, reqID)
}

func (h *Handler) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	var payload teamRequest
	if !shared.DecodeJSON(w, r, &payload, reqID) {
		return
	}
	team, err := h.Teams.UpdateTeam(r.Context(), user.OrganizationID, chi.URLParam(r, "teamID"), payload.Name)
	if err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionUpdate, "team", team.ID, nil))
	api.Success(w, team, reqID)
}

func (h *Handler) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := shared.OrgCaller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "teamID")
	if err := h.Teams.DeleteTeam(r.Context(), user.OrganizationID, id); err != nil {
		writeError(w, err, reqID)
		return
	}
	shared.LogAudit(h.Audit, r, shared.AuditEntry(r, user, audit.ActionDelete, "team", id, nil))
	api.Success(w, map[string]string{"id": id, "status": "deleted"}, reqID)
}

func (h *Handler) inviter(ctx context.Context, user auth.UserContext) (teams.Inviter, error) {
	profile, err := h.Profiles.Get(ctx, user.UserID)
	if err != nil {
		return teams.Inviter{}, err
	}
	name := profile.FullName
	if name == "" {
		name = profile.Email
	}
	return teams.Inviter{
		UserID:           user.UserID,
		Name:             name,
		Email:            profile.Email,
		OrganizationID:   user.OrganizationID,
		OrganizationName: profile.OrganizationName,
	}, nil
}

func writeError(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, teams.ErrInvalidEmail),
		errors.Is(err, teams.ErrInvalidRole),
		errors.Is(err, teams.ErrInvalidTeam),
		errors.Is(err, teams.ErrNotInvited):
		api.Fail(w, http.StatusBadRequest, "invalid_request", err.Error(), reqID)
	case errors.Is(err, teams.ErrAlreadyMember), errors.Is(err, teams.ErrAlreadyInvited), errors.Is(err, teams.ErrTeamExists):
		api.Fail(w, http.StatusConflict, "conflict", err.Error(), reqID)
	case errors.Is(err, teams.ErrForbidden), errors.Is(err, teams.ErrCannotRemoveSelf), errors.Is(err, teams.ErrInvitationMismatch):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), reqID)
	case errors.Is(err, teams.ErrMemberNotFound),
		errors.Is(err, teams.ErrInvitationNotFound),
		errors.Is(err, teams.ErrTeamNotFound),
		errors.Is(err, profiles.ErrProfileNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), reqID)
	default:
		slog.Warn("team request failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "team_failed", "team request failed", reqID)
	}
}
