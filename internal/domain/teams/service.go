package teams

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"appraze/internal/domain/auth"
	"appraze/internal/domain/notifications"
)

type InviteSender interface {
	TeamInvite(ctx context.Context, invite notifications.Invite) error
}

type Service struct {
	Store  StoreAPI
	Mailer InviteSender
}

func NewService(store StoreAPI, mailer InviteSender) *Service {
	return &Service{Store: store, Mailer: mailer}
}

func (s *Service) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	return s.Store.ListMembers(ctx, orgID)
}

// InviteMember adds an invited roster row, or re-invites an inactive one, and
// emails the invitation link. The email is best effort.
func (s *Service) InviteMember(ctx context.Context, from Inviter, in InviteInput) (Member, error) {
	email := auth.NormalizeEmail(in.Email)
	if err := auth.ValidateEmail(email); err != nil {
		return Member{}, ErrInvalidEmail
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = auth.RoleMember
	}
	if !auth.ValidRole(role) {
		return Member{}, ErrInvalidRole
	}
	if in.TeamID != "" {
		if _, err := s.GetTeam(ctx, from.OrganizationID, in.TeamID); err != nil {
			return Member{}, err
		}
	}

	existing, err := s.Store.FindMemberByEmail(ctx, from.OrganizationID, email)
	if err != nil {
		return Member{}, err
	}
	token := uuid.NewString()

	var member Member
	switch {
	case existing == nil:
		member, err = s.Store.CreateInvitation(ctx, Member{
			OrganizationID: from.OrganizationID,
			TeamID:         in.TeamID,
			Email:          email,
			Name:           strings.TrimSpace(in.Name),
			Role:           role,
			InvitedBy:      from.UserID,
		}, auth.HashToken(token))
	case existing.Status == StatusActive:
		return Member{}, ErrAlreadyMember
	case existing.Status == StatusInvited:
		return Member{}, ErrAlreadyInvited
	default:
		member, err = s.Store.RefreshInvitation(ctx, from.OrganizationID, existing.ID, role, from.UserID, auth.HashToken(token))
	}
	if err != nil {
		return Member{}, err
	}

	s.sendInvite(ctx, from, member, token)
	return member, nil
}

// ResendInvitation rotates the token of a pending invitation and sends it again.
func (s *Service) ResendInvitation(ctx context.Context, from Inviter, memberID string) (Member, error) {
	member, err := s.member(ctx, from.OrganizationID, memberID)
	if err != nil {
		return Member{}, err
	}
	if member.Status != StatusInvited {
		return Member{}, ErrNotInvited
	}
	token := uuid.NewString()
	refreshed, err := s.Store.RefreshInvitation(ctx, from.OrganizationID, member.ID, member.Role, from.UserID, auth.HashToken(token))
	if err != nil {
		return Member{}, err
	}
	s.sendInvite(ctx, from, refreshed, token)
	return refreshed, nil
}

func (s *Service) CancelInvitation(ctx context.Context, orgID, memberID string) error {
	return s.Store.DeleteInvitation(ctx, orgID, memberID)
}

// RemoveMember deactivates a roster row. Only admins may do it, and never on
// their own row.
func (s *Service) RemoveMember(ctx context.Context, actor auth.UserContext, memberID string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	member, err := s.member(ctx, actor.OrganizationID, memberID)
	if err != nil {
		return err
	}
	if member.UserID != "" && member.UserID == actor.UserID {
		return ErrCannotRemoveSelf
	}
	return s.Store.SetMemberStatus(ctx, actor.OrganizationID, member.ID, StatusInactive)
}

// AcceptInvitation binds the invitation to the signed-in user. The caller is
// expected to issue a new access token for the returned organization and role.
func (s *Service) AcceptInvitation(ctx context.Context, token, userID, email string) (Member, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Member{}, ErrInvitationNotFound
	}
	return s.Store.AcceptInvitation(ctx, auth.HashToken(token), userID, auth.NormalizeEmail(email))
}

func (s *Service) sendInvite(ctx context.Context, from Inviter, member Member, token string) {
	if s.Mailer == nil {
		return
	}
	err := s.Mailer.TeamInvite(ctx, notifications.Invite{
		Email:            member.Email,
		InviterName:      from.Name,
		InviterEmail:     from.Email,
		OrganizationName: from.OrganizationName,
		Role:             member.Role,
		Token:            token,
	})
	if err != nil {
		slog.Warn("team invite email failed", "member", member.ID, "err", err)
	}
}

func (s *Service) member(ctx context.Context, orgID, id string) (*Member, error) {
	member, err := s.Store.GetMember(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

func (s *Service) ListTeams(ctx context.Context, orgID string) ([]Team, error) {
	return s.Store.ListTeams(ctx, orgID)
}

func (s *Service) GetTeam(ctx context.Context, orgID, id string) (*Team, error) {
	team, err := s.Store.GetTeam(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}
	members, err := s.Store.ListTeamMembers(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	team.Members = members
	return team, nil
}

func (s *Service) CreateTeam(ctx context.Context, orgID, createdBy, name string) (Team, error) {
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if slug == "" {
		return Team{}, ErrInvalidTeam
	}
	return s.Store.CreateTeam(ctx, Team{OrganizationID: orgID, Name: name, Slug: slug, CreatedBy: createdBy})
}

func (s *Service) UpdateTeam(ctx context.Context, orgID, id, name string) (Team, error) {
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if slug == "" {
		return Team{}, ErrInvalidTeam
	}
	return s.Store.UpdateTeam(ctx, orgID, id, name, slug)
}

func (s *Service) DeleteTeam(ctx context.Context, orgID, id string) error {
	return s.Store.DeleteTeam(ctx, orgID, id)
}

// AssignMember moves a roster member into a team; an empty team id unassigns.
func (s *Service) AssignMember(ctx context.Context, orgID, memberID, teamID string) error {
	if teamID != "" {
		if team, err := s.Store.GetTeam(ctx, orgID, teamID); err != nil {
			return err
		} else if team == nil {
			return ErrTeamNotFound
		}
	}
	return s.Store.AssignMember(ctx, orgID, memberID, teamID)
}

var slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)
var slugDashes = regexp.MustCompile(`-{2,}`)

// Slugify lowercases the name and turns whitespace into dashes.
func Slugify(name string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugDashes.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
