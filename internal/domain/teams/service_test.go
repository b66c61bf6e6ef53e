package teams

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraze/internal/domain/auth"
	"appraze/internal/domain/notifications"
)

type memoryStore struct {
	members map[string]*Member
	tokens  map[string]string
	teams   map[string]*Team
	moved   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		members: map[string]*Member{},
		tokens:  map[string]string{},
		teams:   map[string]*Team{},
		moved:   map[string]string{},
	}
}

func (m *memoryStore) ListMembers(_ context.Context, orgID string) ([]Member, error) {
	out := []Member{}
	for _, member := range m.members {
		if member.OrganizationID == orgID {
			out = append(out, *member)
		}
	}
	return out, nil
}

func (m *memoryStore) GetMember(_ context.Context, orgID, id string) (*Member, error) {
	member, ok := m.members[id]
	if !ok || member.OrganizationID != orgID {
		return nil, nil
	}
	out := *member
	return &out, nil
}

func (m *memoryStore) FindMemberByEmail(_ context.Context, orgID, email string) (*Member, error) {
	for _, member := range m.members {
		if member.OrganizationID == orgID && member.Email == email {
			out := *member
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CreateInvitation(_ context.Context, member Member, tokenHash string) (Member, error) {
	member.ID = fmt.Sprintf("mem-%d", len(m.members)+1)
	member.Status = StatusInvited
	m.members[member.ID] = &member
	m.tokens[tokenHash] = member.ID
	return member, nil
}

func (m *memoryStore) RefreshInvitation(_ context.Context, orgID, id, role, invitedBy, tokenHash string) (Member, error) {
	member, ok := m.members[id]
	if !ok || member.OrganizationID != orgID {
		return Member{}, ErrMemberNotFound
	}
	for hash, memberID := range m.tokens {
		if memberID == id {
			delete(m.tokens, hash)
		}
	}
	member.Status, member.Role, member.InvitedBy = StatusInvited, role, invitedBy
	m.tokens[tokenHash] = id
	return *member, nil
}

func (m *memoryStore) DeleteInvitation(_ context.Context, orgID, id string) error {
	member, ok := m.members[id]
	if !ok || member.OrganizationID != orgID || member.Status != StatusInvited {
		return ErrInvitationNotFound
	}
	delete(m.members, id)
	return nil
}

func (m *memoryStore) SetMemberStatus(_ context.Context, orgID, id, status string) error {
	member, ok := m.members[id]
	if !ok || member.OrganizationID != orgID {
		return ErrMemberNotFound
	}
	member.Status = status
	return nil
}

func (m *memoryStore) AcceptInvitation(_ context.Context, tokenHash, userID, email string) (Member, error) {
	id, ok := m.tokens[tokenHash]
	if !ok || m.members[id].Status != StatusInvited {
		return Member{}, ErrInvitationNotFound
	}
	member := m.members[id]
	if !strings.EqualFold(member.Email, email) {
		return Member{}, ErrInvitationMismatch
	}
	delete(m.tokens, tokenHash)
	member.Status, member.UserID = StatusActive, userID
	m.moved[userID] = member.OrganizationID
	return *member, nil
}

func (m *memoryStore) ListTeams(_ context.Context, orgID string) ([]Team, error) {
	out := []Team{}
	for _, team := range m.teams {
		if team.OrganizationID == orgID {
			out = append(out, *team)
		}
	}
	return out, nil
}

func (m *memoryStore) GetTeam(_ context.Context, orgID, id string) (*Team, error) {
	team, ok := m.teams[id]
	if !ok || team.OrganizationID != orgID {
		return nil, nil
	}
	out := *team
	return &out, nil
}

func (m *memoryStore) ListTeamMembers(_ context.Context, orgID, teamID string) ([]Member, error) {
	out := []Member{}
	for _, member := range m.members {
		if member.OrganizationID == orgID && member.TeamID == teamID {
			out = append(out, *member)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateTeam(_ context.Context, team Team) (Team, error) {
	for _, existing := range m.teams {
		if existing.OrganizationID == team.OrganizationID && existing.Slug == team.Slug {
			return Team{}, ErrTeamExists
		}
	}
	team.ID = fmt.Sprintf("team-%d", len(m.teams)+1)
	m.teams[team.ID] = &team
	return team, nil
}

func (m *memoryStore) UpdateTeam(_ context.Context, orgID, id, name, slug string) (Team, error) {
	team, ok := m.teams[id]
	if !ok || team.OrganizationID != orgID {
		return Team{}, ErrTeamNotFound
	}
	team.Name, team.Slug = name, slug
	return *team, nil
}

func (m *memoryStore) DeleteTeam(_ context.Context, orgID, id string) error {
	if _, ok := m.teams[id]; !ok {
		return ErrTeamNotFound
	}
	for _, member := range m.members {
		if member.OrganizationID == orgID && member.TeamID == id {
			member.TeamID = ""
		}
	}
	delete(m.teams, id)
	return nil
}

func (m *memoryStore) AssignMember(_ context.Context, orgID, memberID, teamID string) error {
	member, ok := m.members[memberID]
	if !ok || member.OrganizationID != orgID {
		return ErrMemberNotFound
	}
	member.TeamID = teamID
	return nil
}

type recordingSender struct {
	invites []notifications.Invite
	err     error
}

func (r *recordingSender) TeamInvite(_ context.Context, invite notifications.Invite) error {
	r.invites = append(r.invites, invite)
	return r.err
}

var admin = Inviter{UserID: "user-1", Name: "Ada", Email: "ada@example.com", OrganizationID: "org-1", OrganizationName: "Acme"}

func TestInviteMemberRules(t *testing.T) {
	store := newMemoryStore()
	sender := &recordingSender{}
	svc := NewService(store, sender)
	ctx := context.Background()

	member, err := svc.InviteMember(ctx, admin, InviteInput{Email: " New@Example.com ", Name: "New Person"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", member.Email)
	assert.Equal(t, auth.RoleMember, member.Role)
	assert.Equal(t, StatusInvited, member.Status)
	require.Len(t, sender.invites, 1)
	assert.Equal(t, "Acme", sender.invites[0].OrganizationName)
	assert.NotEmpty(t, sender.invites[0].Token)

	_, err = svc.InviteMember(ctx, admin, InviteInput{Email: "new@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyInvited)

	store.members[member.ID].Status = StatusActive
	_, err = svc.InviteMember(ctx, admin, InviteInput{Email: "new@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyMember)

	store.members[member.ID].Status = StatusInactive
	again, err := svc.InviteMember(ctx, admin, InviteInput{Email: "new@example.com", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, member.ID, again.ID)
	assert.Equal(t, StatusInvited, again.Status)
	assert.Equal(t, auth.RoleAdmin, again.Role)

	_, err = svc.InviteMember(ctx, admin, InviteInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.InviteMember(ctx, admin, InviteInput{Email: "x@example.com", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestInviteEmailFailureIsIgnored(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := NewService(newMemoryStore(), sender)

	member, err := svc.InviteMember(context.Background(), admin, InviteInput{Email: "a@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, member.ID)
}

func TestAcceptInvitation(t *testing.T) {
	store := newMemoryStore()
	sender := &recordingSender{}
	svc := NewService(store, sender)
	ctx := context.Background()

	_, err := svc.InviteMember(ctx, admin, InviteInput{Email: "b@example.com", Role: "admin"})
	require.NoError(t, err)
	token := sender.invites[0].Token

	_, err = svc.AcceptInvitation(ctx, token, "user-2", "someone@example.com")
	assert.ErrorIs(t, err, ErrInvitationMismatch)

	member, err := svc.AcceptInvitation(ctx, token, "user-2", "B@example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, member.Status)
	assert.Equal(t, "user-2", member.UserID)
	assert.Equal(t, "org-1", store.moved["user-2"])

	_, err = svc.AcceptInvitation(ctx, token, "user-2", "b@example.com")
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestResendRotatesToken(t *testing.T) {
	store := newMemoryStore()
	sender := &recordingSender{}
	svc := NewService(store, sender)
	ctx := context.Background()

	member, err := svc.InviteMember(ctx, admin, InviteInput{Email: "c@example.com"})
	require.NoError(t, err)
	_, err = svc.ResendInvitation(ctx, admin, member.ID)
	require.NoError(t, err)
	require.Len(t, sender.invites, 2)
	assert.NotEqual(t, sender.invites[0].Token, sender.invites[1].Token)

	_, err = svc.AcceptInvitation(ctx, sender.invites[0].Token, "user-3", "c@example.com")
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = svc.AcceptInvitation(ctx, sender.invites[1].Token, "user-3", "c@example.com")
	require.NoError(t, err)
	_, err = svc.ResendInvitation(ctx, admin, member.ID)
	assert.ErrorIs(t, err, ErrNotInvited)
}

func TestRemoveMember(t *testing.T) {
	store := newMemoryStore()
	store.members["mem-self"] = &Member{ID: "mem-self", OrganizationID: "org-1", UserID: "user-1", Status: StatusActive}
	store.members["mem-other"] = &Member{ID: "mem-other", OrganizationID: "org-1", UserID: "user-9", Status: StatusActive}
	svc := NewService(store, nil)
	ctx := context.Background()

	adminCtx := auth.UserContext{UserID: "user-1", OrganizationID: "org-1", Role: auth.RoleAdmin}
	memberCtx := auth.UserContext{UserID: "user-9", OrganizationID: "org-1", Role: auth.RoleMember}

	assert.ErrorIs(t, svc.RemoveMember(ctx, memberCtx, "mem-self"), ErrForbidden)
	assert.ErrorIs(t, svc.RemoveMember(ctx, adminCtx, "mem-self"), ErrCannotRemoveSelf)
	assert.ErrorIs(t, svc.RemoveMember(ctx, adminCtx, "missing"), ErrMemberNotFound)
	require.NoError(t, svc.RemoveMember(ctx, adminCtx, "mem-other"))
	assert.Equal(t, StatusInactive, store.members["mem-other"].Status)
}

func TestCancelInvitation(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, &recordingSender{})
	ctx := context.Background()

	member, err := svc.InviteMember(ctx, admin, InviteInput{Email: "d@example.com"})
	require.NoError(t, err)
	require.NoError(t, svc.CancelInvitation(ctx, "org-1", member.ID))
	assert.ErrorIs(t, svc.CancelInvitation(ctx, "org-1", member.ID), ErrInvitationNotFound)
}

func TestTeamsLifecycle(t *testing.T) {
	store := newMemoryStore()
	store.members["mem-1"] = &Member{ID: "mem-1", OrganizationID: "org-1", Status: StatusActive}
	svc := NewService(store, nil)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, "org-1", "user-1", "  Platform Engineering ")
	require.NoError(t, err)
	assert.Equal(t, "platform-engineering", team.Slug)

	_, err = svc.CreateTeam(ctx, "org-1", "user-1", "platform   engineering")
	assert.ErrorIs(t, err, ErrTeamExists)
	_, err = svc.CreateTeam(ctx, "org-1", "user-1", "  ")
	assert.ErrorIs(t, err, ErrInvalidTeam)

	require.NoError(t, svc.AssignMember(ctx, "org-1", "mem-1", team.ID))
	assert.ErrorIs(t, svc.AssignMember(ctx, "org-1", "mem-1", "team-404"), ErrTeamNotFound)

	got, err := svc.GetTeam(ctx, "org-1", team.ID)
	require.NoError(t, err)
	assert.Len(t, got.Members, 1)

	renamed, err := svc.UpdateTeam(ctx, "org-1", team.ID, "Core Platform")
	require.NoError(t, err)
	assert.Equal(t, "core-platform", renamed.Slug)

	require.NoError(t, svc.DeleteTeam(ctx, "org-1", team.ID))
	assert.Empty(t, store.members["mem-1"].TeamID)
	_, err = svc.GetTeam(ctx, "org-1", team.ID)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Sales":             "sales",
		"Customer Success":  "customer-success",
		"R&D / Labs":        "rd-labs",
		"  --Edge--Case-- ": "edge-case",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}
