package teams

import "context"

type StoreAPI interface {
	ListMembers(ctx context.Context, orgID string) ([]Member, error)
	GetMember(ctx context.Context, orgID, id string) (*Member, error)
	FindMemberByEmail(ctx context.Context, orgID, email string) (*Member, error)
	CreateInvitation(ctx context.Context, member Member, tokenHash string) (Member, error)
	RefreshInvitation(ctx context.Context, orgID, id, role, invitedBy, tokenHash string) (Member, error)
	DeleteInvitation(ctx context.Context, orgID, id string) error
	SetMemberStatus(ctx context.Context, orgID, id, status string) error
	AcceptInvitation(ctx context.Context, tokenHash, userID, email string) (Member, error)

	ListTeams(ctx context.Context, orgID string) ([]Team, error)
	GetTeam(ctx context.Context, orgID, id string) (*Team, error)
	ListTeamMembers(ctx context.Context, orgID, teamID string) ([]Member, error)
	CreateTeam(ctx context.Context, team Team) (Team, error)
	UpdateTeam(ctx context.Context, orgID, id, name, slug string) (Team, error)
	DeleteTeam(ctx context.Context, orgID, id string) error
	AssignMember(ctx context.Context, orgID, memberID, teamID string) error
}

var _ StoreAPI = (*Store)(nil)
