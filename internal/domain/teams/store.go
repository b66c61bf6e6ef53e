package teams

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appraze/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const memberColumns = `id::text, organization_id::text, COALESCE(team_id::text, ''), COALESCE(user_id::text, ''),
       email, name, role, status, COALESCE(invited_by::text, ''), created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.OrganizationID, &m.TeamID, &m.UserID, &m.Email, &m.Name, &m.Role, &m.Status, &m.InvitedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *Store) queryMembers(ctx context.Context, query string, args ...any) ([]Member, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) queryMember(ctx context.Context, query string, args ...any) (*Member, error) {
	m, err := scanMember(s.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	return s.queryMembers(ctx, "SELECT "+memberColumns+" FROM team_members WHERE organization_id = $1 ORDER BY created_at", orgID)
}

func (s *Store) GetMember(ctx context.Context, orgID, id string) (*Member, error) {
	return s.queryMember(ctx, "SELECT "+memberColumns+" FROM team_members WHERE organization_id = $1 AND id = $2", orgID, id)
}

func (s *Store) FindMemberByEmail(ctx context.Context, orgID, email string) (*Member, error) {
	return s.queryMember(ctx, "SELECT "+memberColumns+" FROM team_members WHERE organization_id = $1 AND email = $2", orgID, email)
}

func (s *Store) CreateInvitation(ctx context.Context, member Member, tokenHash string) (Member, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO team_members (organization_id, team_id, email, name, role, status, invite_token, invited_by)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    RETURNING `+memberColumns,
		member.OrganizationID, nullable(member.TeamID), member.Email, member.Name, member.Role, StatusInvited, tokenHash, nullable(member.InvitedBy))
	created, err := scanMember(row)
	if db.IsUniqueViolation(err) {
		return Member{}, ErrAlreadyInvited
	}
	return created, err
}

func (s *Store) RefreshInvitation(ctx context.Context, orgID, id, role, invitedBy, tokenHash string) (Member, error) {
	row := s.DB.QueryRow(ctx, `
    UPDATE team_members
    SET status = $3, role = $4, invited_by = $5, invite_token = $6, updated_at = now()
    WHERE organization_id = $1 AND id = $2
    RETURNING `+memberColumns,
		orgID, id, StatusInvited, role, nullable(invitedBy), tokenHash)
	m, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	return m, err
}

func (s *Store) DeleteInvitation(ctx context.Context, orgID, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM team_members WHERE organization_id = $1 AND id = $2 AND status = $3", orgID, id, StatusInvited)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

func (s *Store) SetMemberStatus(ctx context.Context, orgID, id, status string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE team_members SET status = $3, invite_token = NULL, updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// AcceptInvitation consumes the token, activates the roster row and moves the
// accepting user's profile into the inviting organization with the invited role.
func (s *Store) AcceptInvitation(ctx context.Context, tokenHash, userID, email string) (Member, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Member{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invited, err := scanMember(tx.QueryRow(ctx, "SELECT "+memberColumns+" FROM team_members WHERE invite_token = $1 AND status = $2 FOR UPDATE", tokenHash, StatusInvited))
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrInvitationNotFound
	}
	if err != nil {
		return Member{}, err
	}
	if !strings.EqualFold(invited.Email, email) {
		return Member{}, ErrInvitationMismatch
	}

	if _, err := tx.Exec(ctx, `
    UPDATE team_members SET status = $3, invite_token = NULL, updated_at = now()
    WHERE user_id = $1 AND organization_id <> $2 AND status = 'active'
  `, userID, invited.OrganizationID, StatusInactive); err != nil {
		return Member{}, err
	}

	accepted, err := scanMember(tx.QueryRow(ctx, `
    UPDATE team_members
    SET status = $2, user_id = $3, invite_token = NULL, updated_at = now()
    WHERE id = $1
    RETURNING `+memberColumns, invited.ID, StatusActive, userID))
	if err != nil {
		return Member{}, err
	}

	if _, err := tx.Exec(ctx, `
    UPDATE profiles SET organization_id = $2, role = $3, updated_at = now()
    WHERE id = $1
  `, userID, accepted.OrganizationID, accepted.Role); err != nil {
		return Member{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Member{}, err
	}
	return accepted, nil
}

const teamColumns = "id::text, organization_id::text, name, slug, COALESCE(created_by::text, ''), created_at, updated_at"

func scanTeam(row scanner) (Team, error) {
	var t Team
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Slug, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) ListTeams(ctx context.Context, orgID string) ([]Team, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+teamColumns+" FROM teams WHERE organization_id = $1 ORDER BY name", orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTeam(ctx context.Context, orgID, id string) (*Team, error) {
	t, err := scanTeam(s.DB.QueryRow(ctx, "SELECT "+teamColumns+" FROM teams WHERE organization_id = $1 AND id = $2", orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTeamMembers(ctx context.Context, orgID, teamID string) ([]Member, error) {
	return s.queryMembers(ctx, "SELECT "+memberColumns+" FROM team_members WHERE organization_id = $1 AND team_id = $2 ORDER BY name", orgID, teamID)
}

func (s *Store) CreateTeam(ctx context.Context, team Team) (Team, error) {
	created, err := scanTeam(s.DB.QueryRow(ctx, `
    INSERT INTO teams (organization_id, name, slug, created_by)
    VALUES ($1, $2, $3, $4)
    RETURNING `+teamColumns, team.OrganizationID, team.Name, team.Slug, nullable(team.CreatedBy)))
	if db.IsUniqueViolation(err) {
		return Team{}, ErrTeamExists
	}
	return created, err
}

func (s *Store) UpdateTeam(ctx context.Context, orgID, id, name, slug string) (Team, error) {
	updated, err := scanTeam(s.DB.QueryRow(ctx, `
    UPDATE teams SET name = $3, slug = $4, updated_at = now()
    WHERE organization_id = $1 AND id = $2
    RETURNING `+teamColumns, orgID, id, name, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, ErrTeamNotFound
	}
	if db.IsUniqueViolation(err) {
		return Team{}, ErrTeamExists
	}
	return updated, err
}

// DeleteTeam unassigns the team's members before removing it.
func (s *Store) DeleteTeam(ctx context.Context, orgID, id string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "UPDATE team_members SET team_id = NULL, updated_at = now() WHERE organization_id = $1 AND team_id = $2", orgID, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, "DELETE FROM teams WHERE organization_id = $1 AND id = $2", orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTeamNotFound
	}
	return tx.Commit(ctx)
}

func (s *Store) AssignMember(ctx context.Context, orgID, memberID, teamID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE team_members SET team_id = $3, updated_at = now()
    WHERE organization_id = $1 AND id = $2
  `, orgID, memberID, nullable(teamID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
