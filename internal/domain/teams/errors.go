package teams

import "errors"

var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidRole        = errors.New("invalid role")
	ErrAlreadyMember      = errors.New("user is already a team member")
	ErrAlreadyInvited     = errors.New("user has already been invited")
	ErrMemberNotFound     = errors.New("team member not found")
	ErrInvitationNotFound = errors.New("invitation not found or already used")
	ErrInvitationMismatch = errors.New("invitation was sent to a different email")
	ErrNotInvited         = errors.New("member has no pending invitation")
	ErrCannotRemoveSelf   = errors.New("you cannot remove yourself")
	ErrForbidden          = errors.New("only admins can manage members")
	ErrInvalidTeam        = errors.New("team name is required")
	ErrTeamExists         = errors.New("a team with this name already exists")
	ErrTeamNotFound       = errors.New("team not found")
)
