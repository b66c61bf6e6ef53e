package teams

import "time"

const (
	StatusActive   = "active"
	StatusInvited  = "invited"
	StatusInactive = "inactive"
)

// Member is one row of an organization roster. Invitations are members in
// the invited state.
type Member struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	TeamID         string    `json:"teamId,omitempty"`
	UserID         string    `json:"userId,omitempty"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	InvitedBy      string    `json:"invitedBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Team struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Members        []Member  `json:"members,omitempty"`
}

// Inviter describes who sends an invitation and from which organization.
type Inviter struct {
	UserID           string
	Name             string
	Email            string
	OrganizationID   string
	OrganizationName string
}

type InviteInput struct {
	Email  string
	Name   string
	Role   string
	TeamID string
}
