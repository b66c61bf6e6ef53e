package employees

import "time"

type Employee struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId,omitempty"`
	Name           string    `json:"name"`
	Position       string    `json:"position"`
	Department     string    `json:"department"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Status         string    `json:"status"`
	ImageURL       string    `json:"imageUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Filter struct {
	Status     string
	Department string
	Search     string
}

type Update struct {
	Name       *string `json:"name"`
	Position   *string `json:"position"`
	Department *string `json:"department"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Status     *string `json:"status"`
	ImageURL   *string `json:"imageUrl"`
}
