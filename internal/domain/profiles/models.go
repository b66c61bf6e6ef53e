package profiles

import "time"

type Profile struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName"`
	AvatarURL             string     `json:"avatarUrl"`
	CompanyName           string     `json:"companyName"`
	OrganizationID        string     `json:"organizationId"`
	OrganizationName      string     `json:"organizationName"`
	Role                  string     `json:"role"`
	StripeCustomerID      string     `json:"stripeCustomerId,omitempty"`
	SubscriptionStatus    string     `json:"subscriptionStatus"`
	SubscriptionPlan      string     `json:"subscriptionPlan"`
	SubscriptionPeriodEnd *time.Time `json:"subscriptionPeriodEnd,omitempty"`
	LastPaymentStatus     string     `json:"lastPaymentStatus"`
	LastPaymentDate       *time.Time `json:"lastPaymentDate,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// Update carries the user-editable fields; nil leaves a field unchanged.
type Update struct {
	FullName    *string `json:"fullName"`
	AvatarURL   *string `json:"avatarUrl"`
	CompanyName *string `json:"companyName"`
}
