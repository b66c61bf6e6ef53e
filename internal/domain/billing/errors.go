package billing

import "errors"

var (
	ErrBillingDisabled  = errors.New("billing is not configured")
	ErrPlanNotFound     = errors.New("plan not found")
	ErrPlanNotPurchased = errors.New("plan cannot be purchased")
	ErrCustomerNotFound = errors.New("billing customer not found")
	ErrNoSubscription   = errors.New("no active subscription")
	ErrInvalidWebhook   = errors.New("invalid webhook")
)
