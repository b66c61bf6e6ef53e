package profiles

import "errors"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoOrganization  = errors.New("profile has no organization")
)
