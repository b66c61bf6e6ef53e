package employees

import "errors"

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrNameRequired     = errors.New("employee name is required")
	ErrInvalidStatus    = errors.New("invalid employee status")
	ErrInvalidEmail     = errors.New("invalid employee email")
	ErrEmployeeInUse    = errors.New("employee has reviews and cannot be deleted")
)
