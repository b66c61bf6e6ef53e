package employees

import (
	"context"
	"net/mail"
	"strings"
)

type Service struct {
	Store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{Store: store}
}

func (s *Service) List(ctx context.Context, orgID string, filter Filter) ([]Employee, error) {
	return s.Store.List(ctx, orgID, filter)
}

func (s *Service) Get(ctx context.Context, orgID, id string) (*Employee, error) {
	emp, err := s.Store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, ErrEmployeeNotFound
	}
	return emp, nil
}

func (s *Service) Create(ctx context.Context, emp Employee) (Employee, error) {
	emp = normalize(emp)
	if emp.Status == "" {
		emp.Status = StatusActive
	}
	if err := validate(emp); err != nil {
		return Employee{}, err
	}
	return s.Store.Create(ctx, emp)
}

func (s *Service) Update(ctx context.Context, orgID, id string, update Update) (Employee, error) {
	current, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Employee{}, err
	}
	next := *current
	apply(&next.Name, update.Name)
	apply(&next.Position, update.Position)
	apply(&next.Department, update.Department)
	apply(&next.Email, update.Email)
	apply(&next.Phone, update.Phone)
	apply(&next.Status, update.Status)
	apply(&next.ImageURL, update.ImageURL)

	next = normalize(next)
	if err := validate(next); err != nil {
		return Employee{}, err
	}
	return s.Store.Update(ctx, next)
}

func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	return s.Store.Delete(ctx, orgID, id)
}

func apply(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}

func normalize(emp Employee) Employee {
	emp.Name = strings.TrimSpace(emp.Name)
	emp.Position = strings.TrimSpace(emp.Position)
	emp.Department = strings.TrimSpace(emp.Department)
	emp.Email = strings.ToLower(strings.TrimSpace(emp.Email))
	emp.Phone = strings.TrimSpace(emp.Phone)
	emp.ImageURL = strings.TrimSpace(emp.ImageURL)
	return emp
}

func validate(emp Employee) error {
	if emp.Name == "" {
		return ErrNameRequired
	}
	if !ValidStatus(emp.Status) {
		return ErrInvalidStatus
	}
	if emp.Email != "" {
		if _, err := mail.ParseAddress(emp.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	return nil
}
