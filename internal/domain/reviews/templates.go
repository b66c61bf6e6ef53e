package reviews

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

func (s *Service) ListTemplates(ctx context.Context, orgID string) ([]Template, error) {
	return s.Store.ListTemplates(ctx, orgID)
}

func (s *Service) GetTemplate(ctx context.Context, orgID, id string) (*Template, error) {
	tmpl, err := s.Store.GetTemplate(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, ErrTemplateNotFound
	}
	return tmpl, nil
}

func (s *Service) CreateTemplate(ctx context.Context, tmpl Template) (Template, error) {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	tmpl.Description = strings.TrimSpace(tmpl.Description)
	tmpl.ReviewType = strings.ToLower(strings.TrimSpace(tmpl.ReviewType))
	if tmpl.ReviewType == "" {
		tmpl.ReviewType = defaultType
	}
	if tmpl.Name == "" {
		return Template{}, fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if !contains(ReviewTypes, tmpl.ReviewType) {
		return Template{}, fmt.Errorf("%w: unknown review type %q", ErrInvalidTemplate, tmpl.ReviewType)
	}
	for i := range tmpl.Fields {
		field := &tmpl.Fields[i]
		field.Label = strings.TrimSpace(field.Label)
		field.FieldType = strings.ToLower(strings.TrimSpace(field.FieldType))
		if field.FieldType == "" {
			field.FieldType = FieldText
		}
		field.Position = i
		if field.Label == "" {
			return Template{}, fmt.Errorf("%w: field %d needs a label", ErrInvalidTemplate, i+1)
		}
		if !contains(FieldTypes, field.FieldType) {
			return Template{}, fmt.Errorf("%w: unknown field type %q", ErrInvalidTemplate, field.FieldType)
		}
		if field.FieldType == FieldSelect && len(field.Options) == 0 {
			return Template{}, fmt.Errorf("%w: select field %q needs options", ErrInvalidTemplate, field.Label)
		}
		if field.FieldType != FieldSelect {
			field.Options = nil
		}
	}
	return s.Store.CreateTemplate(ctx, tmpl)
}

func (s *Service) DeleteTemplate(ctx context.Context, orgID, id string) error {
	return s.Store.DeleteTemplate(ctx, orgID, id)
}

// templateValues checks submitted answers against the chosen template and
// returns them in field order with their labels.
func (s *Service) templateValues(ctx context.Context, in SubmitInput) ([]FieldValue, error) {
	if in.TemplateID == "" {
		return nil, nil
	}
	tmpl, err := s.GetTemplate(ctx, in.OrganizationID, in.TemplateID)
	if err != nil {
		return nil, err
	}
	var out []FieldValue
	for _, field := range tmpl.Fields {
		value := strings.TrimSpace(in.FieldValues[field.ID])
		if value == "" {
			if field.Required {
				return nil, fmt.Errorf("%w: %s is required", ErrInvalidReview, field.Label)
			}
			continue
		}
		switch field.FieldType {
		case FieldRating:
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 5 {
				return nil, fmt.Errorf("%w: %s must be between 1 and 5", ErrInvalidReview, field.Label)
			}
		case FieldSelect:
			if !slices.Contains(field.Options, value) {
				return nil, fmt.Errorf("%w: %s has an unknown option", ErrInvalidReview, field.Label)
			}
		}
		out = append(out, FieldValue{FieldID: field.ID, Label: field.Label, Value: value})
	}
	return out, nil
}
