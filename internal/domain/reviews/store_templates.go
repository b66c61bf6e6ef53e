package reviews

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) ListTemplates(ctx context.Context, orgID string) ([]Template, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, organization_id::text, name, description, review_type, COALESCE(created_by::text, ''), created_at
    FROM review_templates
    WHERE organization_id = $1
    ORDER BY name
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Description, &t.ReviewType, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		fields, err := s.listFields(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Fields = fields
	}
	return out, nil
}

func (s *Store) GetTemplate(ctx context.Context, orgID, id string) (*Template, error) {
	var t Template
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, organization_id::text, name, description, review_type, COALESCE(created_by::text, ''), created_at
    FROM review_templates
    WHERE organization_id = $1 AND id = $2
  `, orgID, id).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Description, &t.ReviewType, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fields, err := s.listFields(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Fields = fields
	return &t, nil
}

func (s *Store) listFields(ctx context.Context, templateID string) ([]Field, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, template_id::text, label, field_type, required, options, position
    FROM review_fields
    WHERE template_id = $1
    ORDER BY position
  `, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Field{}
	for rows.Next() {
		var f Field
		var options []byte
		if err := rows.Scan(&f.ID, &f.TemplateID, &f.Label, &f.FieldType, &f.Required, &options, &f.Position); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &f.Options); err != nil {
				return nil, err
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CreateTemplate writes the template and its fields in one transaction.
func (s *Store) CreateTemplate(ctx context.Context, tmpl Template) (Template, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Template{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
    INSERT INTO review_templates (organization_id, name, description, review_type, created_by)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id::text, created_at
  `, tmpl.OrganizationID, tmpl.Name, tmpl.Description, tmpl.ReviewType, nullable(tmpl.CreatedBy)).Scan(&tmpl.ID, &tmpl.CreatedAt)
	if err != nil {
		return Template{}, err
	}

	for i := range tmpl.Fields {
		field := &tmpl.Fields[i]
		options := field.Options
		if options == nil {
			options = []string{}
		}
		raw, err := json.Marshal(options)
		if err != nil {
			return Template{}, err
		}
		field.TemplateID = tmpl.ID
		if err := tx.QueryRow(ctx, `
      INSERT INTO review_fields (template_id, label, field_type, required, options, position)
      VALUES ($1, $2, $3, $4, $5, $6)
      RETURNING id::text
    `, tmpl.ID, field.Label, field.FieldType, field.Required, raw, field.Position).Scan(&field.ID); err != nil {
			return Template{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Template{}, err
	}
	return tmpl, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, orgID, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM review_templates WHERE organization_id = $1 AND id = $2", orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
