package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appraze/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const employeeColumns = `id::text, organization_id::text, COALESCE(user_id::text, ''), name, position, department,
           email, phone, status, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.Name, &e.Position, &e.Department,
		&e.Email, &e.Phone, &e.Status, &e.ImageURL, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (s *Store) List(ctx context.Context, orgID string, filter Filter) ([]Employee, error) {
	query := "SELECT " + employeeColumns + " FROM employees WHERE organization_id = $1"
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Employee{}
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, orgID, id string) (*Employee, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE organization_id = $1 AND id = $2", orgID, id)
	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) Create(ctx context.Context, emp Employee) (Employee, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO employees (organization_id, user_id, name, position, department, email, phone, status, image_url)
    VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9)
    RETURNING `+employeeColumns,
		emp.OrganizationID, emp.UserID, emp.Name, emp.Position, emp.Department, emp.Email, emp.Phone, emp.Status, emp.ImageURL)
	return scanEmployee(row)
}

func (s *Store) Update(ctx context.Context, emp Employee) (Employee, error) {
	row := s.DB.QueryRow(ctx, `
    UPDATE employees
    SET name = $3, position = $4, department = $5, email = $6, phone = $7, status = $8, image_url = $9, updated_at = now()
    WHERE organization_id = $1 AND id = $2
    RETURNING `+employeeColumns,
		emp.OrganizationID, emp.ID, emp.Name, emp.Position, emp.Department, emp.Email, emp.Phone, emp.Status, emp.ImageURL)
	updated, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return updated, err
}

func (s *Store) Delete(ctx context.Context, orgID, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM employees WHERE organization_id = $1 AND id = $2", orgID, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrEmployeeInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}
