package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionGenerate = "generate"
	ActionArchive  = "archive"
	ActionInvite   = "invite"
	ActionRemove   = "remove"
	ActionAccept   = "accept"
	ActionLogin    = "login"
	ActionSignup   = "signup"
)

type Entry struct {
	OrganizationID string
	UserID         string
	Action         string
	EntityType     string
	EntityID       string
	RequestID      string
	IP             string
	Details        any
}

type Event struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Details    json.RawMessage `json:"details,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	UserID     string
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	details := []byte("{}")
	if e.Details != nil {
		payload, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_logs (organization_id, user_id, action, entity_type, entity_id, details, request_id, ip)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
  `, nullable(e.OrganizationID), nullable(e.UserID), e.Action, e.EntityType, e.EntityID, details, e.RequestID, e.IP)
	return err
}

// Log records the entry and only logs a failure; audit writes never fail a request.
func (s *Service) Log(ctx context.Context, e Entry) {
	if s == nil || s.DB == nil {
		return
	}
	if err := s.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("audit log failed", "action", e.Action, "entityType", e.EntityType, "err", err)
	}
}

func (s *Service) List(ctx context.Context, orgID string, filter Filter, limit, offset int) ([]Event, int, error) {
	countQuery, countArgs := buildBaseQuery("SELECT COUNT(1)", orgID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := buildBaseQuery(`SELECT id::text, COALESCE(user_id::text, ''), action, entity_type, entity_id,
           request_id, ip, created_at, details`, orgID, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.UserID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &evt.Details); err != nil {
			return nil, 0, err
		}
		out = append(out, evt)
	}
	return out, total, rows.Err()
}

func buildBaseQuery(prefix, orgID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_logs WHERE organization_id = $1"
	args := []any{orgID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", len(args)+1)
		args = append(args, filter.EntityType)
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id::text = $%d", len(args)+1)
		args = append(args, filter.UserID)
	}
	return query, args
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
