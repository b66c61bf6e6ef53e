package audit

import (
	"context"
	"strings"
	"testing"
)

func TestBuildBaseQuery(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", "org-1", Filter{Action: ActionDelete, UserID: "user-1"})
	if !strings.Contains(query, "action = $2") || !strings.Contains(query, "user_id::text = $3") {
		t.Fatalf("unexpected query: %s", query)
	}
	if strings.Contains(query, "entity_type") {
		t.Fatalf("empty filters must not add clauses: %s", query)
	}
	if len(args) != 3 || args[0] != "org-1" || args[1] != ActionDelete || args[2] != "user-1" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestLogWithoutDatabaseIsNoop(t *testing.T) {
	var svc *Service
	svc.Log(context.Background(), Entry{Action: ActionCreate})
	New(nil).Log(context.Background(), Entry{Action: ActionCreate})
}
