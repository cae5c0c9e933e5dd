package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	"github.com/dalemusser/coordhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	request := primitive.NewObjectID()
	err := store.Log(ctx, audit.Event{
		Operation: audit.OpRequestApprove,
		ActorID:   &actor,
		RequestID: &request,
		Success:   true,
		Details:   map[string]string{"cascaded": "2"},
	})
	if err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.Query(ctx, audit.QueryFilter{ActorID: &actor})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
	if got.Operation != audit.OpRequestApprove {
		t.Errorf("Operation: got %q, want %q", got.Operation, audit.OpRequestApprove)
	}
	if got.Details["cascaded"] != "2" {
		t.Errorf("Details[cascaded]: got %q, want %q", got.Details["cascaded"], "2")
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	request := primitive.NewObjectID()
	base := time.Now().UTC().Add(-time.Hour)
	events := []audit.Event{
		{Timestamp: base, Operation: audit.OpRequestSubmit, RequestID: &request, Success: true},
		{Timestamp: base.Add(time.Minute), Operation: audit.OpRequestApprove, RequestID: &request, Success: false, FailureCode: "capacity_exceeded"},
		{Timestamp: base.Add(2 * time.Minute), Operation: audit.OpRequestApprove, Success: true},
	}
	for _, ev := range events {
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	failed := false
	since := base.Add(30 * time.Second)
	tests := []struct {
		name   string
		filter audit.QueryFilter
		want   int
	}{
		{"all", audit.QueryFilter{}, 3},
		{"by operation", audit.QueryFilter{Operation: audit.OpRequestApprove}, 2},
		{"by request", audit.QueryFilter{RequestID: &request}, 2},
		{"failures", audit.QueryFilter{Success: &failed}, 1},
		{"since", audit.QueryFilter{StartTime: &since}, 2},
		{"limit", audit.QueryFilter{Limit: 1}, 1},
		{"offset", audit.QueryFilter{Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}

	n, err := store.CountByFilter(ctx, audit.QueryFilter{Operation: audit.OpRequestApprove})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountByFilter: got %d, want 2", n)
	}
}

func TestStore_ForRequest_Ordered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	request := primitive.NewObjectID()
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, op := range []string{audit.OpRequestSubmit, audit.OpRequestApprove, audit.OpDocumentUpload} {
		ev := audit.Event{Timestamp: base.Add(time.Duration(i) * time.Second), Operation: op, RequestID: &request, Success: true}
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	trail, err := store.ForRequest(ctx, request)
	if err != nil {
		t.Fatalf("ForRequest failed: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("expected 3 events, got %d", len(trail))
	}
	if trail[0].Operation != audit.OpRequestSubmit || trail[2].Operation != audit.OpDocumentUpload {
		t.Errorf("unexpected order: %q ... %q", trail[0].Operation, trail[2].Operation)
	}
}
