package auditlog_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	"github.com/dalemusser/coordhub/internal/app/system/auditlog"
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	want := errs.ErrNoSlots
	if got := logger.Finish(ctx, audit.OpRequestApprove, want, audit.Event{}); got != want {
		t.Errorf("Finish returned %v, want %v", got, want)
	}
}

func TestLogger_ModeLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.ModeLog)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	req := primitive.NewObjectID()
	_ = logger.Finish(ctx, audit.OpRequestApprove, nil, audit.Event{RequestID: &req})
	_ = logger.Finish(ctx, audit.OpRequestApprove, errs.ErrCapacityExceeded, audit.Event{RequestID: &req})
	_ = logger.Finish(ctx, audit.OpRequestApprove, errors.New("socket closed"), audit.Event{RequestID: &req})

	tests := []struct {
		msg   string
		level zapcore.Level
	}{
		{"workflow transition", zapcore.InfoLevel},
		{"workflow guard refused", zapcore.DebugLevel},
		{"workflow operation failed", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		entries := logs.FilterMessage(tt.msg).All()
		if len(entries) != 1 {
			t.Errorf("%q: got %d entries, want 1", tt.msg, len(entries))
			continue
		}
		if entries[0].Level != tt.level {
			t.Errorf("%q: level %v, want %v", tt.msg, entries[0].Level, tt.level)
		}
		if entries[0].ContextMap()["request_id"] != req.Hex() {
			t.Errorf("%q: missing request_id field", tt.msg)
		}
	}
}

func TestLogger_ModeOff_StillLogsInfraErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.ModeOff)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = logger.Finish(ctx, audit.OpRequestSubmit, nil, audit.Event{})
	_ = logger.Finish(ctx, audit.OpRequestSubmit, errors.New("no reachable servers"), audit.Event{})

	if logs.Len() != 1 {
		t.Fatalf("got %d entries, want 1", logs.Len())
	}
	if logs.All()[0].Level != zapcore.ErrorLevel {
		t.Errorf("level %v, want error", logs.All()[0].Level)
	}
}

func TestLogger_ModeDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	logger := auditlog.New(store, zap.NewNop(), auditlog.ModeDB)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actor := primitive.NewObjectID()
	_ = logger.Finish(ctx, audit.OpRequestReject, errs.ErrInvalidState, audit.Event{ActorID: &actor})

	events, err := store.Query(ctx, audit.QueryFilter{ActorID: &actor})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Success {
		t.Error("expected Success=false")
	}
	if ev.Operation != audit.OpRequestReject {
		t.Errorf("Operation: got %q", ev.Operation)
	}
	if ev.FailureCode != "invalid_state" {
		t.Errorf("FailureCode: got %q, want invalid_state", ev.FailureCode)
	}
}

func TestLogger_ModeOff_WritesNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	logger := auditlog.New(store, zap.NewNop(), auditlog.ModeOff)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = logger.Finish(ctx, audit.OpRequestSubmit, nil, audit.Event{})

	n, err := store.CountByFilter(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no events when mode is off, got %d", n)
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{"all", "db", "log", "off"} {
		if !auditlog.ValidMode(m) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if auditlog.ValidMode("both") {
		t.Error("ValidMode(both) = true")
	}
}
