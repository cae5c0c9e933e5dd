// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"time"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	"github.com/dalemusser/coordhub/internal/app/system/metrics"
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for workflow audit events.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// ValidMode reports whether m names a destination.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Logger records the outcome of every workflow operation. Each call counts
// the outcome in Prometheus and then, depending on mode, writes a
// structured log line and an audit document.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	mode   string
}

// New creates a new audit Logger. store may be nil when mode is ModeLog or ModeOff.
func New(store *audit.Store, zapLog *zap.Logger, mode string) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	if !ValidMode(mode) {
		mode = ModeAll
	}
	return &Logger{store: store, zapLog: zapLog, mode: mode}
}

// Ref is a convenience for filling optional id fields.
func Ref(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

func fields(event audit.Event) []zap.Field {
	out := []zap.Field{
		zap.Bool("audit", true),
		zap.String("operation", event.Operation),
		zap.Bool("success", event.Success),
	}
	add := func(key string, id *primitive.ObjectID) {
		if id != nil {
			out = append(out, zap.String(key, id.Hex()))
		}
	}
	add("actor_id", event.ActorID)
	add("request_id", event.RequestID)
	add("offering_id", event.OfferingID)
	add("artifact_id", event.ArtifactID)
	if event.FailureCode != "" {
		out = append(out, zap.String("failure_code", event.FailureCode))
	}
	for k, v := range event.Details {
		out = append(out, zap.String("detail_"+k, v))
	}
	return out
}

// Finish records the outcome of operation and returns err unchanged, so
// services can end with `return l.Finish(ctx, op, err, ev)`.
// Infrastructure errors are always logged at Error, whatever the mode.
func (l *Logger) Finish(ctx context.Context, operation string, err error, event audit.Event) error {
	metrics.Observe(operation, err)
	if l == nil {
		return err
	}

	event.Operation = operation
	event.Success = err == nil
	if err != nil {
		event.FailureCode = errs.CodeOf(err)
		event.FailureReason = err.Error()
	}

	toLog := l.mode == ModeAll || l.mode == ModeLog
	switch {
	case err == nil:
		if toLog {
			l.zapLog.Info("workflow transition", fields(event)...)
		}
	case errs.IsExpected(err):
		if toLog {
			l.zapLog.Debug("workflow guard refused", append(fields(event), zap.String("reason", err.Error()))...)
		}
	default:
		l.zapLog.Error("workflow operation failed", append(fields(event), zap.Error(err))...)
	}

	if (l.mode == ModeAll || l.mode == ModeDB) && l.store != nil {
		l.write(ctx, event)
	}
	return err
}

// write stores event outside the caller's deadline and transaction; the
// operation has already finished.
func (l *Logger) write(ctx context.Context, event audit.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.store.Log(ctx, event); err != nil {
		l.zapLog.Error("failed to store audit event",
			zap.Error(err),
			zap.String("operation", event.Operation))
	}
}
