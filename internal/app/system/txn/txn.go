// Package txn runs multi-document MongoDB transactions.
//
// Every workflow operation that touches more than one document runs its reads
// and writes through a Runner. The callback receives a context bound to the
// session; stores must use that context for their calls to join the
// transaction. On a write conflict the driver aborts and re-runs the callback,
// so callbacks must re-read everything they depend on and be free of side
// effects outside the database.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrUnsupported is returned in strict mode when the deployment cannot run
// multi-document transactions (for example a standalone mongod).
var ErrUnsupported = errors.New("multi-document transactions are unavailable on this deployment")

// Runner executes callbacks atomically.
//
// With Strict unset, a deployment without transaction support falls back to
// running the callback directly and logs a warning. Guards are then still
// enforced by conditional writes, but a failure part-way through is not
// rolled back. Production deployments set Strict.
type Runner struct {
	DB     *mongo.Database
	Log    *zap.Logger
	Strict bool
}

// Do runs fn inside a transaction.
func (r Runner) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	log, fallback := r.Log, !r.Strict
	if log == nil {
		log = zap.NewNop()
	}

	sess, err := r.DB.Client().StartSession()
	if err != nil {
		if fallback && IsNotSupported(err) {
			log.Warn("sessions not supported; running without transaction", zap.Error(err))
			return fn(ctx)
		}
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	var fnErr error
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if err == nil {
		return nil
	}
	if !unsupported(err, fnErr) {
		return err
	}
	if !fallback {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	log.Warn("transactions not supported; running without transaction", zap.Error(err))
	return fn(ctx)
}

// unsupported separates "the server refused the transaction" from errors
// returned by the callback itself. Only server errors, or errors raised by
// the session machinery before the callback produced one, qualify.
func unsupported(err, fnErr error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return IsNotSupported(err)
	}
	return fnErr == nil && IsNotSupported(err)
}

// IsNotSupported reports whether err indicates the deployment cannot run
// transactions or sessions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, // IllegalOperation: "Transaction numbers are only allowed on a replica set member or mongos"
			51,  // IllegalOperation variants on older servers
			263: // OperationNotSupportedInTransaction
			return true
		}
	}

	s := strings.ToLower(err.Error())
	hasTxn := strings.Contains(s, "transaction")
	switch {
	case hasTxn && strings.Contains(s, "replica set"):
		return true
	case hasTxn && strings.Contains(s, "session"):
		return true
	case strings.Contains(s, "session") && strings.Contains(s, "not supported"):
		return true
	case strings.Contains(s, "illegal operation"):
		return true
	}
	return false
}
