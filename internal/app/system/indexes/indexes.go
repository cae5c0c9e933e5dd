// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureActors(ctx, db); err != nil {
		problems = append(problems, "actors: "+err.Error())
	}
	if err := ensureOfferings(ctx, db); err != nil {
		problems = append(problems, "offerings: "+err.Error())
	}
	// the (applicant_id, offering_id) uniqueness is load-bearing for Submit
	if err := ensureRequests(ctx, db); err != nil {
		problems = append(problems, "coordination_requests: "+err.Error())
	}
	if err := ensureArtifacts(ctx, db); err != nil {
		problems = append(problems, "document_artifacts: "+err.Error())
	}
	if err := ensureAudit(ctx, db); err != nil {
		problems = append(problems, "workflow_audit: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(p *bool) bool { return p != nil && *p }

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// ensureIndexSet makes each model exist with its desired name and
// uniqueness. An index on the same keys with another name is renamed; one
// with different uniqueness is dropped and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listIndexes(ctx, coll)

	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", isUnique(unique)))

		if ex, ok := existing[sig]; ok {
			if isUnique(unique) == isUnique(ex.Unique) && (name == "" || ex.Name == name) {
				log.Debug("reusing existing index")
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
			log.Info("dropped index for recreation", zap.String("existing", ex.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && isUnique(unique) {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureActors(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("actors"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_actors_email"),
		},
		// sponsor directory, sorted by name
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_actors_role_status_fullnameci_id"),
		},
	})
}

func ensureOfferings(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("offerings"), []mongo.IndexModel{
		// per-sponsor listing and the overlap probe
		{
			Keys: bson.D{
				{Key: "sponsor_id", Value: 1},
				{Key: "window_start", Value: 1},
				{Key: "window_end", Value: 1},
			},
			Options: options.Index().SetName("idx_offerings_sponsor_window"),
		},
		// open offerings and the status refresher
		{
			Keys:    bson.D{{Key: "window_start", Value: 1}, {Key: "window_end", Value: 1}},
			Options: options.Index().SetName("idx_offerings_window"),
		},
	})
}

func ensureRequests(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("coordination_requests"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "applicant_id", Value: 1}, {Key: "offering_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_requests_applicant_offering"),
		},
		// sibling cascade and applicant listings
		{
			Keys: bson.D{
				{Key: "applicant_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_applicant_status_created"),
		},
		{
			Keys: bson.D{
				{Key: "sponsor_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_sponsor_status_created"),
		},
		// offering delete checks
		{
			Keys:    bson.D{{Key: "offering_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_requests_offering_status"),
		},
	})
}

func ensureArtifacts(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("document_artifacts"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_artifacts_request_created"),
		},
	})
}

func ensureAudit(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("workflow_audit"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("idx_audit_request_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_actor_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "operation", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_operation_timestamp"),
		},
	})
}
