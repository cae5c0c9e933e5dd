// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/coordhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and attaches JSON-Schema
// validators. The validators repeat the counter invariants at the storage
// level, so a write that slips past a workflow guard is still refused.
// Servers without collMod/validator support are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, validator bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if validator == nil {
			return
		}
		if err := setValidator(ctx, db, coll, validator); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("actors", actorsSchema())
	ensure("offerings", offeringsSchema())
	ensure("coordination_requests", requestsSchema())
	ensure("document_artifacts", artifactsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if it was actually created.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func commandErr(err error) (mongo.CommandError, bool) {
	var ce mongo.CommandError
	ok := errors.As(err, &ce)
	return ce, ok
}

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := commandErr(err); ok && ce.Code == 48 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := commandErr(err); ok && ce.Code == 59 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := commandErr(err); ok && ce.Code == 115 {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- validator documents ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func enumOf[T ~string](vals ...T) bson.A {
	out := bson.A{}
	for _, v := range vals {
		out = append(out, string(v))
	}
	return out
}

func actorsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"role", "full_name", "email", "status"},
			"properties": bson.M{
				"role":         bson.M{"enum": enumOf(models.RoleSponsor, models.RoleApplicant)},
				"full_name":    nonBlank,
				"full_name_ci": nonBlank,
				"email":        nonBlank,
				"status":       bson.M{"enum": bson.A{"active", "disabled"}},
				"accepted_by":  bson.M{"bsonType": "objectId"},
				"capacity":     bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"committed":    bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			},
		},
		// committed never exceeds capacity for sponsors
		"$expr": bson.M{"$or": bson.A{
			bson.M{"$ne": bson.A{"$role", models.RoleSponsor}},
			bson.M{"$lte": bson.A{"$committed", "$capacity"}},
		}},
	}
}

func offeringsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"sponsor_id", "title", "window_start", "window_end", "max_slots", "available_slots", "status"},
			"properties": bson.M{
				"sponsor_id":      bson.M{"bsonType": "objectId"},
				"title":           nonBlank,
				"window_start":    bson.M{"bsonType": "date"},
				"window_end":      bson.M{"bsonType": "date"},
				"max_slots":       bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"available_slots": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"status":          bson.M{"enum": enumOf(models.OfferingUpcoming, models.OfferingActive, models.OfferingClosed)},
			},
		},
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$lte": bson.A{"$available_slots", "$max_slots"}},
			bson.M{"$gt": bson.A{"$window_end", "$window_start"}},
		}},
	}
}

func requestsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"applicant_id", "sponsor_id", "offering_id", "topic", "status", "created_at"},
			"properties": bson.M{
				"applicant_id": bson.M{"bsonType": "objectId"},
				"sponsor_id":   bson.M{"bsonType": "objectId"},
				"offering_id":  bson.M{"bsonType": "objectId"},
				"topic":        nonBlank,
				"status": bson.M{"enum": enumOf(
					models.RequestPending,
					models.RequestApproved,
					models.RequestRejected,
					models.RequestDocumentPending,
					models.RequestCompleted,
				)},
				"created_at": bson.M{"bsonType": "date"},
				"decided_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func artifactsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"request_id", "uploader_id", "uploader_role", "name", "content_type", "size", "status"},
			"properties": bson.M{
				"request_id":    bson.M{"bsonType": "objectId"},
				"uploader_id":   bson.M{"bsonType": "objectId"},
				"uploader_role": bson.M{"enum": enumOf(models.RoleSponsor, models.RoleApplicant)},
				"name":          nonBlank,
				"content_type":  nonBlank,
				"size":          bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 1},
				"status":        bson.M{"enum": enumOf(models.ArtifactPendingReview, models.ArtifactAccepted, models.ArtifactRejected)},
			},
		},
	}
}
