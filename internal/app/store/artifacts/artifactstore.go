// internal/app/store/artifacts/artifactstore.go
package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "document_artifacts"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

func (s *Store) Create(ctx context.Context, a models.DocumentArtifact) (models.DocumentArtifact, error) {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.DocumentArtifact{}, fmt.Errorf("insert artifact: %w", err)
	}
	return a, nil
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.DocumentArtifact, error) {
	var a models.DocumentArtifact
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.DocumentArtifact{}, errs.NotFound("document")
		}
		return models.DocumentArtifact{}, fmt.Errorf("load artifact: %w", err)
	}
	return a, nil
}

// ListByRequest returns a request's artifacts, oldest first.
func (s *Store) ListByRequest(ctx context.Context, requestID primitive.ObjectID) ([]models.DocumentArtifact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"request_id": requestID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.DocumentArtifact
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode artifacts: %w", err)
	}
	return out, nil
}

// Review moves a pending_review artifact to accepted or rejected. It returns
// false when the artifact is no longer pending review.
func (s *Store) Review(ctx context.Context, id primitive.ObjectID, to models.ArtifactStatus, reviewerID primitive.ObjectID, reason string) (bool, error) {
	now := time.Now().UTC()
	set := bson.M{"status": to, "reviewed_by": reviewerID, "reviewed_at": now}
	if reason != "" {
		set["rejection_reason"] = reason
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ArtifactPendingReview},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("review artifact: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// CloseCounterDocuments accepts every sponsor-uploaded document still pending
// review on the request and returns how many changed.
func (s *Store) CloseCounterDocuments(ctx context.Context, requestID, reviewerID primitive.ObjectID) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"request_id": requestID, "uploader_role": models.RoleSponsor, "status": models.ArtifactPendingReview},
		bson.M{"$set": bson.M{"status": models.ArtifactAccepted, "reviewed_by": reviewerID, "reviewed_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("close counter documents: %w", err)
	}
	return res.ModifiedCount, nil
}
