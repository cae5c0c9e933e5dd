// internal/app/store/requests/requeststore.go
package requeststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "coordination_requests"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

func committedStatuses() bson.A {
	out := bson.A{}
	for _, s := range models.CommittedRequestStatuses {
		out = append(out, s)
	}
	return out
}

// Create inserts a request. The unique (applicant_id, offering_id) index
// turns a lost duplicate race into errs.ErrDuplicateRequest.
func (s *Store) Create(ctx context.Context, r models.CoordinationRequest) (models.CoordinationRequest, error) {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CoordinationRequest{}, errs.ErrDuplicateRequest
		}
		return models.CoordinationRequest{}, fmt.Errorf("insert request: %w", err)
	}
	return r, nil
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.CoordinationRequest, error) {
	var r models.CoordinationRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.CoordinationRequest{}, errs.NotFound("request")
		}
		return models.CoordinationRequest{}, fmt.Errorf("load request: %w", err)
	}
	return r, nil
}

// Exists reports whether the applicant already has a request for the offering.
func (s *Store) Exists(ctx context.Context, applicantID, offeringID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx,
		bson.M{"applicant_id": applicantID, "offering_id": offeringID},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check request: %w", err)
	}
	return true, nil
}

// Transition moves a request from one status to another. It returns false
// when the request was not in from (or no longer exists), leaving it
// untouched. reason, when non-empty, is stored as the rejection reason.
func (s *Store) Transition(ctx context.Context, id primitive.ObjectID, from, to models.RequestStatus, reason string) (bool, error) {
	now := time.Now().UTC()
	set := bson.M{"status": to, "updated_at": now}
	if reason != "" {
		set["rejection_reason"] = reason
	}
	if from == models.RequestPending {
		set["decided_at"] = now
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("transition request %s->%s: %w", from, to, err)
	}
	return res.MatchedCount == 1, nil
}

// Touch bumps updated_at while the request is in status. It gives a write
// that conflicts with concurrent transitions of the same request without
// changing its state. Returns false when the request is not in status.
func (s *Store) Touch(ctx context.Context, id primitive.ObjectID, status models.RequestStatus) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": status},
		bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("touch request: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// RejectPendingForApplicant rejects every pending request of the applicant
// except the one given, in a single bulk update.
func (s *Store) RejectPendingForApplicant(ctx context.Context, applicantID, except primitive.ObjectID, reason string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"applicant_id": applicantID, "status": models.RequestPending, "_id": bson.M{"$ne": except}},
		bson.M{"$set": bson.M{
			"status":           models.RequestRejected,
			"rejection_reason": reason,
			"decided_at":       now,
			"updated_at":       now,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("reject sibling requests: %w", err)
	}
	return res.ModifiedCount, nil
}

// DeletePending removes a request only while it is still pending.
func (s *Store) DeletePending(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "status": models.RequestPending})
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	return res.DeletedCount == 1, nil
}

// CountCommittedForOffering counts requests on the offering that hold a
// sponsor commitment.
func (s *Store) CountCommittedForOffering(ctx context.Context, offeringID primitive.ObjectID) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"offering_id": offeringID, "status": bson.M{"$in": committedStatuses()}})
	if err != nil {
		return 0, fmt.Errorf("count committed requests: %w", err)
	}
	return n, nil
}

// CountCommittedForApplicant counts the applicant's committed requests.
// The workflow keeps this at most one.
func (s *Store) CountCommittedForApplicant(ctx context.Context, applicantID primitive.ObjectID) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"applicant_id": applicantID, "status": bson.M{"$in": committedStatuses()}})
	if err != nil {
		return 0, fmt.Errorf("count committed requests: %w", err)
	}
	return n, nil
}

// WithdrawPendingForOffering rejects every pending request on the offering
// with reason, in a single bulk update. Requests in other states are left as
// they are.
func (s *Store) WithdrawPendingForOffering(ctx context.Context, offeringID primitive.ObjectID, reason string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"offering_id": offeringID, "status": models.RequestPending},
		bson.M{"$set": bson.M{
			"status":           models.RequestRejected,
			"rejection_reason": reason,
			"decided_at":       now,
			"updated_at":       now,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("withdraw requests: %w", err)
	}
	return res.ModifiedCount, nil
}

// ListForApplicant returns the applicant's requests, newest first. An empty
// status returns all of them.
func (s *Store) ListForApplicant(ctx context.Context, applicantID primitive.ObjectID, status models.RequestStatus) ([]models.CoordinationRequest, error) {
	return s.list(ctx, bson.M{"applicant_id": applicantID}, status)
}

// ListForSponsor returns requests addressed to the sponsor, newest first.
func (s *Store) ListForSponsor(ctx context.Context, sponsorID primitive.ObjectID, status models.RequestStatus) ([]models.CoordinationRequest, error) {
	return s.list(ctx, bson.M{"sponsor_id": sponsorID}, status)
}

// ListForOffering returns the offering's requests, newest first.
func (s *Store) ListForOffering(ctx context.Context, offeringID primitive.ObjectID, status models.RequestStatus) ([]models.CoordinationRequest, error) {
	return s.list(ctx, bson.M{"offering_id": offeringID}, status)
}

func (s *Store) list(ctx context.Context, filter bson.M, status models.RequestStatus) ([]models.CoordinationRequest, error) {
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.CoordinationRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	return out, nil
}
