// internal/app/store/offerings/offeringstore.go
package offeringstore

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

const Collection = "offerings"

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create inserts an offering built by the offering manager.
func (s *Store) Create(ctx context.Context, o models.Offering) (models.Offering, error) {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, o); err != nil {
		return models.Offering{}, fmt.Errorf("insert offering: %w", err)
	}
	return o, nil
}

// Get loads an offering by id. The stored status may be stale; callers
// recompute it before exposing it.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Offering, error) {
	var o models.Offering
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Offering{}, errs.NotFound("offering")
		}
		return models.Offering{}, fmt.Errorf("load offering: %w", err)
	}
	return o, nil
}

// ListBySponsor returns a sponsor's offerings ordered by window start.
func (s *Store) ListBySponsor(ctx context.Context, sponsorID primitive.ObjectID) ([]models.Offering, error) {
	return s.find(ctx, bson.M{"sponsor_id": sponsorID})
}

// ListOpen returns offerings whose window contains now and that still have
// a free slot.
func (s *Store) ListOpen(ctx context.Context, now time.Time) ([]models.Offering, error) {
	return s.find(ctx, bson.M{
		"window_start":    bson.M{"$lte": now},
		"window_end":      bson.M{"$gte": now},
		"available_slots": bson.M{"$gt": 0},
	})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Offering, error) {
	opts := options.Find().SetSort(bson.D{{Key: "window_start", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Offering
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode offerings: %w", err)
	}
	return out, nil
}

// HasOverlap reports whether the sponsor owns an offering whose window
// intersects [start, end] (boundaries inclusive). exclude, when non-nil, is
// left out of the check so an offering never conflicts with itself.
func (s *Store) HasOverlap(ctx context.Context, sponsorID primitive.ObjectID, start, end time.Time, exclude *primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"sponsor_id":   sponsorID,
		"window_start": bson.M{"$lte": end},
		"window_end":   bson.M{"$gte": start},
	}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": *exclude}
	}
	err := s.c.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return true, nil
}

// Changes lists the fields an update may touch. Nil fields are left alone.
type Changes struct {
	Title       *string
	TitleCI     *string
	Description *string
	WindowStart *time.Time
	WindowEnd   *time.Time
	MaxSlots    *int
	Status      *models.OfferingStatus
}

// Update applies changes in a single atomic document update. When MaxSlots
// changes, available_slots moves by the same delta, clamped to
// [0, new max_slots], computed from the stored values at write time so a
// concurrent reserve or release is never lost.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, ch Changes) error {
	set := bson.M{"updated_at": bson.M{"$literal": time.Now().UTC()}}
	if ch.Title != nil {
		set["title"] = bson.M{"$literal": *ch.Title}
	}
	if ch.TitleCI != nil {
		set["title_ci"] = bson.M{"$literal": *ch.TitleCI}
	}
	if ch.Description != nil {
		set["description"] = bson.M{"$literal": *ch.Description}
	}
	if ch.WindowStart != nil {
		set["window_start"] = bson.M{"$literal": *ch.WindowStart}
	}
	if ch.WindowEnd != nil {
		set["window_end"] = bson.M{"$literal": *ch.WindowEnd}
	}
	if ch.Status != nil {
		set["status"] = bson.M{"$literal": string(*ch.Status)}
	}
	if ch.MaxSlots != nil {
		newMax := *ch.MaxSlots
		set["max_slots"] = bson.M{"$literal": newMax}
		// Stage fields all read the pre-update document, so $max_slots is the old max.
		set["available_slots"] = bson.M{"$max": bson.A{0, bson.M{"$min": bson.A{
			newMax,
			bson.M{"$add": bson.A{"$available_slots", bson.M{"$subtract": bson.A{newMax, "$max_slots"}}}},
		}}}}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, mongo.Pipeline{{{Key: "$set", Value: set}}})
	if err != nil {
		return fmt.Errorf("update offering: %w", err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("offering")
	}
	return nil
}

// ReserveSlot takes one slot. The check and the decrement are one
// conditional update; errs.ErrNoSlots means none were left.
func (s *Store) ReserveSlot(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "available_slots": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"available_slots": -1}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return errs.ErrNoSlots
	}
	return nil
}

// Claim bumps the offering's lock_seq while it still has a free slot, so a
// transaction that only reads the offering otherwise still conflicts with
// concurrent writers such as Delete or ReserveSlot. It returns
// errs.ErrNoSlots when available_slots is 0.
func (s *Store) Claim(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "available_slots": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"lock_seq": 1}},
	)
	if err != nil {
		return fmt.Errorf("claim offering: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return errs.ErrNoSlots
	}
	return nil
}

// ReleaseSlot returns one slot. Releasing into a full offering is a no-op so
// available_slots never exceeds max_slots.
func (s *Store) ReleaseSlot(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "$expr": bson.M{"$lt": bson.A{"$available_slots", "$max_slots"}}},
		bson.M{"$inc": bson.M{"available_slots": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the offering document.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("offering")
	}
	return nil
}

// RefreshStatuses rewrites the cached status of every offering whose window
// position changed relative to now. Returns the number of documents changed.
func (s *Store) RefreshStatuses(ctx context.Context, now time.Time) (int64, error) {
	passes := []struct {
		status models.OfferingStatus
		filter bson.M
	}{
		{models.OfferingUpcoming, bson.M{"window_start": bson.M{"$gt": now}}},
		{models.OfferingActive, bson.M{"window_start": bson.M{"$lte": now}, "window_end": bson.M{"$gte": now}}},
		{models.OfferingClosed, bson.M{"window_end": bson.M{"$lt": now}}},
	}

	var total int64
	for _, p := range passes {
		p.filter["status"] = bson.M{"$ne": p.status}
		res, err := s.c.UpdateMany(ctx, p.filter, bson.M{"$set": bson.M{"status": p.status, "updated_at": now}})
		if err != nil {
			return total, fmt.Errorf("refresh %s offerings: %w", p.status, err)
		}
		total += res.ModifiedCount
	}
	return total, nil
}
