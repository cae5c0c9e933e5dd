// internal/app/store/audit/store.go
package audit

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "workflow_audit"

// Operations recorded by the workflow services.
const (
	OpOfferingCreate = "offering_create"
	OpOfferingUpdate = "offering_update"
	OpOfferingDelete = "offering_delete"
	OpRequestSubmit  = "request_submit"
	OpRequestApprove = "request_approve"
	OpRequestReject  = "request_reject"
	OpRequestCancel  = "request_cancel"
	OpDocumentUpload = "document_upload"
	OpDocumentAccept = "document_accept"
	OpDocumentReject = "document_reject"
)

// Event is one attempted workflow operation, successful or refused.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`
	Operation string             `bson:"operation"`

	// Who acted, and on what
	ActorID    *primitive.ObjectID `bson:"actor_id,omitempty"`
	RequestID  *primitive.ObjectID `bson:"request_id,omitempty"`
	OfferingID *primitive.ObjectID `bson:"offering_id,omitempty"`
	ArtifactID *primitive.ObjectID `bson:"artifact_id,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureCode   string `bson:"failure_code,omitempty"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	ActorID    *primitive.ObjectID
	RequestID  *primitive.ObjectID
	OfferingID *primitive.ObjectID
	Operation  string
	Success    *bool
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int64
	Offset     int64
}

func (f QueryFilter) query() bson.M {
	q := bson.M{}
	if f.ActorID != nil {
		q["actor_id"] = *f.ActorID
	}
	if f.RequestID != nil {
		q["request_id"] = *f.RequestID
	}
	if f.OfferingID != nil {
		q["offering_id"] = *f.OfferingID
	}
	if f.Operation != "" {
		q["operation"] = f.Operation
	}
	if f.Success != nil {
		q["success"] = *f.Success
	}
	if f.StartTime != nil || f.EndTime != nil {
		tq := bson.M{}
		if f.StartTime != nil {
			tq["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			tq["$lte"] = *f.EndTime
		}
		q["timestamp"] = tq
	}
	return q
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns matching events, most recent first. Limit defaults to 100.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cur, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// ForRequest returns the audit trail of one request, oldest first.
func (s *Store) ForRequest(ctx context.Context, requestID primitive.ObjectID) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"request_id": requestID}, opts)
	if err != nil {
		return nil, fmt.Errorf("query request audit: %w", err)
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}
	return events, nil
}
