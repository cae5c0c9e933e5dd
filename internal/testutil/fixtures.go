package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dalemusser/coordhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures inserts test records directly, bypassing the workflow guards.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert test %s: %v", coll, err)
	}
}

func (f *Fixtures) newActor(role, fullName, email string) models.Actor {
	now := time.Now().UTC()
	return models.Actor{
		ID:         primitive.NewObjectID(),
		Role:       role,
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CreateSponsor creates an active sponsor with the given capacity and
// nothing committed.
func (f *Fixtures) CreateSponsor(ctx context.Context, fullName, email string, capacity int) models.Actor {
	f.t.Helper()
	a := f.newActor(models.RoleSponsor, fullName, email)
	a.Capacity = capacity
	f.insert(ctx, "actors", a)
	return a
}

// CreateApplicant creates an active applicant with no accepted sponsor.
func (f *Fixtures) CreateApplicant(ctx context.Context, fullName, email string) models.Actor {
	f.t.Helper()
	a := f.newActor(models.RoleApplicant, fullName, email)
	f.insert(ctx, "actors", a)
	return a
}

// CreateOffering creates an offering for sponsorID over [start, end] with
// every slot available.
func (f *Fixtures) CreateOffering(ctx context.Context, sponsorID primitive.ObjectID, start, end time.Time, maxSlots int) models.Offering {
	f.t.Helper()

	now := time.Now().UTC()
	title := fmt.Sprintf("Offering %s", start.Format("2006-01-02 15:04"))
	o := models.Offering{
		ID:             primitive.NewObjectID(),
		SponsorID:      sponsorID,
		Title:          title,
		TitleCI:        text.Fold(title),
		WindowStart:    start.UTC(),
		WindowEnd:      end.UTC(),
		MaxSlots:       maxSlots,
		AvailableSlots: maxSlots,
		Status:         models.OfferingStatusAt(start, end, now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.insert(ctx, "offerings", o)
	return o
}

// CreateActiveOffering creates an offering whose window opened an hour ago
// and closes in a week.
func (f *Fixtures) CreateActiveOffering(ctx context.Context, sponsorID primitive.ObjectID, maxSlots int) models.Offering {
	f.t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	return f.CreateOffering(ctx, sponsorID, now.Add(-time.Hour), now.Add(7*24*time.Hour), maxSlots)
}

// CreateRequest creates a request in the given status. It does not touch
// counters or slots; tests that need a consistent committed state should go
// through the workflow engine instead.
func (f *Fixtures) CreateRequest(ctx context.Context, applicantID primitive.ObjectID, offering models.Offering, status models.RequestStatus) models.CoordinationRequest {
	f.t.Helper()

	now := time.Now().UTC()
	r := models.CoordinationRequest{
		ID:          primitive.NewObjectID(),
		ApplicantID: applicantID,
		SponsorID:   offering.SponsorID,
		OfferingID:  offering.ID,
		Topic:       "Research collaboration",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status != models.RequestPending {
		r.DecidedAt = &now
	}
	f.insert(ctx, "coordination_requests", r)
	return r
}

// CreateArtifact creates a pending_review artifact on a request.
func (f *Fixtures) CreateArtifact(ctx context.Context, requestID, uploaderID primitive.ObjectID, uploaderRole string) models.DocumentArtifact {
	f.t.Helper()

	a := models.DocumentArtifact{
		ID:           primitive.NewObjectID(),
		RequestID:    requestID,
		UploaderID:   uploaderID,
		UploaderRole: uploaderRole,
		Name:         "statement.pdf",
		ContentType:  "application/pdf",
		Size:         2048,
		StorageRef:   "blob/" + primitive.NewObjectID().Hex(),
		Status:       models.ArtifactPendingReview,
		CreatedAt:    time.Now().UTC(),
	}
	f.insert(ctx, "document_artifacts", a)
	return a
}
