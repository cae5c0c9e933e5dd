package artifactstore_test

import (
	"errors"
	"testing"
	"time"

	artifactstore "github.com/dalemusser/coordhub/internal/app/store/artifacts"
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"github.com/dalemusser/coordhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_ReviewOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := artifactstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sponsor := fixtures.CreateSponsor(ctx, "S", "s@example.com", 1)
	app := fixtures.CreateApplicant(ctx, "A", "a@example.com")
	o := fixtures.CreateActiveOffering(ctx, sponsor.ID, 1)
	r := fixtures.CreateRequest(ctx, app.ID, o, models.RequestDocumentPending)
	a := fixtures.CreateArtifact(ctx, r.ID, app.ID, models.RoleApplicant)

	ok, err := store.Review(ctx, a.ID, models.ArtifactRejected, sponsor.ID, "unsigned")
	if err != nil || !ok {
		t.Fatalf("Review: got %v, %v", ok, err)
	}
	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.ArtifactRejected || got.RejectionReason != "unsigned" {
		t.Errorf("got status %q reason %q", got.Status, got.RejectionReason)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != sponsor.ID || got.ReviewedAt == nil {
		t.Error("expected reviewer and time to be recorded")
	}

	// a reviewed artifact cannot be reviewed again
	ok, err = store.Review(ctx, a.ID, models.ArtifactAccepted, sponsor.ID, "")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if ok {
		t.Error("expected second review to report false")
	}

	if _, err := store.Get(ctx, primitive.NewObjectID()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get missing: got %v, want ErrNotFound", err)
	}
}

func TestStore_ListByRequest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := artifactstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	request := primitive.NewObjectID()
	uploader := primitive.NewObjectID()
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, name := range []string{"b.pdf", "a.pdf"} {
		_, err := store.Create(ctx, models.DocumentArtifact{
			RequestID:    request,
			UploaderID:   uploader,
			UploaderRole: models.RoleApplicant,
			Name:         name,
			ContentType:  "application/pdf",
			Size:         10,
			Status:       models.ArtifactPendingReview,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := store.Create(ctx, models.DocumentArtifact{
		RequestID: primitive.NewObjectID(), UploaderID: uploader, UploaderRole: models.RoleApplicant,
		Name: "other.pdf", ContentType: "application/pdf", Size: 1, Status: models.ArtifactPendingReview,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	list, err := store.ListByRequest(ctx, request)
	if err != nil {
		t.Fatalf("ListByRequest failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(list))
	}
	if list[0].Name != "b.pdf" || list[1].Name != "a.pdf" {
		t.Errorf("expected oldest first, got %q, %q", list[0].Name, list[1].Name)
	}
}

func TestStore_CloseCounterDocuments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := artifactstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sponsor := fixtures.CreateSponsor(ctx, "S", "s@example.com", 1)
	app := fixtures.CreateApplicant(ctx, "A", "a@example.com")
	o := fixtures.CreateActiveOffering(ctx, sponsor.ID, 1)
	r := fixtures.CreateRequest(ctx, app.ID, o, models.RequestDocumentPending)
	counter := fixtures.CreateArtifact(ctx, r.ID, sponsor.ID, models.RoleSponsor)
	mine := fixtures.CreateArtifact(ctx, r.ID, app.ID, models.RoleApplicant)

	n, err := store.CloseCounterDocuments(ctx, r.ID, sponsor.ID)
	if err != nil || n != 1 {
		t.Fatalf("CloseCounterDocuments: got %d, %v; want 1", n, err)
	}
	got, _ := store.Get(ctx, counter.ID)
	if got.Status != models.ArtifactAccepted || got.ReviewedBy == nil || got.ReviewedAt == nil {
		t.Errorf("counter document: %+v", got)
	}
	got, _ = store.Get(ctx, mine.ID)
	if got.Status != models.ArtifactPendingReview {
		t.Errorf("applicant document changed to %q", got.Status)
	}

	n, err = store.CloseCounterDocuments(ctx, r.ID, sponsor.ID)
	if err != nil || n != 0 {
		t.Errorf("second close: got %d, %v; want 0", n, err)
	}
}
