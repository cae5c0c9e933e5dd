package metricsstore_test

import (
	"testing"
	"time"

	metricsstore "github.com/dalemusser/coordhub/internal/app/store/metrics"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"github.com/dalemusser/coordhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFetchWorkflowCounts_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	counts := metricsstore.FetchWorkflowCounts(ctx, db, time.Now())

	if counts.Sponsors != 0 {
		t.Errorf("Sponsors: got %d, want 0", counts.Sponsors)
	}
	if counts.Applicants != 0 {
		t.Errorf("Applicants: got %d, want 0", counts.Applicants)
	}
	if counts.OpenOfferings != 0 {
		t.Errorf("OpenOfferings: got %d, want 0", counts.OpenOfferings)
	}
	if len(counts.RequestsByStatus) != 0 {
		t.Errorf("RequestsByStatus: got %v, want empty", counts.RequestsByStatus)
	}
}

func TestFetchWorkflowCounts_WithData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	s1 := fixtures.CreateSponsor(ctx, "Sponsor One", "s1@example.com", 3)
	s2 := fixtures.CreateSponsor(ctx, "Sponsor Two", "s2@example.com", 3)
	a1 := fixtures.CreateApplicant(ctx, "Applicant One", "a1@example.com")
	a2 := fixtures.CreateApplicant(ctx, "Applicant Two", "a2@example.com")
	a3 := fixtures.CreateApplicant(ctx, "Applicant Three", "a3@example.com")

	open := fixtures.CreateActiveOffering(ctx, s1.ID, 4)
	fixtures.CreateOffering(ctx, s2.ID, now.Add(24*time.Hour), now.Add(48*time.Hour), 2)

	fixtures.CreateRequest(ctx, a1.ID, open, models.RequestPending)
	fixtures.CreateRequest(ctx, a2.ID, open, models.RequestPending)
	fixtures.CreateRequest(ctx, a3.ID, open, models.RequestApproved)

	// one slot taken
	if _, err := db.Collection("offerings").UpdateByID(ctx, open.ID, bson.M{"$inc": bson.M{"available_slots": -1}}); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}

	counts := metricsstore.FetchWorkflowCounts(ctx, db, now)

	if counts.Sponsors != 2 {
		t.Errorf("Sponsors: got %d, want 2", counts.Sponsors)
	}
	if counts.Applicants != 3 {
		t.Errorf("Applicants: got %d, want 3", counts.Applicants)
	}
	if counts.OpenOfferings != 1 {
		t.Errorf("OpenOfferings: got %d, want 1", counts.OpenOfferings)
	}
	if counts.CommittedSlots != 1 {
		t.Errorf("CommittedSlots: got %d, want 1", counts.CommittedSlots)
	}
	if got := counts.RequestsByStatus[models.RequestPending]; got != 2 {
		t.Errorf("pending: got %d, want 2", got)
	}
	if got := counts.RequestsByStatus[models.RequestApproved]; got != 1 {
		t.Errorf("approved: got %d, want 1", got)
	}
}

func TestFetchWorkflowCounts_CommittedSurvivesShrink(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := fixtures.CreateSponsor(ctx, "S", "s@example.com", 5)
	o := fixtures.CreateActiveOffering(ctx, s.ID, 3)
	statuses := []models.RequestStatus{
		models.RequestApproved,
		models.RequestDocumentPending,
		models.RequestCompleted,
		models.RequestRejected,
		models.RequestPending,
	}
	for i, st := range statuses {
		email := string(rune('a'+i)) + "@example.com"
		a := fixtures.CreateApplicant(ctx, email, email)
		fixtures.CreateRequest(ctx, a.ID, o, st)
	}

	// shrunk to one slot with three commitments in place; available clamps at 0
	if _, err := db.Collection("offerings").UpdateByID(ctx, o.ID, bson.M{"$set": bson.M{"max_slots": 1, "available_slots": 0}}); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}

	counts := metricsstore.FetchWorkflowCounts(ctx, db, time.Now())
	if counts.CommittedSlots != 3 {
		t.Errorf("CommittedSlots: got %d, want 3", counts.CommittedSlots)
	}
}
