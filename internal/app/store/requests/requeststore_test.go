package requeststore_test

import (
	"errors"
	"testing"
	"time"

	requeststore "github.com/dalemusser/coordhub/internal/app/store/requests"
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"github.com/dalemusser/coordhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newRequest(applicant primitive.ObjectID, o models.Offering) models.CoordinationRequest {
	now := time.Now().UTC()
	return models.CoordinationRequest{
		ApplicantID: applicant,
		SponsorID:   o.SponsorID,
		OfferingID:  o.ID,
		Topic:       "Thesis supervision",
		Status:      models.RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := requeststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sponsor := fixtures.CreateSponsor(ctx, "S", "s@example.com", 2)
	app := fixtures.CreateApplicant(ctx, "A", "a@example.com")
	o := fixtures.CreateActiveOffering(ctx, sponsor.ID, 2)

	r, err := store.Create(ctx, newRequest(app.ID, o))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if r.ID.IsZero() {
		t.Error("expected ID to be generated")
	}
	if _, err := store.Create(ctx, newRequest(app.ID, o)); !errors.Is(err, errs.ErrDuplicateRequest) {
		t.Errorf("second Create: got %v, want ErrDuplicateRequest", err)
	}

	exists, err := store.Exists(ctx, app.ID, o.ID)
	if err != nil || !exists {
		t.Errorf("Exists: got %v, %v", exists, err)
	}
	exists, _ = store.Exists(ctx, primitive.NewObjectID(), o.ID)
	if exists {
		t.Error("Exists for another applicant should be false")
	}
}

func TestStore_Transition(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := requeststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sponsor := fixtures.CreateSponsor(ctx, "S", "s@example.com", 2)
	app := fixtures.CreateApplicant(ctx, "A", "a@example.com")
	o := fixtures.CreateActiveOffering(ctx, sponsor.ID, 2)
	r := fixtures.CreateRequest(ctx, app.ID, o, models.RequestPending)

	ok, err := store.Transition(ctx, r.ID, models.RequestPending, models.RequestRejected, "not this term")
	if err != nil || !ok {
		t.Fatalf("Transition: got %v, %v", ok, err)
	}
	got, _ := store.Get(ctx, r.ID)
	if got.Status != models.RequestRejected || got.RejectionReason != "not this term" {
		t.Errorf("got status %q reason %q", got.Status, got.RejectionReason)
	}
	if got.DecidedAt == nil {
		t.Error("expected DecidedAt to be set on a decision")
	}

	// from no longer matches
	ok, err = store.Transition(ctx, r.ID, models.RequestPending, models.RequestApproved, "")
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if ok {
		t.Error("expected stale transition to report false")
	}
	if got, _ = store.Get(ctx, r.ID); got.Status != models.RequestRejected {
		t.Errorf("stale transition changed status to %q", got.Status)
	}

	if _, err := store.Get(ctx, primitive.NewObjectID()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get missing: got %v, want ErrNotFound", err)
	}
}

func TestStore_RejectPendingForApplicant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := requeststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	app := fixtures.CreateApplicant(ctx, "A", "a@example.com")
	bystander := fixtures.CreateApplicant(ctx, "B", "b@example.com")

	var offerings []models.Offering
	for i, email := range []string{"s1@example.com", "s2@example.com", "s3@example.com", "s4@example.com"} {
		s := fixtures.CreateSponsor(ctx, email, email, 1)
		offerings = append(offerings, fixtures.CreateActiveOffering(ctx, s.ID, 1+i))
	}
	keep := fixtures.CreateRequest(ctx, app.ID, offerings[0], models.RequestApproved)
	p1 := fixtures.CreateRequest(ctx, app.ID, offerings[1], models.RequestPending)
	p2 := fixtures.CreateRequest(ctx, app.ID, offerings[2], models.RequestPending)
	done := fixtures.CreateRequest(ctx, app.ID, offerings[3], models.RequestRejected)
	other := fixtures.CreateRequest(ctx, bystander.ID, offerings[1], models.RequestPending)

	n, err := store.RejectPendingForApplicant(ctx, app.ID, keep.ID, models.AutoRejectReason)
	if err != nil {
		t.Fatalf("RejectPendingForApplicant failed: %v", err)
	}
	if n != 2 {
		t.Errorf("rejected %d, want 2", n)
	}

	want := map[primitive.ObjectID]models.RequestStatus{
		keep.ID:  models.RequestApproved,
		p1.ID:    models.RequestRejected,
		p2.ID:    models.RequestRejected,
		done.ID:  models.RequestRejected,
		other.ID: models.RequestPending,
	}
	for id, status := range want {
		got, _ := store.Get(ctx, id)
		if got.Status != status {
			t.Errorf("%s: status %q, want %q", id.Hex(), got.Status, status)
		}
	}
	got, _ := store.Get(ctx, p1.ID)
	if got.RejectionReason != models.AutoRejectReason {
		t.Errorf("RejectionReason: got %q", got.RejectionReason)
	}
}

func TestStore_CountsAndDeletes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := requeststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sponsor := fixtures.CreateSponsor(ctx, "S", "s@example.com", 5)
	o := fixtures.CreateActiveOffering(ctx, sponsor.ID, 5)

	statuses := []models.RequestStatus{
		models.RequestPending,
		models.RequestRejected,
		models.RequestApproved,
		models.RequestDocumentPending,
		models.RequestCompleted,
	}
	byStatus := map[models.RequestStatus]models.CoordinationRequest{}
	for i, st := range statuses {
		a := fixtures.CreateApplicant(ctx, "A", string(rune('a'+i))+"@example.com")
		byStatus[st] = fixtures.CreateRequest(ctx, a.ID, o, st)
	}

	n, err := store.CountCommittedForOffering(ctx, o.ID)
	if err != nil || n != 3 {
		t.Errorf("CountCommittedForOffering: got %d, %v; want 3", n, err)
	}
	n, _ = store.CountCommittedForApplicant(ctx, byStatus[models.RequestCompleted].ApplicantID)
	if n != 1 {
		t.Errorf("CountCommittedForApplicant: got %d, want 1", n)
	}

	ok, err := store.DeletePending(ctx, byStatus[models.RequestApproved].ID)
	if err != nil || ok {
		t.Errorf("DeletePending(approved): got %v, %v; want false", ok, err)
	}
	ok, err = store.DeletePending(ctx, byStatus[models.RequestPending].ID)
	if err != nil || !ok {
		t.Errorf("DeletePending(pending): got %v, %v; want true", ok, err)
	}

	// re-add a pending one so the withdrawal has something to reject
	extra := fixtures.CreateApplicant(ctx, "X", "x@example.com")
	withdrawn := fixtures.CreateRequest(ctx, extra.ID, o, models.RequestPending)

	changed, err := store.WithdrawPendingForOffering(ctx, o.ID, models.WithdrawnReason)
	if err != nil || changed != 1 {
		t.Errorf("WithdrawPendingForOffering: got %d, %v; want 1", changed, err)
	}
	got, err := store.Get(ctx, withdrawn.ID)
	if err != nil {
		t.Fatalf("withdrawn request was deleted: %v", err)
	}
	if got.Status != models.RequestRejected || got.RejectionReason != models.WithdrawnReason || got.DecidedAt == nil {
		t.Errorf("withdrawn request: %+v", got)
	}
	kept, _ := store.Get(ctx, byStatus[models.RequestRejected].ID)
	if kept.Status != models.RequestRejected || kept.RejectionReason == models.WithdrawnReason {
		t.Errorf("already rejected request was rewritten: %+v", kept)
	}
	list, _ := store.ListForOffering(ctx, o.ID, "")
	if len(list) != 5 {
		t.Errorf("requests after withdrawal: got %d, want 5", len(list))
	}
	rejected, _ := store.ListForOffering(ctx, o.ID, models.RequestRejected)
	if len(rejected) != 2 {
		t.Errorf("rejected after withdrawal: got %d, want 2", len(rejected))
	}
}

func TestStore_Lists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := requeststore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	app := fixtures.CreateApplicant(ctx, "A", "a@example.com")
	s1 := fixtures.CreateSponsor(ctx, "S1", "s1@example.com", 5)
	s2 := fixtures.CreateSponsor(ctx, "S2", "s2@example.com", 5)
	o1 := fixtures.CreateActiveOffering(ctx, s1.ID, 5)
	o2 := fixtures.CreateActiveOffering(ctx, s2.ID, 5)

	first := fixtures.CreateRequest(ctx, app.ID, o1, models.RequestPending)
	time.Sleep(5 * time.Millisecond)
	second := fixtures.CreateRequest(ctx, app.ID, o2, models.RequestRejected)

	list, err := store.ListForApplicant(ctx, app.ID, "")
	if err != nil {
		t.Fatalf("ListForApplicant failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("expected newest first, got %d items", len(list))
	}
	if list, _ = store.ListForApplicant(ctx, app.ID, models.RequestPending); len(list) != 1 {
		t.Errorf("pending filter: got %d, want 1", len(list))
	}
	if list, _ = store.ListForSponsor(ctx, s2.ID, ""); len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("ListForSponsor: got %d items", len(list))
	}
	if ok, _ := store.Touch(ctx, first.ID, models.RequestApproved); ok {
		t.Error("Touch with the wrong status should report false")
	}
	if ok, _ := store.Touch(ctx, first.ID, models.RequestPending); !ok {
		t.Error("Touch with the current status should report true")
	}
}
