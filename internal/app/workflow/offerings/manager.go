// Package offerings owns the lifecycle and slot accounting of offerings.
//
// Slot counters change only through ReserveSlot and ReleaseSlot, which the
// request engine calls inside its own transactions, and through Update when
// max_slots changes. Each of those is a single conditional document update,
// so concurrent callers never lose a change.
package offerings

import (
	"context"
	"strconv"
	"time"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	actorstore "github.com/dalemusser/coordhub/internal/app/store/actors"
	offeringstore "github.com/dalemusser/coordhub/internal/app/store/offerings"
	requeststore "github.com/dalemusser/coordhub/internal/app/store/requests"
	"github.com/dalemusser/coordhub/internal/app/system/auditlog"
	"github.com/dalemusser/coordhub/internal/app/system/normalize"
	"github.com/dalemusser/coordhub/internal/app/system/notify"
	"github.com/dalemusser/coordhub/internal/app/system/timeouts"
	"github.com/dalemusser/coordhub/internal/app/system/txn"
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Manager is the offering service.
type Manager struct {
	actors    *actorstore.Store
	offerings *offeringstore.Store
	requests  *requeststore.Store

	tx    txn.Runner
	audit *auditlog.Logger
	pub   notify.Publisher
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now. Tests use it to pin status computation.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithPublisher sets where events go after a successful commit.
func WithPublisher(p notify.Publisher) Option {
	return func(m *Manager) { m.pub = p }
}

// WithAudit sets the outcome recorder.
func WithAudit(l *auditlog.Logger) Option {
	return func(m *Manager) { m.audit = l }
}

func New(db *mongo.Database, tx txn.Runner, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		actors:    actorstore.New(db),
		offerings: offeringstore.New(db),
		requests:  requeststore.New(db),
		tx:        tx,
		pub:       notify.Nop{},
		log:       logger,
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Now returns the manager's current time in UTC.
func (m *Manager) Now() time.Time { return m.now().UTC() }

// RecomputeStatus maps an offering's window and now to its status.
func RecomputeStatus(o models.Offering, now time.Time) models.OfferingStatus {
	return models.OfferingStatusAt(o.WindowStart, o.WindowEnd, now)
}

func (m *Manager) fresh(o models.Offering) models.Offering {
	o.Status = RecomputeStatus(o, m.Now())
	return o
}

// Draft is the input to Create.
type Draft struct {
	Title       string
	Description string
	WindowStart time.Time
	WindowEnd   time.Time
	MaxSlots    int
}

// Build validates and normalizes a draft into a new offering record.
// It performs no I/O.
func Build(sponsorID primitive.ObjectID, d Draft, now time.Time) (models.Offering, error) {
	start := d.WindowStart.UTC().Truncate(time.Millisecond)
	end := d.WindowEnd.UTC().Truncate(time.Millisecond)
	if !end.After(start) {
		return models.Offering{}, errs.ErrInvalidWindow
	}
	title := normalize.Text(d.Title)
	if title == "" {
		return models.Offering{}, errs.Invalid("title is required")
	}
	if d.MaxSlots < 1 {
		return models.Offering{}, errs.Invalid("max slots must be at least 1")
	}

	now = now.UTC()
	return models.Offering{
		ID:             primitive.NewObjectID(),
		SponsorID:      sponsorID,
		Title:          title,
		TitleCI:        normalize.Fold(title),
		Description:    normalize.Text(d.Description),
		WindowStart:    start,
		WindowEnd:      end,
		MaxSlots:       d.MaxSlots,
		AvailableSlots: d.MaxSlots,
		Status:         models.OfferingStatusAt(start, end, now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// requireSponsor loads the caller and checks the role.
func (m *Manager) requireSponsor(ctx context.Context, id primitive.ObjectID) error {
	a, err := m.actors.Get(ctx, id)
	if err != nil {
		return err
	}
	if !a.IsSponsor() {
		return errs.ErrNotAuthorized
	}
	return nil
}

// Create persists a new offering for sponsorID. The sponsor's actor record
// is locked for the duration so concurrent creates cannot both pass the
// overlap check.
func (m *Manager) Create(ctx context.Context, sponsorID primitive.ObjectID, d Draft) (models.Offering, error) {
	ev := audit.Event{ActorID: auditlog.Ref(sponsorID)}

	o, err := Build(sponsorID, d, m.Now())
	if err != nil {
		return models.Offering{}, m.audit.Finish(ctx, audit.OpOfferingCreate, err, ev)
	}
	ev.OfferingID = auditlog.Ref(o.ID)

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), m.log, audit.OpOfferingCreate)
	defer cancel()

	var created models.Offering
	err = m.tx.Do(ctx, func(ctx context.Context) error {
		if err := m.requireSponsor(ctx, sponsorID); err != nil {
			return err
		}
		if err := m.actors.Lock(ctx, sponsorID); err != nil {
			return err
		}
		overlap, err := m.offerings.HasOverlap(ctx, sponsorID, o.WindowStart, o.WindowEnd, nil)
		if err != nil {
			return err
		}
		if overlap {
			return errs.ErrOverlap
		}
		created, err = m.offerings.Create(ctx, o)
		return err
	})
	if err != nil {
		return models.Offering{}, m.audit.Finish(ctx, audit.OpOfferingCreate, err, ev)
	}
	_ = m.audit.Finish(ctx, audit.OpOfferingCreate, nil, ev)
	return created, nil
}

// Patch lists the fields Update may change. Nil fields are left alone.
type Patch struct {
	Title       *string
	Description *string
	WindowStart *time.Time
	WindowEnd   *time.Time
	MaxSlots    *int
}

// Update applies p to an offering owned by sponsorID. A max_slots change
// shifts available_slots by the same delta, clamped to [0, new max].
// A window change is validated and re-checked for overlap.
func (m *Manager) Update(ctx context.Context, offeringID, sponsorID primitive.ObjectID, p Patch) (models.Offering, error) {
	ev := audit.Event{ActorID: auditlog.Ref(sponsorID), OfferingID: auditlog.Ref(offeringID)}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), m.log, audit.OpOfferingUpdate)
	defer cancel()

	var updated models.Offering
	err := m.tx.Do(ctx, func(ctx context.Context) error {
		o, err := m.offerings.Get(ctx, offeringID)
		if err != nil {
			return err
		}
		if o.SponsorID != sponsorID {
			return errs.ErrNotOwner
		}

		var ch offeringstore.Changes
		if p.Title != nil {
			title := normalize.Text(*p.Title)
			if title == "" {
				return errs.Invalid("title is required")
			}
			ci := normalize.Fold(title)
			ch.Title, ch.TitleCI = &title, &ci
		}
		if p.Description != nil {
			desc := normalize.Text(*p.Description)
			ch.Description = &desc
		}
		if p.MaxSlots != nil {
			if *p.MaxSlots < 1 {
				return errs.Invalid("max slots must be at least 1")
			}
			ch.MaxSlots = p.MaxSlots
		}

		if p.WindowStart != nil || p.WindowEnd != nil {
			start, end := o.WindowStart, o.WindowEnd
			if p.WindowStart != nil {
				start = p.WindowStart.UTC().Truncate(time.Millisecond)
			}
			if p.WindowEnd != nil {
				end = p.WindowEnd.UTC().Truncate(time.Millisecond)
			}
			if !end.After(start) {
				return errs.ErrInvalidWindow
			}
			if err := m.actors.Lock(ctx, sponsorID); err != nil {
				return err
			}
			overlap, err := m.offerings.HasOverlap(ctx, sponsorID, start, end, &offeringID)
			if err != nil {
				return err
			}
			if overlap {
				return errs.ErrOverlap
			}
			status := models.OfferingStatusAt(start, end, m.Now())
			ch.WindowStart, ch.WindowEnd, ch.Status = &start, &end, &status
		}

		if err := m.offerings.Update(ctx, offeringID, ch); err != nil {
			return err
		}
		updated, err = m.offerings.Get(ctx, offeringID)
		return err
	})
	if err != nil {
		return models.Offering{}, m.audit.Finish(ctx, audit.OpOfferingUpdate, err, ev)
	}
	_ = m.audit.Finish(ctx, audit.OpOfferingUpdate, nil, ev)
	return m.fresh(updated), nil
}

// Delete removes an offering in one transaction. It refuses while any
// request on the offering holds a commitment. Pending requests are rejected
// with models.WithdrawnReason; request documents themselves are never
// removed.
func (m *Manager) Delete(ctx context.Context, offeringID, sponsorID primitive.ObjectID) error {
	ev := audit.Event{ActorID: auditlog.Ref(sponsorID), OfferingID: auditlog.Ref(offeringID)}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), m.log, audit.OpOfferingDelete)
	defer cancel()

	var (
		pending   []models.CoordinationRequest
		withdrawn int64
	)
	err := m.tx.Do(ctx, func(ctx context.Context) error {
		pending, withdrawn = nil, 0

		o, err := m.offerings.Get(ctx, offeringID)
		if err != nil {
			return err
		}
		if o.SponsorID != sponsorID {
			return errs.ErrNotOwner
		}
		n, err := m.requests.CountCommittedForOffering(ctx, offeringID)
		if err != nil {
			return err
		}
		if n > 0 {
			return errs.ErrHasCommittedRequests
		}
		if pending, err = m.requests.ListForOffering(ctx, offeringID, models.RequestPending); err != nil {
			return err
		}
		if withdrawn, err = m.requests.WithdrawPendingForOffering(ctx, offeringID, models.WithdrawnReason); err != nil {
			return err
		}
		return m.offerings.Delete(ctx, offeringID)
	})
	if err != nil {
		return m.audit.Finish(ctx, audit.OpOfferingDelete, err, ev)
	}

	ev.Details = map[string]string{"requests_withdrawn": strconv.FormatInt(withdrawn, 10)}
	_ = m.audit.Finish(ctx, audit.OpOfferingDelete, nil, ev)
	m.pub.Publish(notify.NewEvent(notify.EventOfferingDeleted, sponsorID).
		With("offering_id", offeringID.Hex()).
		With("requests_withdrawn", strconv.FormatInt(withdrawn, 10)))
	for _, r := range pending {
		m.pub.Publish(notify.NewEvent(notify.EventRequestRejected, r.ApplicantID).
			With("request_id", r.ID.Hex()).
			With("offering_id", offeringID.Hex()).
			With("reason", models.WithdrawnReason))
	}
	return nil
}

// Get returns an offering with its status recomputed.
func (m *Manager) Get(ctx context.Context, offeringID primitive.ObjectID) (models.Offering, error) {
	o, err := m.offerings.Get(ctx, offeringID)
	if err != nil {
		return models.Offering{}, err
	}
	return m.fresh(o), nil
}

// ListBySponsor returns a sponsor's offerings with recomputed statuses.
func (m *Manager) ListBySponsor(ctx context.Context, sponsorID primitive.ObjectID) ([]models.Offering, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), m.log, "offering_list_sponsor")
	defer cancel()

	list, err := m.offerings.ListBySponsor(ctx, sponsorID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = m.fresh(list[i])
	}
	return list, nil
}

// ListOpen returns active offerings that still have a free slot.
func (m *Manager) ListOpen(ctx context.Context) ([]models.Offering, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), m.log, "offering_list_open")
	defer cancel()

	list, err := m.offerings.ListOpen(ctx, m.Now())
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i] = m.fresh(list[i])
	}
	return list, nil
}

// ReserveSlot takes one slot of the offering. Callers pass their
// transaction context.
func (m *Manager) ReserveSlot(ctx context.Context, offeringID primitive.ObjectID) error {
	return m.offerings.ReserveSlot(ctx, offeringID)
}

// Claim writes the offering inside the caller's transaction while it has a
// free slot, returning errs.ErrNoSlots otherwise. Submissions use it so they
// conflict with a concurrent Delete or with the approval taking the last slot.
func (m *Manager) Claim(ctx context.Context, offeringID primitive.ObjectID) error {
	return m.offerings.Claim(ctx, offeringID)
}

// ReleaseSlot returns one slot of the offering. Callers pass their
// transaction context.
func (m *Manager) ReleaseSlot(ctx context.Context, offeringID primitive.ObjectID) error {
	return m.offerings.ReleaseSlot(ctx, offeringID)
}

// RefreshStatuses rewrites stale stored statuses in bulk.
func (m *Manager) RefreshStatuses(ctx context.Context) (int64, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), m.log, "offering_refresh_statuses")
	defer cancel()
	return m.offerings.RefreshStatuses(ctx, m.Now())
}
