// Package requests runs the coordination request state machine.
//
//	pending -> approved | rejected
//	approved -> document_pending            (documents package)
//	document_pending -> approved | completed (documents package)
//
// Every operation re-reads the documents it depends on inside its
// transaction and writes them with conditional updates. A guard that passes
// on the pre-read but loses a race at write time surfaces as the same typed
// error the pre-read would have returned.
package requests

import (
	"context"
	"strconv"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	actorstore "github.com/dalemusser/coordhub/internal/app/store/actors"
	requeststore "github.com/dalemusser/coordhub/internal/app/store/requests"
	"github.com/dalemusser/coordhub/internal/app/system/auditlog"
	"github.com/dalemusser/coordhub/internal/app/system/metrics"
	"github.com/dalemusser/coordhub/internal/app/system/normalize"
	"github.com/dalemusser/coordhub/internal/app/system/notify"
	"github.com/dalemusser/coordhub/internal/app/system/timeouts"
	"github.com/dalemusser/coordhub/internal/app/system/txn"
	"github.com/dalemusser/coordhub/internal/app/workflow/offerings"
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Engine is the request workflow service.
type Engine struct {
	actors    *actorstore.Store
	requests  *requeststore.Store
	offerings *offerings.Manager

	tx    txn.Runner
	audit *auditlog.Logger
	pub   notify.Publisher
	log   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where events go after a successful commit.
func WithPublisher(p notify.Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithAudit sets the outcome recorder.
func WithAudit(l *auditlog.Logger) Option {
	return func(e *Engine) { e.audit = l }
}

// New builds an engine. Slot bookkeeping and the clock come from mgr.
func New(db *mongo.Database, tx txn.Runner, mgr *offerings.Manager, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		actors:    actorstore.New(db),
		requests:  requeststore.New(db),
		offerings: mgr,
		tx:        tx,
		pub:       notify.Nop{},
		log:       logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Submit creates a pending request from applicantID against offeringID.
// No slot is reserved until approval.
func (e *Engine) Submit(ctx context.Context, applicantID, offeringID primitive.ObjectID, topic, message string) (models.CoordinationRequest, error) {
	ev := audit.Event{ActorID: auditlog.Ref(applicantID), OfferingID: auditlog.Ref(offeringID)}

	topic = normalize.Text(topic)
	if topic == "" {
		return models.CoordinationRequest{}, e.audit.Finish(ctx, audit.OpRequestSubmit, errs.Invalid("topic is required"), ev)
	}
	message = normalize.Text(message)

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), e.log, audit.OpRequestSubmit)
	defer cancel()

	var created models.CoordinationRequest
	err := e.tx.Do(ctx, func(ctx context.Context) error {
		// Serializes against an approval landing on this applicant.
		if err := e.actors.Lock(ctx, applicantID); err != nil {
			return err
		}
		applicant, err := e.actors.Get(ctx, applicantID)
		if err != nil {
			return err
		}
		if !applicant.IsApplicant() {
			return errs.ErrNotAuthorized
		}
		if applicant.HasAcceptedSponsor() {
			return errs.ErrAlreadyCommitted
		}

		o, err := e.offerings.Get(ctx, offeringID)
		if err != nil {
			return err
		}
		if o.Status != models.OfferingActive {
			return errs.ErrOfferingNotActive
		}
		// Writes the offering so a concurrent Delete or last-slot approval
		// conflicts with this transaction.
		if err := e.offerings.Claim(ctx, offeringID); err != nil {
			return err
		}

		dup, err := e.requests.Exists(ctx, applicantID, offeringID)
		if err != nil {
			return err
		}
		if dup {
			return errs.ErrDuplicateRequest
		}

		now := e.offerings.Now()
		created, err = e.requests.Create(ctx, models.CoordinationRequest{
			ID:          primitive.NewObjectID(),
			ApplicantID: applicantID,
			SponsorID:   o.SponsorID,
			OfferingID:  offeringID,
			Topic:       topic,
			Message:     message,
			Status:      models.RequestPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	if err != nil {
		return models.CoordinationRequest{}, e.audit.Finish(ctx, audit.OpRequestSubmit, err, ev)
	}

	ev.RequestID = auditlog.Ref(created.ID)
	_ = e.audit.Finish(ctx, audit.OpRequestSubmit, nil, ev)
	e.pub.Publish(requestEvent(notify.EventRequestSubmitted, created, created.SponsorID))
	return created, nil
}

// Approve accepts a pending request on behalf of its sponsor. In one
// transaction it marks the request approved, links the applicant to the
// sponsor, counts the commitment, takes an offering slot and rejects every
// other pending request of the applicant.
func (e *Engine) Approve(ctx context.Context, requestID, sponsorID primitive.ObjectID) (models.CoordinationRequest, error) {
	ev := audit.Event{ActorID: auditlog.Ref(sponsorID), RequestID: auditlog.Ref(requestID)}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), e.log, audit.OpRequestApprove)
	defer cancel()

	var (
		approved models.CoordinationRequest
		siblings []models.CoordinationRequest
		rejected int64
	)
	err := e.tx.Do(ctx, func(ctx context.Context) error {
		// The callback may re-run on a write conflict.
		siblings, rejected = nil, 0

		r, err := e.requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		ev.OfferingID = auditlog.Ref(r.OfferingID)
		if r.SponsorID != sponsorID {
			return errs.ErrNotTargetSponsor
		}
		if r.Status == models.RequestRejected && r.RejectionReason == models.AutoRejectReason {
			// Another sponsor's approval already took this applicant.
			return errs.ErrAlreadyCommitted
		}
		if r.Status != models.RequestPending {
			return errs.ErrInvalidState
		}

		applicant, err := e.actors.Get(ctx, r.ApplicantID)
		if err != nil {
			return err
		}
		if applicant.HasAcceptedSponsor() {
			return errs.ErrAlreadyCommitted
		}
		sponsor, err := e.actors.Get(ctx, sponsorID)
		if err != nil {
			return err
		}
		if sponsor.RemainingCapacity() <= 0 {
			return errs.ErrCapacityExceeded
		}

		pending, err := e.requests.ListForApplicant(ctx, r.ApplicantID, models.RequestPending)
		if err != nil {
			return err
		}
		for _, p := range pending {
			if p.ID != r.ID {
				siblings = append(siblings, p)
			}
		}

		ok, err := e.requests.Transition(ctx, r.ID, models.RequestPending, models.RequestApproved, "")
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrInvalidState
		}
		if err := e.actors.SetAcceptedSponsor(ctx, r.ApplicantID, &sponsorID); err != nil {
			return err
		}
		if err := e.actors.IncrementCommitted(ctx, sponsorID, 1); err != nil {
			return err
		}
		if err := e.offerings.ReserveSlot(ctx, r.OfferingID); err != nil {
			return err
		}
		if rejected, err = e.requests.RejectPendingForApplicant(ctx, r.ApplicantID, r.ID, models.AutoRejectReason); err != nil {
			return err
		}

		approved, err = e.requests.Get(ctx, r.ID)
		return err
	})
	if err != nil {
		return models.CoordinationRequest{}, e.audit.Finish(ctx, audit.OpRequestApprove, err, ev)
	}

	metrics.CascadeRejections.Add(float64(rejected))
	ev.Details = map[string]string{"siblings_rejected": strconv.FormatInt(rejected, 10)}
	_ = e.audit.Finish(ctx, audit.OpRequestApprove, nil, ev)

	e.pub.Publish(requestEvent(notify.EventRequestApproved, approved, approved.ApplicantID))
	for _, s := range siblings {
		e.pub.Publish(requestEvent(notify.EventRequestAutoReject, s, s.ApplicantID, s.SponsorID).
			With("reason", models.AutoRejectReason))
	}
	return approved, nil
}

// Reject declines a pending request with a reason. Counters are untouched.
func (e *Engine) Reject(ctx context.Context, requestID, sponsorID primitive.ObjectID, reason string) (models.CoordinationRequest, error) {
	ev := audit.Event{ActorID: auditlog.Ref(sponsorID), RequestID: auditlog.Ref(requestID)}

	reason = normalize.Text(reason)
	if reason == "" {
		return models.CoordinationRequest{}, e.audit.Finish(ctx, audit.OpRequestReject, errs.Invalid("a rejection reason is required"), ev)
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), e.log, audit.OpRequestReject)
	defer cancel()

	var out models.CoordinationRequest
	err := e.tx.Do(ctx, func(ctx context.Context) error {
		r, err := e.requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		ev.OfferingID = auditlog.Ref(r.OfferingID)
		if r.SponsorID != sponsorID {
			return errs.ErrNotTargetSponsor
		}
		if r.Status != models.RequestPending {
			return errs.ErrInvalidState
		}
		ok, err := e.requests.Transition(ctx, r.ID, models.RequestPending, models.RequestRejected, reason)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrInvalidState
		}
		out, err = e.requests.Get(ctx, r.ID)
		return err
	})
	if err != nil {
		return models.CoordinationRequest{}, e.audit.Finish(ctx, audit.OpRequestReject, err, ev)
	}

	_ = e.audit.Finish(ctx, audit.OpRequestReject, nil, ev)
	e.pub.Publish(requestEvent(notify.EventRequestRejected, out, out.ApplicantID).With("reason", reason))
	return out, nil
}

// Cancel deletes a request that is still pending. Only its applicant may
// cancel it.
func (e *Engine) Cancel(ctx context.Context, requestID, applicantID primitive.ObjectID) error {
	ev := audit.Event{ActorID: auditlog.Ref(applicantID), RequestID: auditlog.Ref(requestID)}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), e.log, audit.OpRequestCancel)
	defer cancel()

	var gone models.CoordinationRequest
	err := e.tx.Do(ctx, func(ctx context.Context) error {
		r, err := e.requests.Get(ctx, requestID)
		if err != nil {
			return err
		}
		ev.OfferingID = auditlog.Ref(r.OfferingID)
		if r.Status != models.RequestPending {
			return errs.ErrInvalidState
		}
		if r.ApplicantID != applicantID {
			return errs.ErrNotOwner
		}
		ok, err := e.requests.DeletePending(ctx, r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrInvalidState
		}
		gone = r
		return nil
	})
	if err != nil {
		return e.audit.Finish(ctx, audit.OpRequestCancel, err, ev)
	}

	_ = e.audit.Finish(ctx, audit.OpRequestCancel, nil, ev)
	e.pub.Publish(requestEvent(notify.EventRequestCancelled, gone, gone.SponsorID))
	return nil
}

// Get returns a request by id.
func (e *Engine) Get(ctx context.Context, requestID primitive.ObjectID) (models.CoordinationRequest, error) {
	return e.requests.Get(ctx, requestID)
}

// ListForApplicant returns an applicant's requests, newest first. An empty
// status returns every request.
func (e *Engine) ListForApplicant(ctx context.Context, applicantID primitive.ObjectID, status models.RequestStatus) ([]models.CoordinationRequest, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), e.log, "request_list_applicant")
	defer cancel()
	return e.requests.ListForApplicant(ctx, applicantID, status)
}

// ListForSponsor returns the requests addressed to a sponsor, newest first.
func (e *Engine) ListForSponsor(ctx context.Context, sponsorID primitive.ObjectID, status models.RequestStatus) ([]models.CoordinationRequest, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), e.log, "request_list_sponsor")
	defer cancel()
	return e.requests.ListForSponsor(ctx, sponsorID, status)
}

// ListForOffering returns the requests on one offering, newest first. Only
// the offering's sponsor may list them.
func (e *Engine) ListForOffering(ctx context.Context, offeringID, sponsorID primitive.ObjectID, status models.RequestStatus) ([]models.CoordinationRequest, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), e.log, "request_list_offering")
	defer cancel()

	o, err := e.offerings.Get(ctx, offeringID)
	if err != nil {
		return nil, err
	}
	if o.SponsorID != sponsorID {
		return nil, errs.ErrNotOwner
	}
	return e.requests.ListForOffering(ctx, offeringID, status)
}

func requestEvent(typ string, r models.CoordinationRequest, to ...primitive.ObjectID) notify.Event {
	return notify.NewEvent(typ, to...).
		With("request_id", r.ID.Hex()).
		With("offering_id", r.OfferingID.Hex()).
		With("applicant_id", r.ApplicantID.Hex()).
		With("sponsor_id", r.SponsorID.Hex())
}
