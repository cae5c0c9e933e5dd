// Package documents runs the post-approval document exchange of a request.
// An applicant upload moves the request to document_pending; the sponsor
// then accepts it (request completed) or rejects it (request back to
// approved, ready for another upload).
package documents

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	artifactstore "github.com/dalemusser/coordhub/internal/app/store/artifacts"
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

// Policy limits what may be uploaded. Zero values disable a check.
type Policy struct {
	MaxBytes     int64
	ContentTypes []string
}

// DefaultPolicy accepts common document formats up to 25 MiB.
var DefaultPolicy = Policy{
	MaxBytes: 25 << 20,
	ContentTypes: []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
		"image/png",
		"image/jpeg",
	},
}

// Metadata describes a blob the caller already stored elsewhere.
type Metadata struct {
	Name        string
	ContentType string
	Size        int64
	StorageRef  string
}

// Check validates and normalizes m against p.
func (p Policy) Check(m Metadata) (Metadata, error) {
	m.Name = normalize.Text(m.Name)
	m.ContentType = normalize.ContentType(m.ContentType)
	switch {
	case m.Name == "":
		return m, errs.Invalid("document name is required")
	case m.Size <= 0:
		return m, errs.Invalid("document is empty")
	case p.MaxBytes > 0 && m.Size > p.MaxBytes:
		return m, errs.Invalid("document exceeds %d bytes", p.MaxBytes)
	case m.ContentType == "":
		return m, errs.Invalid("content type is required")
	case len(p.ContentTypes) > 0 && !slices.Contains(p.ContentTypes, m.ContentType):
		return m, errs.Invalid("content type %q is not allowed", m.ContentType)
	}
	return m, nil
}

// Review is the document workflow service.
type Review struct {
	requests  *requeststore.Store
	artifacts *artifactstore.Store

	policy Policy
	tx     txn.Runner
	audit  *auditlog.Logger
	pub    notify.Publisher
	log    *zap.Logger
}

type Option func(*Review)

func WithPolicy(p Policy) Option {
	return func(r *Review) { r.policy = p }
}

func WithPublisher(p notify.Publisher) Option {
	return func(r *Review) { r.pub = p }
}

func WithAudit(l *auditlog.Logger) Option {
	return func(r *Review) { r.audit = l }
}

func New(db *mongo.Database, tx txn.Runner, logger *zap.Logger, opts ...Option) *Review {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Review{
		requests:  requeststore.New(db),
		artifacts: artifactstore.New(db),
		policy:    DefaultPolicy,
		tx:        tx,
		pub:       notify.Nop{},
		log:       logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// party reports whether uploaderID acts as uploaderRole on req.
func party(req models.CoordinationRequest, uploaderID primitive.ObjectID, role string) bool {
	switch role {
	case models.RoleApplicant:
		return req.ApplicantID == uploaderID
	case models.RoleSponsor:
		return req.SponsorID == uploaderID
	}
	return false
}

// Upload records a document for a request. The applicant uploads while the
// request is approved, which moves it to document_pending. The sponsor may
// add a counter-document while it is document_pending; that leaves the
// request status unchanged.
func (rv *Review) Upload(ctx context.Context, requestID, uploaderID primitive.ObjectID, uploaderRole string, meta Metadata) (models.DocumentArtifact, error) {
	ev := audit.Event{ActorID: auditlog.Ref(uploaderID), RequestID: auditlog.Ref(requestID)}
	role := normalize.Role(uploaderRole)

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), rv.log, audit.OpDocumentUpload)
	defer cancel()

	var (
		created models.DocumentArtifact
		req     models.CoordinationRequest
	)
	err := rv.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		if req, err = rv.requests.Get(ctx, requestID); err != nil {
			return err
		}
		ev.OfferingID = auditlog.Ref(req.OfferingID)
		if !party(req, uploaderID, role) {
			return errs.ErrNotAuthorized
		}
		m, err := rv.policy.Check(meta)
		if err != nil {
			return err
		}

		var ok bool
		switch role {
		case models.RoleApplicant:
			if req.Status != models.RequestApproved {
				return errs.ErrInvalidState
			}
			ok, err = rv.requests.Transition(ctx, req.ID, models.RequestApproved, models.RequestDocumentPending, "")
		default:
			if req.Status != models.RequestDocumentPending {
				return errs.ErrInvalidState
			}
			// Written only to conflict with a concurrent review of this request.
			ok, err = rv.requests.Touch(ctx, req.ID, models.RequestDocumentPending)
		}
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrInvalidState
		}

		created, err = rv.artifacts.Create(ctx, models.DocumentArtifact{
			ID:           primitive.NewObjectID(),
			RequestID:    req.ID,
			UploaderID:   uploaderID,
			UploaderRole: role,
			Name:         m.Name,
			ContentType:  m.ContentType,
			Size:         m.Size,
			StorageRef:   m.StorageRef,
			Status:       models.ArtifactPendingReview,
			CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		})
		return err
	})
	if err != nil {
		return models.DocumentArtifact{}, rv.audit.Finish(ctx, audit.OpDocumentUpload, err, ev)
	}

	ev.ArtifactID = auditlog.Ref(created.ID)
	ev.Details = map[string]string{"uploader_role": role, "size": strconv.FormatInt(created.Size, 10)}
	_ = rv.audit.Finish(ctx, audit.OpDocumentUpload, nil, ev)

	to := req.SponsorID
	if role == models.RoleSponsor {
		to = req.ApplicantID
	}
	rv.pub.Publish(artifactEvent(notify.EventDocumentUploaded, created, req, to))
	return created, nil
}

// Accept completes a request by accepting the applicant's pending document.
// The sponsor's own documents still pending review on the request are
// accepted with it.
func (rv *Review) Accept(ctx context.Context, artifactID, sponsorID primitive.ObjectID) (models.DocumentArtifact, error) {
	return rv.decide(ctx, audit.OpDocumentAccept, artifactID, sponsorID, models.ArtifactAccepted, models.RequestCompleted, "")
}

// Reject turns down the applicant's pending document with a reason and
// reopens the upload step.
func (rv *Review) Reject(ctx context.Context, artifactID, sponsorID primitive.ObjectID, reason string) (models.DocumentArtifact, error) {
	reason = normalize.Text(reason)
	if reason == "" {
		ev := audit.Event{ActorID: auditlog.Ref(sponsorID), ArtifactID: auditlog.Ref(artifactID)}
		return models.DocumentArtifact{}, rv.audit.Finish(ctx, audit.OpDocumentReject, errs.Invalid("a rejection reason is required"), ev)
	}
	return rv.decide(ctx, audit.OpDocumentReject, artifactID, sponsorID, models.ArtifactRejected, models.RequestApproved, reason)
}

// decide applies a review outcome to the artifact and its request in one
// transaction.
func (rv *Review) decide(ctx context.Context, op string, artifactID, sponsorID primitive.ObjectID,
	to models.ArtifactStatus, next models.RequestStatus, reason string) (models.DocumentArtifact, error) {

	ev := audit.Event{ActorID: auditlog.Ref(sponsorID), ArtifactID: auditlog.Ref(artifactID)}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), rv.log, op)
	defer cancel()

	var (
		out models.DocumentArtifact
		req models.CoordinationRequest
	)
	err := rv.tx.Do(ctx, func(ctx context.Context) error {
		a, err := rv.artifacts.Get(ctx, artifactID)
		if err != nil {
			return err
		}
		ev.RequestID = auditlog.Ref(a.RequestID)
		if req, err = rv.requests.Get(ctx, a.RequestID); err != nil {
			return err
		}
		ev.OfferingID = auditlog.Ref(req.OfferingID)
		if req.SponsorID != sponsorID {
			return errs.ErrNotTargetSponsor
		}
		if a.Status != models.ArtifactPendingReview ||
			a.UploaderRole != models.RoleApplicant ||
			req.Status != models.RequestDocumentPending {
			return errs.ErrInvalidState
		}

		ok, err := rv.artifacts.Review(ctx, a.ID, to, sponsorID, reason)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrInvalidState
		}
		ok, err = rv.requests.Transition(ctx, req.ID, models.RequestDocumentPending, next, "")
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrInvalidState
		}
		// A completed request has nothing left to review.
		if next == models.RequestCompleted {
			if _, err := rv.artifacts.CloseCounterDocuments(ctx, req.ID, sponsorID); err != nil {
				return err
			}
		}

		out, err = rv.artifacts.Get(ctx, a.ID)
		return err
	})
	if err != nil {
		return models.DocumentArtifact{}, rv.audit.Finish(ctx, op, err, ev)
	}

	_ = rv.audit.Finish(ctx, op, nil, ev)
	typ := notify.EventDocumentAccepted
	if to == models.ArtifactRejected {
		typ = notify.EventDocumentRejected
	}
	e := artifactEvent(typ, out, req, req.ApplicantID)
	if reason != "" {
		e = e.With("reason", reason)
	}
	rv.pub.Publish(e)
	return out, nil
}

// ListForRequest returns a request's documents, oldest first. Only the
// request's applicant and sponsor may list them.
func (rv *Review) ListForRequest(ctx context.Context, requestID, callerID primitive.ObjectID) ([]models.DocumentArtifact, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), rv.log, "document_list")
	defer cancel()

	req, err := rv.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if callerID != req.ApplicantID && callerID != req.SponsorID {
		return nil, errs.ErrNotAuthorized
	}
	return rv.artifacts.ListByRequest(ctx, requestID)
}

func artifactEvent(typ string, a models.DocumentArtifact, req models.CoordinationRequest, to primitive.ObjectID) notify.Event {
	return notify.NewEvent(typ, to).
		With("artifact_id", a.ID.Hex()).
		With("request_id", req.ID.Hex()).
		With("offering_id", req.OfferingID.Hex())
}
