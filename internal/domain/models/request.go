// internal/domain/models/request.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus is the state of a coordination request.
//
//	pending -> approved | rejected
//	approved -> document_pending            (applicant uploads a document)
//	document_pending -> approved | completed (document rejected | accepted)
type RequestStatus string

const (
	RequestPending         RequestStatus = "pending"
	RequestApproved        RequestStatus = "approved"
	RequestRejected        RequestStatus = "rejected"
	RequestDocumentPending RequestStatus = "document_pending"
	RequestCompleted       RequestStatus = "completed"
)

// CommittedRequestStatuses hold a sponsor commitment. An applicant has at
// most one request in any of these.
var CommittedRequestStatuses = []RequestStatus{
	RequestApproved,
	RequestDocumentPending,
	RequestCompleted,
}

// IsCommitted reports whether s holds a sponsor commitment.
func (s RequestStatus) IsCommitted() bool {
	for _, c := range CommittedRequestStatuses {
		if s == c {
			return true
		}
	}
	return false
}

// AutoRejectReason is recorded on sibling requests rejected by an approval.
const AutoRejectReason = "applicant accepted by another sponsor"

// WithdrawnReason is recorded on pending requests whose offering was deleted.
const WithdrawnReason = "offering withdrawn"

// CoordinationRequest links an applicant to a sponsor through an offering.
// Exactly one document per (applicant_id, offering_id).
type CoordinationRequest struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ApplicantID primitive.ObjectID `bson:"applicant_id" json:"applicant_id"`
	SponsorID   primitive.ObjectID `bson:"sponsor_id" json:"sponsor_id"`
	OfferingID  primitive.ObjectID `bson:"offering_id" json:"offering_id"`

	Topic   string `bson:"topic" json:"topic"`
	Message string `bson:"message,omitempty" json:"message,omitempty"`

	Status          RequestStatus `bson:"status" json:"status"`
	RejectionReason string        `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	DecidedAt *time.Time `bson:"decided_at,omitempty" json:"decided_at,omitempty"`
}
