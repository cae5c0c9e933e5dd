// internal/domain/models/artifact.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ArtifactStatus is the review state of an uploaded document.
type ArtifactStatus string

const (
	ArtifactPendingReview ArtifactStatus = "pending_review"
	ArtifactAccepted      ArtifactStatus = "accepted"
	ArtifactRejected      ArtifactStatus = "rejected"
)

// DocumentArtifact records metadata about a document uploaded for a request.
// The bytes live in external storage; StorageRef is the opaque handle the
// uploader received from it.
type DocumentArtifact struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID    primitive.ObjectID `bson:"request_id" json:"request_id"`
	UploaderID   primitive.ObjectID `bson:"uploader_id" json:"uploader_id"`
	UploaderRole string             `bson:"uploader_role" json:"uploader_role"` // sponsor | applicant

	Name        string `bson:"name" json:"name"`
	ContentType string `bson:"content_type" json:"content_type"`
	Size        int64  `bson:"size" json:"size"`
	StorageRef  string `bson:"storage_ref,omitempty" json:"storage_ref,omitempty"`

	Status          ArtifactStatus `bson:"status" json:"status"`
	RejectionReason string         `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`

	ReviewedBy *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time          `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
}
