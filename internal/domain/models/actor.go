// internal/domain/models/actor.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor roles.
const (
	RoleSponsor   = "sponsor"
	RoleApplicant = "applicant"
)

// Actor is a sponsor or an applicant.
//
// NOTE:
//   - AcceptedBy is only meaningful for applicants and points at a sponsor
//     by id. Resolve it through the actors store, never embed the sponsor.
//   - Capacity/Committed are only meaningful for sponsors.
//     Invariant: 0 <= Committed <= Capacity.
//   - LockSeq is bumped inside transactions to serialize writers on one actor.
type Actor struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Role         string             `bson:"role" json:"role"` // sponsor | applicant
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Status       string             `bson:"status" json:"status"` // active | disabled

	AcceptedBy *primitive.ObjectID `bson:"accepted_by,omitempty" json:"accepted_by,omitempty"`

	Capacity  int `bson:"capacity" json:"capacity"`
	Committed int `bson:"committed" json:"committed"`

	LockSeq int64 `bson:"lock_seq" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsSponsor reports whether the actor reviews requests.
func (a *Actor) IsSponsor() bool { return a.Role == RoleSponsor }

// IsApplicant reports whether the actor submits requests.
func (a *Actor) IsApplicant() bool { return a.Role == RoleApplicant }

// HasAcceptedSponsor reports whether an applicant is already committed.
func (a *Actor) HasAcceptedSponsor() bool { return a.AcceptedBy != nil }

// RemainingCapacity is how many more applicants a sponsor can accept.
func (a *Actor) RemainingCapacity() int {
	if n := a.Capacity - a.Committed; n > 0 {
		return n
	}
	return 0
}
