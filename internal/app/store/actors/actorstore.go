// internal/app/store/actors/actorstore.go
package actorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/coordhub/internal/app/system/normalize"
	"github.com/dalemusser/coordhub/internal/domain/errs"
	"github.com/dalemusser/coordhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// Collection is the collection backing the identity store.
const Collection = "actors"

// Store is the identity store. Every method accepts the context handed out
// by txn.Runner so calls join the caller's transaction.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

var ErrDuplicateEmail = errors.New("an actor with this email already exists")

// NewSponsor builds a validated sponsor record. Password is optional; when
// given it is stored as a bcrypt hash.
func NewSponsor(fullName, email string, capacity int, password string) (models.Actor, error) {
	if capacity < 0 {
		return models.Actor{}, errs.Invalid("capacity must not be negative")
	}
	a, err := newActor(models.RoleSponsor, fullName, email, password)
	if err != nil {
		return models.Actor{}, err
	}
	a.Capacity = capacity
	return a, nil
}

// NewApplicant builds a validated applicant record.
func NewApplicant(fullName, email, password string) (models.Actor, error) {
	return newActor(models.RoleApplicant, fullName, email, password)
}

func newActor(role, fullName, email, password string) (models.Actor, error) {
	name := normalize.Name(fullName)
	if name == "" {
		return models.Actor{}, errs.Invalid("full name is required")
	}
	mail := normalize.Email(email)
	if mail == "" {
		return models.Actor{}, errs.Invalid("email is required")
	}

	now := time.Now().UTC()
	a := models.Actor{
		ID:         primitive.NewObjectID(),
		Role:       role,
		FullName:   name,
		FullNameCI: normalize.Fold(name),
		Email:      mail,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.Actor{}, fmt.Errorf("hash password: %w", err)
		}
		a.PasswordHash = string(hash)
	}
	return a, nil
}

// Create inserts a record built by NewSponsor or NewApplicant.
func (s *Store) Create(ctx context.Context, a models.Actor) (models.Actor, error) {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Actor{}, ErrDuplicateEmail
		}
		return models.Actor{}, fmt.Errorf("insert actor: %w", err)
	}
	return a, nil
}

// Get loads an actor by id.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Actor, error) {
	var a models.Actor
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Actor{}, errs.NotFound("actor")
		}
		return models.Actor{}, fmt.Errorf("load actor: %w", err)
	}
	return a, nil
}

// Lock bumps the actor's lock sequence. Inside a transaction this makes any
// concurrent transaction writing the same actor conflict and retry, which
// serializes writers whose invariants span documents owned by the actor.
func (s *Store) Lock(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"lock_seq": 1}})
	if err != nil {
		return fmt.Errorf("lock actor: %w", err)
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("actor")
	}
	return nil
}

// SetAcceptedSponsor records (or, with a nil sponsorID, clears) the sponsor
// that accepted an applicant. Setting only succeeds while the applicant has
// no accepted sponsor; otherwise it returns errs.ErrAlreadyCommitted.
func (s *Store) SetAcceptedSponsor(ctx context.Context, applicantID primitive.ObjectID, sponsorID *primitive.ObjectID) error {
	now := time.Now().UTC()

	if sponsorID == nil {
		res, err := s.c.UpdateOne(ctx,
			bson.M{"_id": applicantID, "role": models.RoleApplicant},
			bson.M{"$unset": bson.M{"accepted_by": ""}, "$set": bson.M{"updated_at": now}},
		)
		if err != nil {
			return fmt.Errorf("clear accepted sponsor: %w", err)
		}
		if res.MatchedCount == 0 {
			return errs.NotFound("applicant")
		}
		return nil
	}

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": applicantID, "role": models.RoleApplicant, "accepted_by": nil},
		bson.M{"$set": bson.M{"accepted_by": *sponsorID, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("set accepted sponsor: %w", err)
	}
	if res.MatchedCount == 0 {
		if err := s.mustExist(ctx, applicantID, models.RoleApplicant, "applicant"); err != nil {
			return err
		}
		return errs.ErrAlreadyCommitted
	}
	return nil
}

// IncrementCommitted adds delta to a sponsor's committed count. The update is
// conditional so the count never leaves [0, capacity]: exceeding capacity
// returns errs.ErrCapacityExceeded.
func (s *Store) IncrementCommitted(ctx context.Context, sponsorID primitive.ObjectID, delta int) error {
	if delta == 0 {
		return nil
	}

	filter := bson.M{"_id": sponsorID, "role": models.RoleSponsor}
	if delta > 0 {
		filter["$expr"] = bson.M{"$lte": bson.A{bson.M{"$add": bson.A{"$committed", delta}}, "$capacity"}}
	} else {
		filter["committed"] = bson.M{"$gte": -delta}
	}

	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"committed": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("increment committed: %w", err)
	}
	if res.MatchedCount == 0 {
		if err := s.mustExist(ctx, sponsorID, models.RoleSponsor, "sponsor"); err != nil {
			return err
		}
		if delta > 0 {
			return errs.ErrCapacityExceeded
		}
		return errs.Invalid("committed count cannot drop below zero")
	}
	return nil
}

func (s *Store) mustExist(ctx context.Context, id primitive.ObjectID, role, what string) error {
	err := s.c.FindOne(ctx, bson.M{"_id": id, "role": role},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.NotFound(what)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}
