package metricsstore

import (
	"context"
	"time"

	"github.com/dalemusser/coordhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of workflow totals exported as gauges.
type Counts struct {
	Sponsors         int64
	Applicants       int64
	OpenOfferings    int64
	CommittedSlots   int64
	RequestsByStatus map[models.RequestStatus]int64
}

// FetchWorkflowCounts returns the current workflow totals.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchWorkflowCounts(ctx context.Context, db *mongo.Database, now time.Time) Counts {
	out := Counts{RequestsByStatus: map[models.RequestStatus]int64{}}

	actors := db.Collection("actors")
	if n, err := actors.CountDocuments(ctx, bson.M{"role": models.RoleSponsor}); err == nil {
		out.Sponsors = n
	}
	if n, err := actors.CountDocuments(ctx, bson.M{"role": models.RoleApplicant}); err == nil {
		out.Applicants = n
	}

	open := bson.M{"window_start": bson.M{"$lte": now}, "window_end": bson.M{"$gte": now}}
	if n, err := db.Collection("offerings").CountDocuments(ctx, open); err == nil {
		out.OpenOfferings = n
	}

	cur, err := db.Collection("coordination_requests").Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err == nil {
		var rows []struct {
			Status models.RequestStatus `bson:"_id"`
			N      int64                `bson:"n"`
		}
		if cur.All(ctx, &rows) == nil {
			for _, r := range rows {
				out.RequestsByStatus[r.Status] = r.N
			}
		}
	}

	// Counted from requests, not offering slots: shrinking an offering clamps
	// its available slots and loses the difference.
	for _, st := range models.CommittedRequestStatuses {
		out.CommittedSlots += out.RequestsByStatus[st]
	}

	return out
}
