package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	metricsstore "github.com/dalemusser/coordhub/internal/app/store/metrics"
	"github.com/dalemusser/coordhub/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountsCollector(t *testing.T) {
	fetch := func(ctx context.Context, now time.Time) metricsstore.Counts {
		return metricsstore.Counts{
			Sponsors:       2,
			Applicants:     5,
			OpenOfferings:  1,
			CommittedSlots: 3,
			RequestsByStatus: map[models.RequestStatus]int64{
				models.RequestPending:  4,
				models.RequestApproved: 3,
			},
		}
	}
	c := NewCountsCollector(fetch, time.Second)

	want := `
# HELP coordhub_actors Actors by role.
# TYPE coordhub_actors gauge
coordhub_actors{role="applicant"} 5
coordhub_actors{role="sponsor"} 2
# HELP coordhub_requests Coordination requests by status.
# TYPE coordhub_requests gauge
coordhub_requests{status="approved"} 3
coordhub_requests{status="completed"} 0
coordhub_requests{status="document_pending"} 0
coordhub_requests{status="pending"} 4
coordhub_requests{status="rejected"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "coordhub_actors", "coordhub_requests"); err != nil {
		t.Error(err)
	}
}
