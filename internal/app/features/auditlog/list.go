// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	"github.com/dalemusser/coordhub/internal/app/system/paging"
	"github.com/dalemusser/coordhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// parseID reads an optional ObjectID query parameter.
func parseID(r *http.Request, name string) (*primitive.ObjectID, bool) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, false
	}
	return &id, true
}

// parseFilter builds a store filter from the query string. The second
// return value names the first invalid parameter.
func parseFilter(r *http.Request) (audit.QueryFilter, string) {
	q := r.URL.Query()
	var f audit.QueryFilter

	ids := []struct {
		name string
		dst  **primitive.ObjectID
	}{
		{"actor_id", &f.ActorID},
		{"request_id", &f.RequestID},
		{"offering_id", &f.OfferingID},
	}
	for _, p := range ids {
		id, ok := parseID(r, p.name)
		if !ok {
			return f, p.name
		}
		*p.dst = id
	}

	if op := strings.TrimSpace(q.Get("operation")); op != "" {
		if !slices.Contains(allOperations(), op) {
			return f, "operation"
		}
		f.Operation = op
	}

	if s := strings.TrimSpace(q.Get("success")); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return f, "success"
		}
		f.Success = &b
	}

	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, "start_date"
		}
		f.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, "end_date"
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &endOfDay
	}

	return f, ""
}

// ServeList handles GET /audit: workflow audit events, most recent first.
//
// Filters: actor_id, request_id, offering_id, operation, success,
// start_date, end_date (YYYY-MM-DD). Paged with start (1-based).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, bad := parseFilter(r)
	if bad != "" {
		badRequest(w, "invalid "+bad)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit list")
	defer cancel()

	start := paging.ParseStart(r)
	filter.Offset = paging.Offset(start)
	filter.Limit = paging.LimitPlusOne()

	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.Log.Error("failed to query audit events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "database error"})
		return
	}
	pg := paging.TrimPage(&events, start)

	total, err := h.Store.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("failed to count audit events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "database error"})
		return
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, toItem(e))
	}

	writeJSON(w, http.StatusOK, listData{
		Items:   items,
		Total:   total,
		Range:   paging.ComputeRange(start, len(items)),
		HasPrev: pg.HasPrev,
		HasNext: pg.HasNext,
	})
}

// ServeRequest handles GET /audit/requests/{id}: the trail of one request,
// oldest first.
func (h *Handler) ServeRequest(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid request id")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit request trail")
	defer cancel()

	events, err := h.Store.ForRequest(ctx, id)
	if err != nil {
		h.Log.Error("failed to load request audit trail", zap.Error(err), zap.String("request_id", id.Hex()))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "database error"})
		return
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, toItem(e))
	}
	writeJSON(w, http.StatusOK, requestData{RequestID: id.Hex(), Items: items})
}
