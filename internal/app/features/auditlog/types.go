// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/coordhub/internal/app/store/audit"
	"github.com/dalemusser/coordhub/internal/app/system/paging"
)

// listItem is one audit event as returned to callers.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Operation     string            `json:"operation"`
	ActorID       string            `json:"actor_id,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	OfferingID    string            `json:"offering_id,omitempty"`
	ArtifactID    string            `json:"artifact_id,omitempty"`
	Success       bool              `json:"success"`
	FailureCode   string            `json:"failure_code,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// listData is the response for GET /audit.
type listData struct {
	Items   []listItem   `json:"items"`
	Total   int64        `json:"total"`
	Range   paging.Range `json:"range"`
	HasPrev bool         `json:"has_prev"`
	HasNext bool         `json:"has_next"`
}

// requestData is the response for GET /audit/requests/{id}.
type requestData struct {
	RequestID string     `json:"request_id"`
	Items     []listItem `json:"items"`
}


func toItem(e audit.Event) listItem {
	item := listItem{
		ID:            e.ID.Hex(),
		Timestamp:     e.Timestamp,
		Operation:     e.Operation,
		Success:       e.Success,
		FailureCode:   e.FailureCode,
		FailureReason: e.FailureReason,
		Details:       e.Details,
	}
	if e.ActorID != nil {
		item.ActorID = e.ActorID.Hex()
	}
	if e.RequestID != nil {
		item.RequestID = e.RequestID.Hex()
	}
	if e.OfferingID != nil {
		item.OfferingID = e.OfferingID.Hex()
	}
	if e.ArtifactID != nil {
		item.ArtifactID = e.ArtifactID.Hex()
	}
	return item
}

// allOperations lists the operation filter values.
func allOperations() []string {
	return []string{
		audit.OpOfferingCreate, audit.OpOfferingUpdate, audit.OpOfferingDelete,
		audit.OpRequestSubmit, audit.OpRequestApprove, audit.OpRequestReject, audit.OpRequestCancel,
		audit.OpDocumentUpload, audit.OpDocumentAccept, audit.OpDocumentReject,
	}
}
