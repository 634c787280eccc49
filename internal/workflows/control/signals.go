package control

import "time"

// Signal and query names for workflow cancellation.
const (
	SignalCancel     = "cancel_v1"
	QueryCancelState = "cancel_state_v1"
)

// CancelRequest is sent when cancelling a workflow instance.
type CancelRequest struct {
	Reason      string `json:"reason"`
	RequestedBy string `json:"requested_by"`
}

// CancelState tracks cancellation for query handlers.
type CancelState struct {
	IsCancelled bool      `json:"is_cancelled"`
	Reason      string    `json:"reason,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	CancelledAt time.Time `json:"cancelled_at,omitempty"`
}
