package domain

import "time"

// Event types
const (
	EventTypeTransferCompleted     = "transfer.completed"
	EventTypeTransferCompensated   = "transfer.compensated"
	EventTypeCompensationScheduled = "compensation.scheduled"
	EventTypeCompensationResolved  = "compensation.resolved"
	EventTypeCompensationEscalated = "compensation.escalated"
)

// Event is a notification about a transfer outcome.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TransferID string         `json:"transfer_id"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TransferCompletedEvent payload
type TransferCompletedEvent struct {
	TransferID    string `json:"transfer_id"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        int64  `json:"amount"`
}

// ToPayload converts the event to a generic payload.
func (e TransferCompletedEvent) ToPayload() map[string]any {
	return map[string]any{
		"transfer_id":     e.TransferID,
		"from_account_id": e.FromAccountID,
		"to_account_id":   e.ToAccountID,
		"amount":          e.Amount,
	}
}

// CompensationEvent payload
type CompensationEvent struct {
	CompensationID string `json:"compensation_id"`
	TransferID     string `json:"transfer_id"`
	AccountID      string `json:"account_id"`
	Amount         int64  `json:"amount"`
	Attempts       int    `json:"attempts"`
	Reason         string `json:"reason,omitempty"`
}

// ToPayload converts the event to a generic payload.
func (e CompensationEvent) ToPayload() map[string]any {
	p := map[string]any{
		"compensation_id": e.CompensationID,
		"transfer_id":     e.TransferID,
		"account_id":      e.AccountID,
		"amount":          e.Amount,
		"attempts":        e.Attempts,
	}
	if e.Reason != "" {
		p["reason"] = e.Reason
	}

	return p
}
