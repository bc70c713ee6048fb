package dto

import (
	"time"

	"github.com/google/uuid"

	"fraud-risk-engine/internal/domain/fraud"
)

// RiskEventResponse represents one audit event
type RiskEventResponse struct {
	ID            uuid.UUID      `json:"id"`
	TransactionID uuid.UUID      `json:"transaction_id"`
	EventType     string         `json:"event_type"`
	DataReceived  map[string]any `json:"data_received"`
	RuleTriggered string         `json:"rule_triggered"`
	ScoreChange   int            `json:"score_change"`
	NewScore      int            `json:"new_score"`
	Explanation   string         `json:"explanation"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewRiskEventResponses maps domain events to their API shape, preserving order
func NewRiskEventResponses(events []fraud.RiskEvent) []RiskEventResponse {
	out := make([]RiskEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, RiskEventResponse{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			EventType:     string(e.EventType),
			DataReceived:  e.DataReceived,
			RuleTriggered: e.RuleTriggered,
			ScoreChange:   e.ScoreChange,
			NewScore:      e.NewScore,
			Explanation:   e.Explanation,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

// EvaluationResponse is the outcome of submitting evidence for a transaction.
// Applied is false when the submission was a no-op.
type EvaluationResponse struct {
	Applied       bool                 `json:"applied"`
	Reason        string               `json:"reason,omitempty"`
	PreviousScore int                  `json:"previous_score"`
	RiskScore     int                  `json:"risk_score"`
	Status        string               `json:"status"`
	Transaction   *TransactionResponse `json:"transaction"`
	Events        []RiskEventResponse  `json:"events"`

	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// TransactionDetailResponse is a transaction with its full audit trail
type TransactionDetailResponse struct {
	Transaction *TransactionResponse `json:"transaction"`
	Events      []RiskEventResponse  `json:"events"`
}

// AuditReportResponse is the result of replaying a transaction's event stream
type AuditReportResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	StoredScore   int       `json:"stored_score"`
	ReplayedScore int       `json:"replayed_score"`
	EventCount    int       `json:"event_count"`
	Consistent    bool      `json:"consistent"`
	Error         string    `json:"error,omitempty"`
}
