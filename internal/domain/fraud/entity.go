package fraud

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the evidence stage that produced a risk event
type EventType string

const (
	EventTransactionCreated EventType = "transaction_created"
	EventMerchantData       EventType = "merchant_data"
	EventDeviceData         EventType = "device_data"
	EventOTPVerification    EventType = "otp_verification"
	EventLocationData       EventType = "location_data"
)

// IsValid reports whether e is a known event type
func (e EventType) IsValid() bool {
	switch e {
	case EventTransactionCreated, EventMerchantData, EventDeviceData, EventOTPVerification, EventLocationData:
		return true
	}
	return false
}

// RuleResult is the opinion of a single rule. It is consumed immediately to
// build a RiskEvent and never persisted on its own.
type RuleResult struct {
	RuleID      string `json:"rule_id"`
	RuleName    string `json:"rule_name"`
	ScoreChange int    `json:"score_change"`
	Explanation string `json:"explanation"`
}

// RiskEvent is the append-only audit record of one rule firing.
// The ordered stream of a transaction's events replays to its current score.
type RiskEvent struct {
	ID            uuid.UUID      `json:"id"`
	TransactionID uuid.UUID      `json:"transaction_id"`
	EventType     EventType      `json:"event_type"`
	DataReceived  map[string]any `json:"data_received"`
	RuleTriggered string         `json:"rule_triggered"`
	ScoreChange   int            `json:"score_change"`
	NewScore      int            `json:"new_score"`
	Explanation   string         `json:"explanation"`
	CreatedAt     time.Time      `json:"created_at"`
}
