package fraud

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Recorder packages rule outcomes into immutable RiskEvents
type Recorder struct {
	now func() time.Time
}

// NewRecorder creates a recorder stamping events with now.
// A nil clock falls back to time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Now returns the recorder clock reading
func (r *Recorder) Now() time.Time {
	return r.now()
}

// Record builds the audit event for one rule result
func (r *Recorder) Record(
	transactionID uuid.UUID,
	eventType EventType,
	dataReceived map[string]any,
	result RuleResult,
	newScore int,
) RiskEvent {
	return r.recordAt(transactionID, eventType, dataReceived, result, newScore, r.now())
}

func (r *Recorder) recordAt(
	transactionID uuid.UUID,
	eventType EventType,
	dataReceived map[string]any,
	result RuleResult,
	newScore int,
	at time.Time,
) RiskEvent {
	return RiskEvent{
		ID:            uuid.New(),
		TransactionID: transactionID,
		EventType:     eventType,
		DataReceived:  maps.Clone(dataReceived),
		RuleTriggered: result.RuleName,
		ScoreChange:   result.ScoreChange,
		NewScore:      newScore,
		Explanation:   result.Explanation,
		CreatedAt:     at,
	}
}
