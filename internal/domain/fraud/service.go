package fraud

import (
	"fraud-risk-engine/internal/domain/transaction"
)

// Outcome is the result of folding rule results into a transaction's score.
// The caller persists the new score, status and events together.
type Outcome struct {
	PreviousScore int                           `json:"previous_score"`
	Score         int                           `json:"score"`
	Status        transaction.TransactionStatus `json:"status"`
	Events        []RiskEvent                   `json:"events"`
}

// Changed reports whether the fold produced any event
func (o Outcome) Changed() bool {
	return len(o.Events) > 0
}

// Fold applies results to tx.RiskScore in order, each delta against the
// score produced by the previous one, and records one event per result.
// Event timestamps never go backwards relative to tx.UpdatedAt or each other.
// tx is not modified.
func Fold(
	tx *transaction.Transaction,
	eventType EventType,
	dataReceived map[string]any,
	results []RuleResult,
	recorder *Recorder,
) Outcome {
	score := tx.RiskScore
	out := Outcome{
		PreviousScore: score,
		Events:        make([]RiskEvent, 0, len(results)),
	}

	floor := tx.UpdatedAt
	for _, result := range results {
		score = Accumulate(score, result.ScoreChange)

		at := recorder.Now()
		if at.Before(floor) {
			at = floor
		}
		floor = at

		out.Events = append(out.Events, recorder.recordAt(tx.ID, eventType, dataReceived, result, score, at))
	}

	out.Score = score
	out.Status = Classify(score)
	return out
}
