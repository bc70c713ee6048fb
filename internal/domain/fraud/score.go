package fraud

import (
	"fmt"

	"fraud-risk-engine/internal/domain/transaction"
)

// Accumulate applies delta to current and clamps the result to [0,100].
// Deltas are never banked: a large negative step followed by a positive
// one starts again from 0.
func Accumulate(current, delta int) int {
	score := current + delta
	if score < transaction.MinRiskScore {
		return transaction.MinRiskScore
	}
	if score > transaction.MaxRiskScore {
		return transaction.MaxRiskScore
	}
	return score
}

// Classify maps a score to its status tier
func Classify(score int) transaction.TransactionStatus {
	return transaction.ClassifyScore(score)
}

// Replay folds an ordered event stream from 0 and returns the resulting score
func Replay(events []RiskEvent) int {
	score := transaction.MinRiskScore
	for _, e := range events {
		score = Accumulate(score, e.ScoreChange)
	}
	return score
}

// VerifyChain checks that every event's NewScore follows from the previous
// event and its ScoreChange. It returns the replayed score alongside.
func VerifyChain(events []RiskEvent) (int, error) {
	score := transaction.MinRiskScore
	for i, e := range events {
		expected := Accumulate(score, e.ScoreChange)
		if e.NewScore != expected {
			return score, fmt.Errorf("%w: event %d (%s) has new_score %d, expected %d",
				ErrBrokenChain, i, e.ID, e.NewScore, expected)
		}
		if i > 0 && e.CreatedAt.Before(events[i-1].CreatedAt) {
			return score, fmt.Errorf("%w: event %d (%s) is older than its predecessor",
				ErrEventsOutOfOrder, i, e.ID)
		}
		score = expected
	}
	return score, nil
}
