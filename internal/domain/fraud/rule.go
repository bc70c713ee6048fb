package fraud

import (
	"fraud-risk-engine/internal/domain/transaction"
)

// Stage is the lifecycle point at which new evidence arrives
type Stage string

const (
	StageCreation Stage = "creation"
	StageMerchant Stage = "merchant"
	StageDevice   Stage = "device"
	StageOTP      Stage = "otp"
)

// EventType returns the audit event type recorded for the stage
func (s Stage) EventType() EventType {
	switch s {
	case StageMerchant:
		return EventMerchantData
	case StageDevice:
		return EventDeviceData
	case StageOTP:
		return EventOTPVerification
	default:
		return EventTransactionCreated
	}
}

// EvalMode controls how a rule set combines the results of its rules
type EvalMode int

const (
	// ModeCollectAll evaluates every rule and keeps every non-nil result
	ModeCollectAll EvalMode = iota
	// ModeFirstMatch stops at the first rule that returns a result
	ModeFirstMatch
)

func (m EvalMode) String() string {
	switch m {
	case ModeCollectAll:
		return "collect_all"
	case ModeFirstMatch:
		return "first_match"
	default:
		return "unknown"
	}
}

// Evidence is the data fragment submitted with a non-creation stage.
// Zero values mean "not supplied".
type Evidence struct {
	MerchantType string
	DeviceInfo   *transaction.DeviceInfo
	OTPVerified  bool
}

// EvaluateFunc is a pure rule body. Returning nil means the rule abstains.
type EvaluateFunc func(tx *transaction.Transaction, ev Evidence) *RuleResult

// Rule is one named entry of a rule set
type Rule struct {
	ID       string
	Name     string
	Evaluate EvaluateFunc
}

// RuleSet is an ordered group of rules for one evidence stage
type RuleSet struct {
	Stage Stage
	Mode  EvalMode
	Rules []Rule
}

// Run evaluates the set against tx in declared order.
// Inputs are never mutated.
func (s RuleSet) Run(tx *transaction.Transaction, ev Evidence) []RuleResult {
	results := make([]RuleResult, 0, len(s.Rules))
	for _, rule := range s.Rules {
		result := rule.Evaluate(tx, ev)
		if result == nil {
			continue
		}
		if result.RuleID == "" {
			result.RuleID = rule.ID
		}
		results = append(results, *result)
		if s.Mode == ModeFirstMatch {
			break
		}
	}
	return results
}

// First runs the set and returns its first result, or nil if every rule abstained
func (s RuleSet) First(tx *transaction.Transaction, ev Evidence) *RuleResult {
	results := s.Run(tx, ev)
	if len(results) == 0 {
		return nil
	}
	return &results[0]
}

// RuleEngine is the evaluation orchestrator. Implementations are pure and
// stateless apart from immutable configuration.
type RuleEngine interface {
	// EvaluateCreation runs the creation set, keeping every result in rule order
	EvaluateCreation(tx *transaction.Transaction) []RuleResult

	// EvaluateMerchant scores a merchant category submission
	EvaluateMerchant(tx *transaction.Transaction, merchantType string) *RuleResult

	// EvaluateDevice scores a device info submission
	EvaluateDevice(tx *transaction.Transaction, info *transaction.DeviceInfo) *RuleResult

	// EvaluateOTP scores an OTP verification. Nil if already verified.
	EvaluateOTP(tx *transaction.Transaction) *RuleResult
}
