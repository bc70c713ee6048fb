package rules

import (
	"time"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

// Engine implements fraud.RuleEngine over the built-in rule catalog.
// It holds only immutable configuration and is safe for concurrent use.
type Engine struct {
	location *time.Location

	creation fraud.RuleSet
	merchant fraud.RuleSet
	device   fraud.RuleSet
	otp      fraud.RuleSet
}

var _ fraud.RuleEngine = (*Engine)(nil)

// NewEngine creates a rule engine evaluating time-of-day rules in loc.
// A nil location means UTC.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}

	return &Engine{
		location: loc,
		creation: fraud.RuleSet{
			Stage: fraud.StageCreation,
			Mode:  fraud.ModeCollectAll,
			Rules: []fraud.Rule{amountTierRule(), unusualTimeRule(loc), locationRiskRule()},
		},
		merchant: fraud.RuleSet{
			Stage: fraud.StageMerchant,
			Mode:  fraud.ModeFirstMatch,
			Rules: []fraud.Rule{merchantCategoryRule()},
		},
		device: fraud.RuleSet{
			Stage: fraud.StageDevice,
			Mode:  fraud.ModeFirstMatch,
			Rules: []fraud.Rule{deviceRecognitionRule()},
		},
		otp: fraud.RuleSet{
			Stage: fraud.StageOTP,
			Mode:  fraud.ModeFirstMatch,
			Rules: []fraud.Rule{otpVerificationRule()},
		},
	}
}

// Location returns the time zone used for the unusual-time rule
func (e *Engine) Location() *time.Location {
	return e.location
}

// RuleSet returns the rule set registered for a stage
func (e *Engine) RuleSet(stage fraud.Stage) fraud.RuleSet {
	switch stage {
	case fraud.StageMerchant:
		return e.merchant
	case fraud.StageDevice:
		return e.device
	case fraud.StageOTP:
		return e.otp
	default:
		return e.creation
	}
}

// EvaluateCreation runs amount, time and location rules, keeping every result in order
func (e *Engine) EvaluateCreation(tx *transaction.Transaction) []fraud.RuleResult {
	return e.creation.Run(tx, fraud.Evidence{})
}

// EvaluateMerchant scores a merchant category. A blank category or a
// transaction that already carries one yields no result.
func (e *Engine) EvaluateMerchant(tx *transaction.Transaction, merchantType string) *fraud.RuleResult {
	if merchantType == "" || tx.HasMerchant() {
		return nil
	}
	return e.merchant.First(tx, fraud.Evidence{MerchantType: merchantType})
}

// EvaluateDevice scores device info. Nil info or a transaction that
// already carries device info yields no result.
func (e *Engine) EvaluateDevice(tx *transaction.Transaction, info *transaction.DeviceInfo) *fraud.RuleResult {
	if info == nil || tx.HasDevice() {
		return nil
	}
	return e.device.First(tx, fraud.Evidence{DeviceInfo: info})
}

// EvaluateOTP scores an OTP verification. Already verified transactions yield no result.
func (e *Engine) EvaluateOTP(tx *transaction.Transaction) *fraud.RuleResult {
	if tx.OTPVerified {
		return nil
	}
	return e.otp.First(tx, fraud.Evidence{OTPVerified: true})
}
