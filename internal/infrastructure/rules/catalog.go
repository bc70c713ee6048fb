package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

// Rule catalog ids
const (
	RuleAmountTier        = "amount-tier"
	RuleUnusualTime       = "unusual-time"
	RuleLocationRisk      = "location-risk"
	RuleMerchantCategory  = "merchant-category"
	RuleDeviceRecognition = "device-recognition"
	RuleOTPVerification   = "otp-verification"
)

// Unusual hours, inclusive, in the engine's time zone
const (
	unusualHourStart = 1
	unusualHourEnd   = 5
)

var (
	highAmountThreshold     = decimal.NewFromInt(10000)
	moderateAmountThreshold = decimal.NewFromInt(5000)
	normalAmountThreshold   = decimal.NewFromInt(1000)
)

var highRiskLocations = []string{"unknown", "vpn", "proxy", "tor"}

// keywordTier is one row of a case-insensitive substring lookup table.
// Tiers are checked in order and the first tier with a matching keyword wins.
type keywordTier struct {
	keywords    []string
	scoreChange int
	ruleName    string
	explanation string // fmt format taking the raw value
}

var merchantTiers = []keywordTier{
	{
		keywords:    []string{"gambling", "crypto", "adult", "wire_transfer", "money_order"},
		scoreChange: 25,
		ruleName:    "High-Risk Merchant Detection",
		explanation: "Merchant category %q is classified as high-risk. These categories have elevated fraud rates.",
	},
	{
		keywords:    []string{"jewelry", "electronics", "travel"},
		scoreChange: 10,
		ruleName:    "Medium-Risk Merchant Detection",
		explanation: "Merchant category %q has moderate risk profile. Added to monitoring.",
	},
	{
		keywords:    []string{"grocery", "utilities", "subscription", "retail"},
		scoreChange: -10,
		ruleName:    "Trusted Merchant Recognition",
		explanation: "Merchant category %q is trusted. Risk score reduced.",
	},
}

func (t keywordTier) matches(lower string) bool {
	for _, kw := range t.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsAny(value string, keywords []string) bool {
	lower := strings.ToLower(value)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders an amount with English digit grouping, e.g. 15,000 or 1,234.5
func formatAmount(amount decimal.Decimal) string {
	return amountPrinter.Sprint(number.Decimal(amount.InexactFloat64(), number.MaxFractionDigits(2)))
}

func amountTierRule() fraud.Rule {
	return fraud.Rule{
		ID:   RuleAmountTier,
		Name: "High Amount Detection",
		Evaluate: func(tx *transaction.Transaction, _ fraud.Evidence) *fraud.RuleResult {
			amount := formatAmount(tx.Amount)
			switch {
			case tx.IsHighValue(highAmountThreshold):
				return &fraud.RuleResult{
					ScoreChange: 25,
					RuleName:    "High Amount Detection",
					Explanation: fmt.Sprintf("Transaction amount of $%s exceeds high-value threshold ($10,000). Large transactions require additional verification.", amount),
				}
			case tx.Amount.GreaterThanOrEqual(moderateAmountThreshold):
				return &fraud.RuleResult{
					ScoreChange: 15,
					RuleName:    "Moderate Amount Detection",
					Explanation: fmt.Sprintf("Transaction amount of $%s is above moderate threshold ($5,000). Flagged for monitoring.", amount),
				}
			case tx.Amount.GreaterThanOrEqual(normalAmountThreshold):
				return &fraud.RuleResult{
					ScoreChange: 5,
					RuleName:    "Amount Assessment",
					Explanation: fmt.Sprintf("Transaction amount of $%s recorded. Within normal range.", amount),
				}
			default:
				return &fraud.RuleResult{
					ScoreChange: 0,
					RuleName:    "Low Amount Assessment",
					Explanation: fmt.Sprintf("Transaction amount of $%s is low-risk.", amount),
				}
			}
		},
	}
}

func unusualTimeRule(loc *time.Location) fraud.Rule {
	return fraud.Rule{
		ID:   RuleUnusualTime,
		Name: "Unusual Time Detection",
		Evaluate: func(tx *transaction.Transaction, _ fraud.Evidence) *fraud.RuleResult {
			hour := tx.CreatedAt.In(loc).Hour()
			if hour < unusualHourStart || hour > unusualHourEnd {
				return nil
			}
			return &fraud.RuleResult{
				ScoreChange: 15,
				RuleName:    "Unusual Time Detection",
				Explanation: fmt.Sprintf("Transaction initiated at unusual hour (%d:00). Late-night transactions have higher fraud correlation.", hour),
			}
		},
	}
}

func locationRiskRule() fraud.Rule {
	return fraud.Rule{
		ID:   RuleLocationRisk,
		Name: "Location Risk Assessment",
		Evaluate: func(tx *transaction.Transaction, _ fraud.Evidence) *fraud.RuleResult {
			location := tx.LocationValue()
			if location == "" {
				return nil
			}
			if containsAny(location, highRiskLocations) {
				return &fraud.RuleResult{
					ScoreChange: 20,
					RuleName:    "High-Risk Location Detection",
					Explanation: fmt.Sprintf("Location %q is flagged as high-risk (anonymizing service detected).", location),
				}
			}
			return &fraud.RuleResult{
				ScoreChange: 0,
				RuleName:    "Location Verification",
				Explanation: fmt.Sprintf("Location %q verified and within normal parameters.", location),
			}
		},
	}
}

func merchantCategoryRule() fraud.Rule {
	return fraud.Rule{
		ID:   RuleMerchantCategory,
		Name: "Merchant Category Risk",
		Evaluate: func(tx *transaction.Transaction, ev fraud.Evidence) *fraud.RuleResult {
			merchantType := ev.MerchantType
			if merchantType == "" {
				merchantType = tx.MerchantValue()
			}
			if merchantType == "" {
				return nil
			}

			lower := strings.ToLower(merchantType)
			for _, tier := range merchantTiers {
				if tier.matches(lower) {
					return &fraud.RuleResult{
						ScoreChange: tier.scoreChange,
						RuleName:    tier.ruleName,
						Explanation: fmt.Sprintf(tier.explanation, merchantType),
					}
				}
			}
			return &fraud.RuleResult{
				ScoreChange: 0,
				RuleName:    "Merchant Category Assessment",
				Explanation: fmt.Sprintf("Merchant category %q has neutral risk profile.", merchantType),
			}
		},
	}
}

func deviceRecognitionRule() fraud.Rule {
	return fraud.Rule{
		ID:   RuleDeviceRecognition,
		Name: "Device Recognition",
		Evaluate: func(tx *transaction.Transaction, ev fraud.Evidence) *fraud.RuleResult {
			info := ev.DeviceInfo
			if info == nil {
				info = tx.DeviceInfo
			}
			if info == nil {
				return nil
			}

			switch {
			case info.IsKnown != nil && *info.IsKnown:
				return &fraud.RuleResult{
					ScoreChange: -15,
					RuleName:    "Known Device Recognition",
					Explanation: "Device recognized from previous verified transactions. Trusted device confirmation reduces risk.",
				}
			case info.IsKnown != nil:
				return &fraud.RuleResult{
					ScoreChange: 15,
					RuleName:    "New Device Detection",
					Explanation: fmt.Sprintf("New device detected (%s, %s). First-time device usage increases risk.",
						orDefault(info.Type, "unknown type"), orDefault(info.OS, "unknown OS")),
				}
			default:
				return &fraud.RuleResult{
					ScoreChange: 5,
					RuleName:    "Device Info Received",
					Explanation: fmt.Sprintf("Device info received: %s on %s. Pending verification.",
						orDefault(info.Type, "unknown"), orDefault(info.OS, "unknown OS")),
				}
			}
		},
	}
}

func otpVerificationRule() fraud.Rule {
	return fraud.Rule{
		ID:   RuleOTPVerification,
		Name: "OTP Verification",
		Evaluate: func(tx *transaction.Transaction, ev fraud.Evidence) *fraud.RuleResult {
			if !ev.OTPVerified && !tx.OTPVerified {
				return nil
			}
			return &fraud.RuleResult{
				ScoreChange: -25,
				RuleName:    "OTP Verification Success",
				Explanation: "OTP verification successful. Strong authentication confirmed. Significantly reduces fraud risk.",
			}
		},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
