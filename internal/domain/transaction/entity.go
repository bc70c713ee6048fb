package transaction

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the risk tier of a transaction
type TransactionStatus string

const (
	StatusSafe       TransactionStatus = "safe"
	StatusSuspicious TransactionStatus = "suspicious"
	StatusHighRisk   TransactionStatus = "high_risk"
)

// Risk tier boundaries. Inclusive upper bounds.
const (
	SafeThreshold       = 30
	SuspiciousThreshold = 70

	MinRiskScore = 0
	MaxRiskScore = 100
)

// ClassifyScore maps a risk score to its status tier.
// The thresholds are fixed and not configurable per transaction.
func ClassifyScore(score int) TransactionStatus {
	switch {
	case score <= SafeThreshold:
		return StatusSafe
	case score <= SuspiciousThreshold:
		return StatusSuspicious
	default:
		return StatusHighRisk
	}
}

// IsValid reports whether s is one of the known tiers
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusSafe, StatusSuspicious, StatusHighRisk:
		return true
	}
	return false
}

// Label returns the human readable tier name
func (s TransactionStatus) Label() string {
	switch s {
	case StatusSafe:
		return "Safe"
	case StatusSuspicious:
		return "Suspicious"
	case StatusHighRisk:
		return "High Risk"
	default:
		return string(s)
	}
}

// Currency represents supported currency codes
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

// DeviceInfo captures the device fingerprint submitted for a transaction.
// IsKnown is tri-state: nil means the caller could not tell.
type DeviceInfo struct {
	Type        string `json:"type,omitempty"`
	OS          string `json:"os,omitempty"`
	Browser     string `json:"browser,omitempty"`
	IsKnown     *bool  `json:"is_known,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Clone returns a deep copy so callers never share the IsKnown pointer
func (d *DeviceInfo) Clone() *DeviceInfo {
	if d == nil {
		return nil
	}
	c := *d
	if d.IsKnown != nil {
		known := *d.IsKnown
		c.IsKnown = &known
	}
	return &c
}

// IsEmpty reports whether no attribute was supplied at all
func (d *DeviceInfo) IsEmpty() bool {
	return d == nil || (d.Type == "" && d.OS == "" && d.Browser == "" && d.IsKnown == nil && d.Fingerprint == "")
}

// Transaction is the aggregate the risk engine scores.
// RiskScore and Status only change together through ApplyScore.
type Transaction struct {
	ID       uuid.UUID       `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`

	// Evidence
	Location     *string     `json:"location"`
	MerchantType *string     `json:"merchant_type"`
	DeviceInfo   *DeviceInfo `json:"device_info"`
	OTPVerified  bool        `json:"otp_verified"`

	IPAddress    *string `json:"ip_address"`
	CardLastFour *string `json:"card_last_four"`

	// Risk
	RiskScore int               `json:"risk_score"`
	Status    TransactionStatus `json:"status"`

	// Version is bumped on every persisted write and used for optimistic locking
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTransaction creates a transaction at score 0
func NewTransaction(amount decimal.Decimal, currency Currency, location string, createdAt time.Time) *Transaction {
	tx := &Transaction{
		ID:        uuid.New(),
		Amount:    amount,
		Currency:  currency,
		RiskScore: MinRiskScore,
		Status:    ClassifyScore(MinRiskScore),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if loc := strings.TrimSpace(location); loc != "" {
		tx.Location = &loc
	}
	return tx
}

// Clone returns a deep copy of the transaction
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Location = cloneString(t.Location)
	c.MerchantType = cloneString(t.MerchantType)
	c.IPAddress = cloneString(t.IPAddress)
	c.CardLastFour = cloneString(t.CardLastFour)
	c.DeviceInfo = t.DeviceInfo.Clone()
	return &c
}

// HasMerchant reports whether a merchant type was already recorded
func (t *Transaction) HasMerchant() bool {
	return t.MerchantType != nil && *t.MerchantType != ""
}

// HasDevice reports whether device info was already recorded
func (t *Transaction) HasDevice() bool {
	return t.DeviceInfo != nil
}

// LocationValue returns the location or an empty string
func (t *Transaction) LocationValue() string {
	if t.Location == nil {
		return ""
	}
	return *t.Location
}

// MerchantValue returns the merchant type or an empty string
func (t *Transaction) MerchantValue() string {
	if t.MerchantType == nil {
		return ""
	}
	return *t.MerchantType
}

// ApplyScore sets the risk score and re-derives the status from it
func (t *Transaction) ApplyScore(score int, at time.Time) {
	t.RiskScore = score
	t.Status = ClassifyScore(score)
	t.touch(at)
}

// SetMerchantType records the merchant category. It can only happen once.
func (t *Transaction) SetMerchantType(merchantType string, at time.Time) error {
	if t.HasMerchant() {
		return ErrMerchantAlreadySet
	}
	merchantType = strings.TrimSpace(merchantType)
	if merchantType == "" {
		return ErrInvalidMerchantType
	}
	t.MerchantType = &merchantType
	t.touch(at)
	return nil
}

// SetDeviceInfo records the device fingerprint. It can only happen once.
func (t *Transaction) SetDeviceInfo(info *DeviceInfo, at time.Time) error {
	if t.HasDevice() {
		return ErrDeviceAlreadySet
	}
	if info == nil {
		return ErrInvalidDeviceInfo
	}
	t.DeviceInfo = info.Clone()
	t.touch(at)
	return nil
}

// MarkOTPVerified flips the OTP flag. Verification never reverts.
func (t *Transaction) MarkOTPVerified(at time.Time) error {
	if t.OTPVerified {
		return ErrOTPAlreadyVerified
	}
	t.OTPVerified = true
	t.touch(at)
	return nil
}

// IsHighValue determines if this is a high-value transaction
func (t *Transaction) IsHighValue(threshold decimal.Decimal) bool {
	return t.Amount.GreaterThanOrEqual(threshold)
}

// Validate performs basic validation on the transaction
func (t *Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return ErrInvalidTransactionID
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if t.Amount.IsZero() {
		return ErrZeroAmount
	}
	if t.Currency == "" {
		return ErrMissingCurrency
	}
	if t.RiskScore < MinRiskScore || t.RiskScore > MaxRiskScore {
		return ErrInvalidRiskScore
	}
	if t.Status != ClassifyScore(t.RiskScore) {
		return ErrStatusMismatch
	}
	return nil
}

func (t *Transaction) touch(at time.Time) {
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
