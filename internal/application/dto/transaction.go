package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fraud-risk-engine/internal/domain/transaction"
)

// CreateTransactionRequest represents a request to create and score a new transaction.
// Amount accepts a JSON number or a decimal string.
type CreateTransactionRequest struct {
	Amount       *decimal.Decimal `json:"amount" validate:"required"`
	Currency     string           `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Location     string           `json:"location,omitempty" validate:"omitempty,max=255"`
	IPAddress    string           `json:"ip_address,omitempty" validate:"omitempty,ip"`
	CardLastFour string           `json:"card_last_four,omitempty" validate:"omitempty,len=4,numeric"`
}

// ToInput converts the request to the domain creation input
func (r *CreateTransactionRequest) ToInput() (transaction.CreateInput, error) {
	if r.Amount == nil {
		return transaction.CreateInput{}, fmt.Errorf("%w: amount is required", transaction.ErrInvalidAmount)
	}
	return transaction.CreateInput{
		Amount:       *r.Amount,
		Currency:     transaction.Currency(strings.ToUpper(r.Currency)),
		Location:     r.Location,
		IPAddress:    r.IPAddress,
		CardLastFour: r.CardLastFour,
	}, nil
}

// DataReceived is the audit snapshot recorded on creation events
func (r *CreateTransactionRequest) DataReceived() map[string]any {
	data := map[string]any{}
	if r.Amount != nil {
		data["amount"] = r.Amount.String()
	}
	if r.Currency != "" {
		data["currency"] = strings.ToUpper(r.Currency)
	}
	if r.Location != "" {
		data["location"] = r.Location
	}
	return data
}

// MerchantRequest submits the merchant category of a transaction
type MerchantRequest struct {
	MerchantType string `json:"merchant_type" validate:"required,max=100"`
}

// DataReceived is the audit snapshot recorded on merchant events
func (r *MerchantRequest) DataReceived() map[string]any {
	return map[string]any{"merchant_type": strings.TrimSpace(r.MerchantType)}
}

// DeviceRequest submits device fingerprint data of a transaction
type DeviceRequest struct {
	Type        string `json:"type,omitempty" validate:"omitempty,max=50"`
	OS          string `json:"os,omitempty" validate:"omitempty,max=50"`
	Browser     string `json:"browser,omitempty" validate:"omitempty,max=50"`
	IsKnown     *bool  `json:"is_known,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty" validate:"omitempty,max=255"`
}

// ToDeviceInfo converts the request to the domain device info
func (r *DeviceRequest) ToDeviceInfo() *transaction.DeviceInfo {
	info := &transaction.DeviceInfo{
		Type:        strings.TrimSpace(r.Type),
		OS:          strings.TrimSpace(r.OS),
		Browser:     strings.TrimSpace(r.Browser),
		Fingerprint: strings.TrimSpace(r.Fingerprint),
	}
	if r.IsKnown != nil {
		known := *r.IsKnown
		info.IsKnown = &known
	}
	return info
}

// DataReceived is the audit snapshot recorded on device events
func (r *DeviceRequest) DataReceived() map[string]any {
	device := map[string]any{}
	if r.Type != "" {
		device["type"] = r.Type
	}
	if r.OS != "" {
		device["os"] = r.OS
	}
	if r.Browser != "" {
		device["browser"] = r.Browser
	}
	if r.IsKnown != nil {
		device["is_known"] = *r.IsKnown
	}
	if r.Fingerprint != "" {
		device["fingerprint"] = r.Fingerprint
	}
	return map[string]any{"device_info": device}
}

// DeviceInfoResponse mirrors transaction.DeviceInfo on the wire
type DeviceInfoResponse struct {
	Type        string `json:"type,omitempty"`
	OS          string `json:"os,omitempty"`
	Browser     string `json:"browser,omitempty"`
	IsKnown     *bool  `json:"is_known,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID           uuid.UUID           `json:"id"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
	Location     *string             `json:"location"`
	MerchantType *string             `json:"merchant_type"`
	DeviceInfo   *DeviceInfoResponse `json:"device_info"`
	OTPVerified  bool                `json:"otp_verified"`
	IPAddress    *string             `json:"ip_address,omitempty"`
	CardLastFour *string             `json:"card_last_four,omitempty"`

	RiskScore   int    `json:"risk_score"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	Version     int64  `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTransactionResponse maps a domain transaction to its API shape
func NewTransactionResponse(tx *transaction.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:           tx.ID,
		Amount:       tx.Amount,
		Currency:     string(tx.Currency),
		Location:     tx.Location,
		MerchantType: tx.MerchantType,
		OTPVerified:  tx.OTPVerified,
		IPAddress:    tx.IPAddress,
		CardLastFour: tx.CardLastFour,
		RiskScore:    tx.RiskScore,
		Status:       string(tx.Status),
		StatusLabel:  tx.Status.Label(),
		Version:      tx.Version,
		CreatedAt:    tx.CreatedAt,
		UpdatedAt:    tx.UpdatedAt,
	}
	if d := tx.DeviceInfo; d != nil {
		resp.DeviceInfo = &DeviceInfoResponse{
			Type:        d.Type,
			OS:          d.OS,
			Browser:     d.Browser,
			IsKnown:     d.IsKnown,
			Fingerprint: d.Fingerprint,
		}
	}
	return resp
}

// ListTransactionsResponse is a page of transactions
type ListTransactionsResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}
