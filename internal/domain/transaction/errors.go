package transaction

import "errors"

var (
	// ErrTransactionNotFound is returned when a transaction cannot be found
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTransactionID is returned when the transaction ID is invalid
	ErrInvalidTransactionID = errors.New("invalid transaction ID")

	// ErrNegativeAmount is returned when transaction amount is negative
	ErrNegativeAmount = errors.New("transaction amount cannot be negative")

	// ErrZeroAmount is returned when transaction amount is zero
	ErrZeroAmount = errors.New("transaction amount cannot be zero")

	// ErrInvalidAmount is returned when the amount format is invalid
	ErrInvalidAmount = errors.New("invalid transaction amount")

	// ErrAmountTooLarge is returned when the amount exceeds the configured maximum
	ErrAmountTooLarge = errors.New("transaction amount exceeds maximum")

	// ErrMissingCurrency is returned when currency is not specified
	ErrMissingCurrency = errors.New("transaction currency is required")

	// ErrInvalidCurrency is returned for unsupported currency codes
	ErrInvalidCurrency = errors.New("unsupported currency")

	// ErrInvalidCardLastFour is returned when card_last_four is not four digits
	ErrInvalidCardLastFour = errors.New("card last four must be 4 digits")

	// ErrInvalidRiskScore is returned when a score falls outside [0,100]
	ErrInvalidRiskScore = errors.New("risk score must be between 0 and 100")

	// ErrStatusMismatch is returned when status was not derived from the score
	ErrStatusMismatch = errors.New("transaction status does not match risk score")

	// ErrInvalidMerchantType is returned for an empty merchant category
	ErrInvalidMerchantType = errors.New("merchant type is required")

	// ErrInvalidDeviceInfo is returned for missing or malformed device info
	ErrInvalidDeviceInfo = errors.New("invalid device info")

	// ErrMerchantAlreadySet is returned when the merchant type was already recorded
	ErrMerchantAlreadySet = errors.New("merchant type already set")

	// ErrDeviceAlreadySet is returned when device info was already recorded
	ErrDeviceAlreadySet = errors.New("device info already set")

	// ErrOTPAlreadyVerified is returned when OTP verification was already recorded
	ErrOTPAlreadyVerified = errors.New("otp already verified")

	// ErrVersionConflict is returned when a concurrent writer updated the row first
	ErrVersionConflict = errors.New("transaction was modified concurrently")

	// ErrLockTimeout is returned when the per-transaction writer lock could not be acquired in time
	ErrLockTimeout = errors.New("timed out waiting for transaction lock")
)
