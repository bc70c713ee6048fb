package transaction

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateInput is the caller payload for a new transaction
type CreateInput struct {
	Amount       decimal.Decimal
	Currency     Currency
	Location     string
	IPAddress    string
	CardLastFour string
}

// Service validates and builds transactions before they reach the risk engine.
// The engine assumes validated input and never re-checks it.
type Service struct {
	maxTransactionAmount decimal.Decimal
	minTransactionAmount decimal.Decimal
	defaultCurrency      Currency
	supportedCurrencies  map[Currency]bool
	now                  func() time.Time
}

var cardLastFourPattern = regexp.MustCompile(`^[0-9]{4}$`)

// NewService creates a new transaction service
func NewService() *Service {
	return &Service{
		maxTransactionAmount: decimal.NewFromInt(1000000), // $1M default max
		minTransactionAmount: decimal.NewFromFloat(0.01),  // $0.01 default min
		defaultCurrency:      USD,
		supportedCurrencies: map[Currency]bool{
			USD: true,
			EUR: true,
			GBP: true,
		},
		now: time.Now,
	}
}

// SetMaxTransactionAmount sets the maximum allowed transaction amount
func (s *Service) SetMaxTransactionAmount(amount decimal.Decimal) {
	s.maxTransactionAmount = amount
}

// SetMinTransactionAmount sets the minimum allowed transaction amount
func (s *Service) SetMinTransactionAmount(amount decimal.Decimal) {
	s.minTransactionAmount = amount
}

// SetDefaultCurrency sets the currency used when the caller omits one
func (s *Service) SetDefaultCurrency(c Currency) {
	c = Currency(strings.ToUpper(strings.TrimSpace(string(c))))
	s.defaultCurrency = c
	s.supportedCurrencies[c] = true
}

// SetSupportedCurrencies replaces the accepted currency codes. The default
// currency always stays accepted.
func (s *Service) SetSupportedCurrencies(codes []Currency) {
	supported := make(map[Currency]bool, len(codes)+1)
	for _, c := range codes {
		supported[Currency(strings.ToUpper(string(c)))] = true
	}
	supported[s.defaultCurrency] = true
	s.supportedCurrencies = supported
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the service clock reading
func (s *Service) Now() time.Time {
	return s.now()
}

// NewTransaction validates input and returns an unscored transaction
func (s *Service) NewTransaction(in CreateInput) (*Transaction, error) {
	if err := s.validateAmount(in.Amount); err != nil {
		return nil, err
	}

	currency := Currency(strings.ToUpper(strings.TrimSpace(string(in.Currency))))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if !s.supportedCurrencies[currency] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}

	tx := NewTransaction(in.Amount, currency, in.Location, s.now())

	if ip := strings.TrimSpace(in.IPAddress); ip != "" {
		tx.IPAddress = &ip
	}
	if last4 := strings.TrimSpace(in.CardLastFour); last4 != "" {
		if !cardLastFourPattern.MatchString(last4) {
			return nil, ErrInvalidCardLastFour
		}
		tx.CardLastFour = &last4
	}

	return tx, nil
}

// ValidateDeviceInfo rejects device payloads that carry no attribute at all
func (s *Service) ValidateDeviceInfo(info *DeviceInfo) error {
	if info.IsEmpty() {
		return ErrInvalidDeviceInfo
	}
	return nil
}

func (s *Service) validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	// cents are the finest unit stored
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("%w: more than 2 decimal places", ErrInvalidAmount)
	}
	if amount.LessThan(s.minTransactionAmount) {
		return fmt.Errorf("%w: below minimum %s", ErrInvalidAmount, s.minTransactionAmount)
	}
	if amount.GreaterThan(s.maxTransactionAmount) {
		return fmt.Errorf("%w: %s > %s", ErrAmountTooLarge, amount, s.maxTransactionAmount)
	}
	return nil
}
