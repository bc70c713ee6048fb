package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fraud-risk-engine/internal/domain/transaction"
)

// TransactionModel is the database model for transactions
type TransactionModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Amount       decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency     string          `gorm:"type:varchar(3);not null"`
	Location     *string         `gorm:"type:text"`
	MerchantType *string         `gorm:"type:varchar(100)"`
	DeviceInfo   *string         `gorm:"type:jsonb"`
	OTPVerified  bool            `gorm:"not null;default:false"`
	IPAddress    *string         `gorm:"type:varchar(45)"`
	CardLastFour *string         `gorm:"type:varchar(4)"`
	RiskScore    int             `gorm:"not null;default:0;check:chk_transactions_risk_score,risk_score BETWEEN 0 AND 100"`
	Status       string          `gorm:"type:varchar(20);index;not null"`
	Version      int64           `gorm:"not null;default:0"`
	CreatedAt    time.Time       `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt    time.Time       `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for transactions
func (TransactionModel) TableName() string {
	return "transactions"
}

// TransactionRepository implements transaction.Repository
type TransactionRepository struct {
	db *gorm.DB
}

var _ transaction.Repository = (*TransactionRepository)(nil)

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(client *Client) *TransactionRepository {
	return &TransactionRepository{db: client.DB()}
}

// Create stores a new transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	model, err := transactionToModel(tx)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	var model TransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transaction.ErrTransactionNotFound
		}
		return nil, err
	}
	return modelToTransaction(&model)
}

// Update writes the mutable columns guarded by the version check
func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction, expectedVersion int64) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	device, err := marshalDevice(tx.DeviceInfo)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&TransactionModel{}).
		Where("id = ? AND version = ?", tx.ID, expectedVersion).
		Updates(map[string]interface{}{
			"risk_score":    tx.RiskScore,
			"status":        string(tx.Status),
			"merchant_type": tx.MerchantType,
			"device_info":   device,
			"otp_verified":  tx.OTPVerified,
			"version":       expectedVersion + 1,
			"updated_at":    tx.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&TransactionModel{}).Where("id = ?", tx.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return transaction.ErrTransactionNotFound
		}
		return transaction.ErrVersionConflict
	}

	tx.Version = expectedVersion + 1
	return nil
}

// List retrieves transactions, newest first
func (r *TransactionRepository) List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var models []TransactionModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	transactions := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		tx, err := modelToTransaction(&models[i])
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func transactionToModel(tx *transaction.Transaction) (*TransactionModel, error) {
	device, err := marshalDevice(tx.DeviceInfo)
	if err != nil {
		return nil, err
	}
	return &TransactionModel{
		ID:           tx.ID,
		Amount:       tx.Amount,
		Currency:     string(tx.Currency),
		Location:     tx.Location,
		MerchantType: tx.MerchantType,
		DeviceInfo:   device,
		OTPVerified:  tx.OTPVerified,
		IPAddress:    tx.IPAddress,
		CardLastFour: tx.CardLastFour,
		RiskScore:    tx.RiskScore,
		Status:       string(tx.Status),
		Version:      tx.Version,
		CreatedAt:    tx.CreatedAt,
		UpdatedAt:    tx.UpdatedAt,
	}, nil
}

func modelToTransaction(m *TransactionModel) (*transaction.Transaction, error) {
	tx := &transaction.Transaction{
		ID:           m.ID,
		Amount:       m.Amount,
		Currency:     transaction.Currency(m.Currency),
		Location:     m.Location,
		MerchantType: m.MerchantType,
		OTPVerified:  m.OTPVerified,
		IPAddress:    m.IPAddress,
		CardLastFour: m.CardLastFour,
		RiskScore:    m.RiskScore,
		Status:       transaction.TransactionStatus(m.Status),
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.DeviceInfo != nil {
		var info transaction.DeviceInfo
		if err := json.Unmarshal([]byte(*m.DeviceInfo), &info); err != nil {
			return nil, fmt.Errorf("transaction %s: decode device_info: %w", m.ID, err)
		}
		tx.DeviceInfo = &info
	}
	return tx, nil
}

func marshalDevice(info *transaction.DeviceInfo) (*string, error) {
	if info == nil {
		return nil, nil
	}
	b, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode device_info: %w", err)
	}
	s := string(b)
	return &s, nil
}
