package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

// RiskEventModel is the database model for risk events.
// Seq breaks ties between events sharing a timestamp.
type RiskEventModel struct {
	Seq           int64     `gorm:"primaryKey;autoIncrement"`
	ID            uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index:idx_risk_events_stream,priority:1"`
	EventType     string    `gorm:"type:varchar(32);not null"`
	DataReceived  string    `gorm:"type:jsonb;not null"`
	RuleTriggered string    `gorm:"type:varchar(100);not null"`
	ScoreChange   int       `gorm:"not null"`
	NewScore      int       `gorm:"not null;check:chk_risk_events_new_score,new_score BETWEEN 0 AND 100"`
	Explanation   string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false;index:idx_risk_events_stream,priority:2"`
}

// TableName returns the table name for risk events
func (RiskEventModel) TableName() string {
	return "risk_events"
}

// RiskEventRepository implements fraud.EventRepository. Rows are only ever inserted.
type RiskEventRepository struct {
	db *gorm.DB
}

var _ fraud.EventRepository = (*RiskEventRepository)(nil)

// NewRiskEventRepository creates a new risk event repository
func NewRiskEventRepository(client *Client) *RiskEventRepository {
	return &RiskEventRepository{db: client.DB()}
}

// Append inserts events in the given order
func (r *RiskEventRepository) Append(ctx context.Context, events ...fraud.RiskEvent) error {
	if len(events) == 0 {
		return fraud.ErrEmptyEventBatch
	}

	models := make([]RiskEventModel, 0, len(events))
	for _, e := range events {
		model, err := eventToModel(e)
		if err != nil {
			return err
		}
		models = append(models, *model)
	}

	return r.db.WithContext(ctx).Create(&models).Error
}

// ListByTransaction returns a transaction's events, oldest first
func (r *RiskEventRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]fraud.RiskEvent, error) {
	var models []RiskEventModel
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]fraud.RiskEvent, 0, len(models))
	for i := range models {
		e, err := modelToEvent(&models[i])
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func eventToModel(e fraud.RiskEvent) (*RiskEventModel, error) {
	if !e.EventType.IsValid() {
		return nil, fmt.Errorf("%w: %q", fraud.ErrInvalidEventType, e.EventType)
	}

	data := e.DataReceived
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("event %s: encode data_received: %w", e.ID, err)
	}

	return &RiskEventModel{
		ID:            e.ID,
		TransactionID: e.TransactionID,
		EventType:     string(e.EventType),
		DataReceived:  string(raw),
		RuleTriggered: e.RuleTriggered,
		ScoreChange:   e.ScoreChange,
		NewScore:      e.NewScore,
		Explanation:   e.Explanation,
		CreatedAt:     e.CreatedAt,
	}, nil
}

func modelToEvent(m *RiskEventModel) (fraud.RiskEvent, error) {
	var data map[string]any
	if m.DataReceived != "" {
		if err := json.Unmarshal([]byte(m.DataReceived), &data); err != nil {
			return fraud.RiskEvent{}, fmt.Errorf("event %s: decode data_received: %w", m.ID, err)
		}
	}
	return fraud.RiskEvent{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		EventType:     fraud.EventType(m.EventType),
		DataReceived:  data,
		RuleTriggered: m.RuleTriggered,
		ScoreChange:   m.ScoreChange,
		NewScore:      m.NewScore,
		Explanation:   m.Explanation,
		CreatedAt:     m.CreatedAt,
	}, nil
}

// UnitOfWork implements fraud.UnitOfWork with a database transaction
type UnitOfWork struct {
	db *gorm.DB
}

var (
	_ fraud.UnitOfWork     = (*UnitOfWork)(nil)
	_ fraud.SnapshotReader = (*UnitOfWork)(nil)
)

// NewUnitOfWork creates a unit of work over the client's pool
func NewUnitOfWork(client *Client) *UnitOfWork {
	return &UnitOfWork{db: client.DB()}
}

// WithinTx runs fn inside BEGIN/COMMIT, rolling back if fn fails
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(txs transaction.Repository, events fraud.EventRepository) error) error {
	return u.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&TransactionRepository{db: gtx}, &RiskEventRepository{db: gtx})
	})
}

// ReadSnapshot runs fn in a read-only REPEATABLE READ transaction so every
// query sees the same snapshot
func (u *UnitOfWork) ReadSnapshot(ctx context.Context, fn func(txs transaction.Repository, events fraud.EventRepository) error) error {
	return u.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&TransactionRepository{db: gtx}, &RiskEventRepository{db: gtx})
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}
