package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/application/dto"
	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

// Metrics is the subset of instrumentation the use case reports to
type Metrics interface {
	ObserveEvaluation(stage string, applied bool, status string, score int, d time.Duration)
	RuleFired(rule string, scoreChange int)
	WriteConflict(stage string)
	PublishFailed()
}

type noopMetrics struct{}

func (noopMetrics) ObserveEvaluation(string, bool, string, int, time.Duration) {}
func (noopMetrics) RuleFired(string, int)                                       {}
func (noopMetrics) WriteConflict(string)                                        {}
func (noopMetrics) PublishFailed()                                              {}

// evidenceStep describes one non-creation evidence submission
type evidenceStep struct {
	stage      fraud.Stage
	data       map[string]any
	noopReason string
	evaluate   func(tx *transaction.Transaction) *fraud.RuleResult
	record     func(tx *transaction.Transaction, at time.Time) error
}

// ProcessTransactionUseCase drives every evidence stage through
// read, evaluate, fold and persist
type ProcessTransactionUseCase struct {
	// Domain services
	txService *transaction.Service
	engine    fraud.RuleEngine
	recorder  *fraud.Recorder

	// Collaborators
	txRepo    transaction.Repository
	uow       fraud.UnitOfWork
	locker    transaction.Locker
	publisher fraud.EventPublisher
	metrics   Metrics
	logger    *zap.Logger

	// Configs
	maxWriteRetries int
}

// NewProcessTransactionUseCase creates a new use case instance.
// publisher and metrics may be nil.
func NewProcessTransactionUseCase(
	txService *transaction.Service,
	engine fraud.RuleEngine,
	txRepo transaction.Repository,
	uow fraud.UnitOfWork,
	locker transaction.Locker,
	publisher fraud.EventPublisher,
	metrics Metrics,
	logger *zap.Logger,
) *ProcessTransactionUseCase {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessTransactionUseCase{
		txService:       txService,
		engine:          engine,
		recorder:        fraud.NewRecorder(txService.Now),
		txRepo:          txRepo,
		uow:             uow,
		locker:          locker,
		publisher:       publisher,
		metrics:         metrics,
		logger:          logger,
		maxWriteRetries: 3,
	}
}

// SetMaxWriteRetries sets how many times a lost optimistic write is retried
func (uc *ProcessTransactionUseCase) SetMaxWriteRetries(n int) {
	if n >= 0 {
		uc.maxWriteRetries = n
	}
}

// Create validates, scores and stores a new transaction with its creation events
func (uc *ProcessTransactionUseCase) Create(
	ctx context.Context,
	req *dto.CreateTransactionRequest,
) (*dto.EvaluationResponse, error) {
	startTime := time.Now()

	input, err := req.ToInput()
	if err != nil {
		return nil, err
	}

	tx, err := uc.txService.NewTransaction(input)
	if err != nil {
		return nil, err
	}

	results := uc.engine.EvaluateCreation(tx)
	outcome := fraud.Fold(tx, fraud.EventTransactionCreated, req.DataReceived(), results, uc.recorder)
	tx.ApplyScore(outcome.Score, lastEventTime(outcome, tx.UpdatedAt))

	err = uc.uow.WithinTx(ctx, func(txs transaction.Repository, events fraud.EventRepository) error {
		if err := txs.Create(ctx, tx); err != nil {
			return err
		}
		if outcome.Changed() {
			return events.Append(ctx, outcome.Events...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	uc.afterWrite(ctx, fraud.StageCreation, tx, outcome, startTime)

	return buildResponse(tx, outcome, true, "", time.Since(startTime)), nil
}

// SubmitMerchant records the merchant category and scores it.
// A second submission is a no-op.
func (uc *ProcessTransactionUseCase) SubmitMerchant(
	ctx context.Context,
	id uuid.UUID,
	req *dto.MerchantRequest,
) (*dto.EvaluationResponse, error) {
	data := req.DataReceived()
	merchantType, _ := data["merchant_type"].(string)
	if merchantType == "" {
		return nil, transaction.ErrInvalidMerchantType
	}

	return uc.submit(ctx, id, evidenceStep{
		stage:      fraud.StageMerchant,
		data:       data,
		noopReason: transaction.ErrMerchantAlreadySet.Error(),
		evaluate: func(tx *transaction.Transaction) *fraud.RuleResult {
			return uc.engine.EvaluateMerchant(tx, merchantType)
		},
		record: func(tx *transaction.Transaction, at time.Time) error {
			return tx.SetMerchantType(merchantType, at)
		},
	})
}

// SubmitDevice records device info and scores it.
// A second submission is a no-op.
func (uc *ProcessTransactionUseCase) SubmitDevice(
	ctx context.Context,
	id uuid.UUID,
	req *dto.DeviceRequest,
) (*dto.EvaluationResponse, error) {
	info := req.ToDeviceInfo()
	if err := uc.txService.ValidateDeviceInfo(info); err != nil {
		return nil, err
	}

	return uc.submit(ctx, id, evidenceStep{
		stage:      fraud.StageDevice,
		data:       req.DataReceived(),
		noopReason: transaction.ErrDeviceAlreadySet.Error(),
		evaluate: func(tx *transaction.Transaction) *fraud.RuleResult {
			return uc.engine.EvaluateDevice(tx, info)
		},
		record: func(tx *transaction.Transaction, at time.Time) error {
			return tx.SetDeviceInfo(info, at)
		},
	})
}

// VerifyOTP marks the transaction OTP-verified and scores it.
// Re-verification is a no-op.
func (uc *ProcessTransactionUseCase) VerifyOTP(
	ctx context.Context,
	id uuid.UUID,
) (*dto.EvaluationResponse, error) {
	return uc.submit(ctx, id, evidenceStep{
		stage:      fraud.StageOTP,
		data:       map[string]any{"otp_verified": true},
		noopReason: transaction.ErrOTPAlreadyVerified.Error(),
		evaluate:   uc.engine.EvaluateOTP,
		record: func(tx *transaction.Transaction, at time.Time) error {
			return tx.MarkOTPVerified(at)
		},
	})
}

// submit holds the writer lock for id and retries lost optimistic writes
// with a fresh read each time
func (uc *ProcessTransactionUseCase) submit(
	ctx context.Context,
	id uuid.UUID,
	step evidenceStep,
) (*dto.EvaluationResponse, error) {
	startTime := time.Now()

	lease, err := uc.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			uc.logger.Warn("failed to release transaction lock",
				zap.String("transaction_id", id.String()),
				zap.Error(err),
			)
		}
	}()

	for attempt := 0; ; attempt++ {
		resp, err := uc.attempt(ctx, id, step, startTime)
		if errors.Is(err, transaction.ErrVersionConflict) && attempt < uc.maxWriteRetries {
			uc.metrics.WriteConflict(string(step.stage))
			uc.logger.Info("version conflict, retrying with fresh read",
				zap.String("transaction_id", id.String()),
				zap.String("stage", string(step.stage)),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if errors.Is(err, transaction.ErrVersionConflict) {
			uc.metrics.WriteConflict(string(step.stage))
		}
		return resp, err
	}
}

func (uc *ProcessTransactionUseCase) attempt(
	ctx context.Context,
	id uuid.UUID,
	step evidenceStep,
	startTime time.Time,
) (*dto.EvaluationResponse, error) {
	current, err := uc.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := step.evaluate(current)
	if result == nil {
		outcome := fraud.Outcome{PreviousScore: current.RiskScore, Score: current.RiskScore, Status: current.Status}
		uc.metrics.ObserveEvaluation(string(step.stage), false, string(current.Status), current.RiskScore, time.Since(startTime))
		uc.logger.Debug("evidence submission ignored",
			zap.String("transaction_id", id.String()),
			zap.String("stage", string(step.stage)),
			zap.String("reason", step.noopReason),
		)
		return buildResponse(current, outcome, false, step.noopReason, time.Since(startTime)), nil
	}

	expectedVersion := current.Version
	tx := current.Clone()

	outcome := fraud.Fold(tx, step.stage.EventType(), step.data, []fraud.RuleResult{*result}, uc.recorder)
	at := lastEventTime(outcome, tx.UpdatedAt)
	if err := step.record(tx, at); err != nil {
		return nil, err
	}
	tx.ApplyScore(outcome.Score, at)

	err = uc.uow.WithinTx(ctx, func(txs transaction.Repository, events fraud.EventRepository) error {
		if err := txs.Update(ctx, tx, expectedVersion); err != nil {
			return err
		}
		return events.Append(ctx, outcome.Events...)
	})
	if err != nil {
		if errors.Is(err, transaction.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store %s evaluation: %w", step.stage, err)
	}

	uc.afterWrite(ctx, step.stage, tx, outcome, startTime)

	return buildResponse(tx, outcome, true, "", time.Since(startTime)), nil
}

// afterWrite reports a committed outcome. Publish failures never fail the
// request because the store already holds the events.
func (uc *ProcessTransactionUseCase) afterWrite(
	ctx context.Context,
	stage fraud.Stage,
	tx *transaction.Transaction,
	outcome fraud.Outcome,
	startTime time.Time,
) {
	for _, e := range outcome.Events {
		uc.metrics.RuleFired(e.RuleTriggered, e.ScoreChange)
	}
	uc.metrics.ObserveEvaluation(string(stage), true, string(outcome.Status), outcome.Score, time.Since(startTime))

	uc.logger.Info("transaction scored",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("stage", string(stage)),
		zap.Int("previous_score", outcome.PreviousScore),
		zap.Int("risk_score", outcome.Score),
		zap.String("status", string(outcome.Status)),
		zap.Int("events", len(outcome.Events)),
	)

	if uc.publisher == nil || !outcome.Changed() {
		return
	}
	if err := uc.publisher.PublishRiskEvents(ctx, tx, outcome.Events); err != nil {
		uc.metrics.PublishFailed()
		uc.logger.Error("failed to publish risk events",
			zap.String("transaction_id", tx.ID.String()),
			zap.Error(err),
		)
	}
}

func lastEventTime(outcome fraud.Outcome, fallback time.Time) time.Time {
	if n := len(outcome.Events); n > 0 {
		return outcome.Events[n-1].CreatedAt
	}
	return fallback
}

// buildResponse constructs the API response
func buildResponse(
	tx *transaction.Transaction,
	outcome fraud.Outcome,
	applied bool,
	reason string,
	processingTime time.Duration,
) *dto.EvaluationResponse {
	return &dto.EvaluationResponse{
		Applied:          applied,
		Reason:           reason,
		PreviousScore:    outcome.PreviousScore,
		RiskScore:        tx.RiskScore,
		Status:           string(tx.Status),
		Transaction:      dto.NewTransactionResponse(tx),
		Events:           dto.NewRiskEventResponses(outcome.Events),
		ProcessingTimeMs: processingTime.Milliseconds(),
	}
}
