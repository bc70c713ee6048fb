package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/application/dto"
	fraudapp "fraud-risk-engine/internal/application/fraud"
	txapp "fraud-risk-engine/internal/application/transaction"
	"fraud-risk-engine/internal/domain/transaction"
)

// TransactionHandler handles transaction scoring and audit HTTP requests
type TransactionHandler struct {
	processUseCase *txapp.ProcessTransactionUseCase
	auditUseCase   *fraudapp.AuditTrailUseCase
	validate       *validator.Validate
	logger         *zap.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(
	processUseCase *txapp.ProcessTransactionUseCase,
	auditUseCase *fraudapp.AuditTrailUseCase,
	logger *zap.Logger,
) *TransactionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionHandler{
		processUseCase: processUseCase,
		auditUseCase:   auditUseCase,
		validate:       newValidator(),
		logger:         logger,
	}
}

// CreateTransaction handles POST /api/v1/transactions
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err)...)
		return
	}

	result, err := h.processUseCase.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "Failed to create transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListTransactions handles GET /api/v1/transactions
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := transaction.ListFilter{Status: transaction.TransactionStatus(query.Get("status"))}

	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	result, err := h.auditUseCase.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "Failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetTransaction handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	result, err := h.auditUseCase.GetTransaction(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SubmitMerchant handles POST /api/v1/transactions/{id}/merchant
func (h *TransactionHandler) SubmitMerchant(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	var req dto.MerchantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err)...)
		return
	}

	result, err := h.processUseCase.SubmitMerchant(r.Context(), id, &req)
	if err != nil {
		h.fail(w, r, "Failed to evaluate merchant data", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SubmitDevice handles POST /api/v1/transactions/{id}/device
func (h *TransactionHandler) SubmitDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	var req dto.DeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", validationDetails(err)...)
		return
	}

	result, err := h.processUseCase.SubmitDevice(r.Context(), id, &req)
	if err != nil {
		h.fail(w, r, "Failed to evaluate device data", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// VerifyOTP handles POST /api/v1/transactions/{id}/otp
func (h *TransactionHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	result, err := h.processUseCase.VerifyOTP(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to record OTP verification", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListEvents handles GET /api/v1/transactions/{id}/events
func (h *TransactionHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	events, err := h.auditUseCase.ListEvents(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to list events", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// VerifyAuditTrail handles GET /api/v1/transactions/{id}/audit
func (h *TransactionHandler) VerifyAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	report, err := h.auditUseCase.VerifyAuditTrail(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to verify audit trail", err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// fail writes the mapped status. Internal errors are logged and not echoed.
func (h *TransactionHandler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message,
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, message)
		return
	}
	writeError(w, status, err.Error())
}

func transactionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		writeError(w, http.StatusBadRequest, "Transaction ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
