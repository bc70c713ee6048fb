package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	fraudapp "fraud-risk-engine/internal/application/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

var badRequestErrors = []error{
	transaction.ErrInvalidTransactionID,
	transaction.ErrNegativeAmount,
	transaction.ErrZeroAmount,
	transaction.ErrInvalidAmount,
	transaction.ErrAmountTooLarge,
	transaction.ErrMissingCurrency,
	transaction.ErrInvalidCurrency,
	transaction.ErrInvalidCardLastFour,
	transaction.ErrInvalidMerchantType,
	transaction.ErrInvalidDeviceInfo,
	fraudapp.ErrInvalidStatusFilter,
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, transaction.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, transaction.ErrVersionConflict),
		errors.Is(err, transaction.ErrLockTimeout):
		return http.StatusConflict
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationDetails flattens validator errors into readable messages
func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			details = append(details, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			details = append(details, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return details
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
