package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeBody decodes the JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// idParam reads a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ErrValidation{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notConfigured *domain.ErrNotConfigured
	var setupIncomplete *domain.ErrSetupIncomplete
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var unavailable *domain.ErrStoreUnavailable
	var validation *domain.ErrValidation
	var insufficientFunds *domain.ErrInsufficientFunds
	var conflict *domain.ErrConflict
	var partial *domain.ErrPartialWrite

	switch {
	case errors.As(err, &notConfigured):
		logger.Warn("store not configured", zap.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &setupIncomplete):
		logger.Warn("store setup incomplete")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &partial):
		logger.Error("partial write",
			zap.String("operation", partial.Operation),
			zap.String("operation_id", partial.OperationID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "operation partially applied: "+partial.OperationID)
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &unavailable):
		logger.Error("store unavailable", zap.String("table", unavailable.Table), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &insufficientFunds):
		logger.Warn("insufficient funds",
			zap.String("available", insufficientFunds.Available.StringFixed(2)),
			zap.String("required", insufficientFunds.Required.StringFixed(2)),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
