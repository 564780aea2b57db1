package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jyush98/jason-co-ecom-sub003/internal/catalog"
	"github.com/jyush98/jason-co-ecom-sub003/internal/checkout"
	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	r "github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

// handleServiceError maps the domain error classes onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, err error) {
	var (
		notReady   *checkout.StepNotReadyError
		incomplete *d.IncompleteAddressError
		quantity   *d.InvalidQuantityError
		full       *d.CartSizeExceededError
		declined   *d.PaymentDeclinedError
		transition *d.InvalidTransitionError
	)

	switch {
	case errors.Is(err, r.ErrOrderNotFound),
		errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, d.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &incomplete):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(), Code: "incomplete_address", Details: incomplete.Missing,
		})
	case errors.As(err, &notReady):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(), Code: "step_not_ready", Details: notReady.Step,
		})
	case errors.As(err, &quantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.As(err, &full):
		respondError(w, http.StatusUnprocessableEntity, "cart_full", err.Error())
	case errors.As(err, &declined):
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error: err.Error(), Code: "payment_declined", Retryable: true,
		})
	case errors.As(err, &transition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, r.ErrCartConflict):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "conflict", Retryable: true})
	case errors.Is(err, d.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, d.ErrState):
		respondError(w, http.StatusConflict, "state_error", err.Error())
	case errors.Is(err, d.ErrCollaborator):
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: err.Error(), Code: "service_unavailable", Retryable: true,
		})
	case errors.Is(err, context.DeadlineExceeded):
		respondJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: "request timeout", Code: "timeout", Retryable: true})
	default:
		log.Error().Err(err).Msg("unhandled service error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
