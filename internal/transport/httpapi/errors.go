package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func newInvalidRequestError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{domain.ErrInvalidRequest}, args...)...)
}

// mapError переводит доменную ошибку в HTTP-статус и код внешнего контракта.
// Внутренние детали (SQL, стеки) наружу не утекают.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case domain.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAmountMismatchClient):
		return http.StatusBadRequest, "amount_mismatch"
	case errors.Is(err, domain.ErrAmountTooLow):
		return http.StatusBadRequest, "amount_too_low"
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, domain.ErrNotPayable):
		return http.StatusConflict, "not_payable"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case domain.IsVersionConflict(err):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusConflict, "idempotency_conflict"
	case errors.Is(err, domain.ErrGatewayConfirmFailed):
		return http.StatusBadGateway, "gateway_confirm_failed"
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrMemberRequired):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	message := ""
	if status != http.StatusInternalServerError {
		message = err.Error()
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
