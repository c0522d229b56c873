package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"pix-subscription/internal/domain"
)

type errorBody struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor classifies err for the HTTP boundary.
func statusFor(err error) (int, errorBody) {
	var gwErr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrAmountOutOfRange),
		errors.Is(err, domain.ErrPlanPriceMismatch),
		errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.As(err, &gwErr) && gwErr.Permanent():
		return http.StatusUnprocessableEntity, errorBody{Error: "payment gateway rejected the request", Reason: gwErr.Reason}
	case errors.Is(err, domain.ErrGatewayRejected):
		return http.StatusUnprocessableEntity, errorBody{Error: "payment gateway rejected the request"}
	case errors.Is(err, domain.ErrGatewayTransient):
		return http.StatusServiceUnavailable, errorBody{Error: "payment gateway unavailable", Retryable: true}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "too many requests", Retryable: true}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Error: "unauthorized"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error"}
	}
}

func writeError(w http.ResponseWriter, err error) int {
	code, body := statusFor(err)
	writeJSON(w, code, body)
	return code
}
