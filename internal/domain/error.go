package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAmountOutOfRange    = errors.New("amount out of range")
	ErrPlanPriceMismatch   = errors.New("amount does not match plan price")
	ErrUserMissing         = errors.New("user referenced by transaction is missing")
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrLockNotAcquired     = errors.New("lock not acquired")
	ErrOperationFailed     = errors.New("operation failed")
	ErrInvalidExecContext  = errors.New("invalid exec context")
	ErrReadDatabaseRow     = errors.New("read database row")
	ErrGatewayRejected     = errors.New("gateway rejected request")
	ErrGatewayTransient    = errors.New("gateway temporarily unavailable")
	ErrGatewayUnavailable  = fmt.Errorf("gateway circuit open: %w", ErrGatewayTransient)
	ErrNotificationSkipped = errors.New("notification skipped")
)

// GatewayError carries the HTTP status and reason returned by the payment gateway.
// 4xx responses unwrap to ErrGatewayRejected, everything else to ErrGatewayTransient.
type GatewayError struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gateway %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("gateway %s: http %d: %s", e.Op, e.StatusCode, e.Reason)
}

func (e *GatewayError) Unwrap() error {
	if e.Permanent() {
		return ErrGatewayRejected
	}
	return ErrGatewayTransient
}

// Permanent reports whether retrying the same request cannot succeed.
func (e *GatewayError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
