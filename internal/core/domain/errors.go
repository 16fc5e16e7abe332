package domain

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeChargeNotFound     = "CHARGE_NOT_FOUND"
	ErrCodeRefundNotFound     = "REFUND_NOT_FOUND"
	ErrCodeUnsupportedGateway = "UNSUPPORTED_GATEWAY"

	ErrCodeIllegalState       = "ILLEGAL_STATE"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeRefundNotAvailable = "REFUND_NOT_AVAILABLE"

	ErrCodeConflict                      = "CONFLICT"
	ErrCodeRefundAmountAvailableMismatch = "REFUND_AMOUNT_AVAILABLE_MISMATCH"

	ErrCodeAlreadyInProgress   = "ALREADY_IN_PROGRESS"
	ErrCodeOperationInProgress = "OPERATION_IN_PROGRESS"

	ErrCodeGatewayConnection = "GATEWAY_CONNECTION_ERROR"
	ErrCodeGatewayProcessing = "GATEWAY_PROCESSING_ERROR"
	// The gateway was never called; the client may retry.
	ErrCodeGuardUnavailable = "IN_FLIGHT_GUARD_UNAVAILABLE"
	ErrCodeExecutorStopped  = "EXECUTOR_STOPPED"

	ErrCodeInvalidAmount  = "INVALID_AMOUNT"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
)

var (
	notFoundCodes     = []string{ErrCodeChargeNotFound, ErrCodeRefundNotFound, ErrCodeUnsupportedGateway}
	illegalStateCodes = []string{ErrCodeIllegalState, ErrCodeInvalidTransition, ErrCodeRefundNotAvailable}
	conflictCodes     = []string{ErrCodeConflict, ErrCodeRefundAmountAvailableMismatch}
	inProgressCodes   = []string{ErrCodeAlreadyInProgress, ErrCodeOperationInProgress}
	connectionCodes   = []string{ErrCodeGatewayConnection, ErrCodeGuardUnavailable, ErrCodeExecutorStopped}
	gatewayCodes      = append([]string{ErrCodeGatewayProcessing}, connectionCodes...)
	invalidCodes      = []string{ErrCodeInvalidAmount, ErrCodeInvalidRequest}
)

func NewChargeNotFoundError(externalID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeChargeNotFound,
		Message: fmt.Sprintf("charge %s not found", externalID),
	}
}

func NewRefundNotFoundError(ref string) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundNotFound,
		Message: fmt.Sprintf("refund %s not found", ref),
	}
}

func NewUnsupportedGatewayError(name string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnsupportedGateway,
		Message: fmt.Sprintf("no payment provider registered for gateway %q", name),
	}
}

func NewIllegalStateError(externalID string, current ChargeStatus, accepted []ChargeStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeIllegalState,
		Message: fmt.Sprintf("charge %s is in status %s, expected one of %v", externalID, current, accepted),
	}
}

func NewInvalidTransitionError(from, to fmt.Stringer) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewRefundNotAvailableError(chargeID string, availability RefundAvailability) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundNotAvailable,
		Message: fmt.Sprintf("charge %s is not refundable (availability %s)", chargeID, availability),
	}
}

func NewConflictError(entity, externalID string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("%s %s was modified concurrently", entity, externalID),
		Err:     err,
	}
}

func NewRefundAmountAvailableMismatchError(expected, actual int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundAmountAvailableMismatch,
		Message: fmt.Sprintf("refund amount available mismatch: expected %d, actual %d", expected, actual),
	}
}

func NewAlreadyInProgressError(externalID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyInProgress,
		Message: fmt.Sprintf("an operation on charge %s is already in progress", externalID),
	}
}

func NewOperationInProgressError(externalID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOperationInProgress,
		Message: fmt.Sprintf("operation on charge %s is still running", externalID),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount: %d", amount),
	}
}

func NewInvalidRequestError(format string, args ...any) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

func NewGuardUnavailableError(externalID string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeGuardUnavailable,
		Message: fmt.Sprintf("cannot acquire in-flight guard for charge %s", externalID),
		Err:     err,
	}
}

func NewExecutorStoppedError(externalID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeExecutorStopped,
		Message: fmt.Sprintf("connector is shutting down, charge %s not submitted", externalID),
	}
}

// NewGatewayDomainError lifts a gateway failure into the error taxonomy.
func NewGatewayDomainError(op OperationType, gerr *GatewayError) *DomainError {
	code := ErrCodeGatewayProcessing
	if gerr.IsConnectionFailure() {
		code = ErrCodeGatewayConnection
	}
	return &DomainError{
		Code:    code,
		Message: fmt.Sprintf("gateway %s failed", op),
		Err:     gerr,
	}
}

// IsErrorCode reports whether err is a DomainError with the given code.
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func hasCode(err error, codes []string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return slices.Contains(codes, domainErr.Code)
	}
	return false
}

func IsNotFound(err error) bool          { return hasCode(err, notFoundCodes) }
func IsIllegalState(err error) bool      { return hasCode(err, illegalStateCodes) }
func IsConflict(err error) bool          { return hasCode(err, conflictCodes) }
func IsAlreadyInProgress(err error) bool { return hasCode(err, inProgressCodes) }
func IsGatewayError(err error) bool      { return hasCode(err, gatewayCodes) }

// IsConnectionError reports failures the client can retry unchanged.
func IsConnectionError(err error) bool { return hasCode(err, connectionCodes) }
func IsInvalidRequest(err error) bool  { return hasCode(err, invalidCodes) }

// HTTPStatus maps an error onto the status the API layer should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case IsErrorCode(err, ErrCodeOperationInProgress):
		return http.StatusAccepted
	case IsIllegalState(err), IsConflict(err), IsAlreadyInProgress(err):
		return http.StatusConflict
	case IsConnectionError(err):
		return http.StatusServiceUnavailable
	case IsGatewayError(err):
		return http.StatusBadGateway
	case IsInvalidRequest(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
