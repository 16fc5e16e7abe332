package domain

import (
	"fmt"
	"time"
)

type OperationType string

const (
	OperationAuthorise    OperationType = "authorise"
	OperationAuthorise3DS OperationType = "authorise_3ds"
	OperationCapture      OperationType = "capture"
	OperationCancel       OperationType = "cancel"
	OperationRefund       OperationType = "refund"
)

// OperationStatus is a gateway's answer to a request, normalised.
type OperationStatus string

const (
	OperationAuthorised  OperationStatus = "AUTHORISED"
	OperationRejected    OperationStatus = "REJECTED"
	OperationRequires3DS OperationStatus = "REQUIRES_3DS"
	OperationSubmitted   OperationStatus = "SUBMITTED"
	OperationCaptured    OperationStatus = "CAPTURED"
	OperationCancelled   OperationStatus = "CANCELLED"
	OperationRefunded    OperationStatus = "REFUNDED"
	OperationError       OperationStatus = "ERROR"
)

type CardDetails struct {
	CardNumber     string `json:"card_number"`
	CVC            string `json:"cvc"`
	ExpiryDate     string `json:"expiry_date"`
	CardholderName string `json:"cardholder_name"`
}

type Auth3DSDetails struct {
	PaResponse string `json:"pa_response"`
}

type AuthorisationRequest struct {
	ChargeExternalID string      `json:"charge_id"`
	TransactionID    string      `json:"transaction_id,omitempty"`
	Amount           int64       `json:"amount"`
	Description      string      `json:"description"`
	Card             CardDetails `json:"card"`
}

type Auth3DSRequest struct {
	ChargeExternalID string         `json:"charge_id"`
	TransactionID    string         `json:"transaction_id"`
	Details          Auth3DSDetails `json:"details"`
}

type CaptureRequest struct {
	ChargeExternalID string `json:"charge_id"`
	TransactionID    string `json:"transaction_id"`
	Amount           int64  `json:"amount"`
}

type CancelRequest struct {
	ChargeExternalID string `json:"charge_id"`
	TransactionID    string `json:"transaction_id"`
}

type RefundRequest struct {
	ChargeExternalID string `json:"charge_id"`
	RefundExternalID string `json:"refund_id"`
	TransactionID    string `json:"transaction_id"`
	Amount           int64  `json:"amount"`
}

// ProviderResponse is the normalised body of a gateway reply.
type ProviderResponse struct {
	TransactionID string
	Status        OperationStatus
	RawStatus     string
	Reference     string
	ErrorCode     string
	ErrorMessage  string
}

type GatewayErrorKind string

const (
	GatewayErrorConnection GatewayErrorKind = "connection"
	GatewayErrorTimeout    GatewayErrorKind = "timeout"
	GatewayErrorProcessing GatewayErrorKind = "processing"
)

// GatewayError is a structured failure to complete a gateway call.
type GatewayError struct {
	Kind       GatewayErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s error: %s (status: %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("gateway %s error: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsConnectionFailure is true for timeouts and socket-level failures.
func (e *GatewayError) IsConnectionFailure() bool {
	return e.Kind == GatewayErrorConnection || e.Kind == GatewayErrorTimeout
}

// GatewayResponse is the outcome of one provider call. A declined request is a
// successful response whose Status is OperationRejected.
type GatewayResponse struct {
	Response *ProviderResponse
	Err      *GatewayError
}

func (r *GatewayResponse) IsSuccessful() bool {
	return r != nil && r.Err == nil && r.Response != nil
}

// Status returns the normalised status, or OperationError on failure.
func (r *GatewayResponse) Status() OperationStatus {
	if !r.IsSuccessful() {
		return OperationError
	}
	return r.Response.Status
}

func SuccessResponse(resp ProviderResponse) *GatewayResponse {
	return &GatewayResponse{Response: &resp}
}

func ErrorResponse(err *GatewayError) *GatewayResponse {
	return &GatewayResponse{Err: err}
}

// Notification is one gateway callback entry after parsing.
type Notification struct {
	TransactionID string
	Reference     string
	Status        string
	GeneratedAt   time.Time
}
