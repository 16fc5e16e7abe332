package ports

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
)

// PaymentProvider is the uniform capability set every gateway implements.
type PaymentProvider interface {
	Name() string
	StatusMapper() *domain.StatusMapper
	// GenerateTransactionID returns a merchant-side transaction id, or "" when
	// the gateway assigns its own.
	GenerateTransactionID() string

	Authorise(ctx context.Context, account domain.GatewayAccount, req domain.AuthorisationRequest) *domain.GatewayResponse
	Authorise3DS(ctx context.Context, account domain.GatewayAccount, req domain.Auth3DSRequest) *domain.GatewayResponse
	Capture(ctx context.Context, account domain.GatewayAccount, req domain.CaptureRequest) *domain.GatewayResponse
	Cancel(ctx context.Context, account domain.GatewayAccount, req domain.CancelRequest) *domain.GatewayResponse
	Refund(ctx context.Context, account domain.GatewayAccount, req domain.RefundRequest) *domain.GatewayResponse

	ParseNotification(payload []byte) ([]domain.Notification, error)
	ExternalRefundAvailability(charge *domain.Charge, refunds []*domain.Refund) domain.RefundAvailability
}

// TransportResponse is what a gateway transport hands back after wire-format
// decoding.
type TransportResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reference     string `json:"reference,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// GatewayTransport sends one normalised request to a gateway. Failures are
// returned as *domain.GatewayError.
type GatewayTransport interface {
	Send(ctx context.Context, gatewayName string, account domain.GatewayAccount, op domain.OperationType, req any) (*TransportResponse, error)
}
