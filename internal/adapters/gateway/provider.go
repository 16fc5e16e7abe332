// Package gateway implements the payment providers the connector can route
// charges to, and the transport they share.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider is a gateway reached through a GatewayTransport. Each gateway
// differs only in its tables and its notification format.
type Provider struct {
	name      string
	mapper    *domain.StatusMapper
	transport ports.GatewayTransport
	// responses normalises raw statuses in synchronous replies.
	responses map[string]domain.OperationStatus
	newTxID   func() string
	parse     func(payload []byte) ([]domain.Notification, error)
	refunds   *domain.RefundAvailabilityCalculator
}

var _ ports.PaymentProvider = (*Provider)(nil)

func noTxID() string { return "" }

func uuidTxID() string { return uuid.NewString() }

func (p *Provider) Name() string                       { return p.name }
func (p *Provider) StatusMapper() *domain.StatusMapper { return p.mapper }
func (p *Provider) GenerateTransactionID() string      { return p.newTxID() }

func (p *Provider) Authorise(ctx context.Context, account domain.GatewayAccount, req domain.AuthorisationRequest) *domain.GatewayResponse {
	return p.call(ctx, account, domain.OperationAuthorise, req)
}

func (p *Provider) Authorise3DS(ctx context.Context, account domain.GatewayAccount, req domain.Auth3DSRequest) *domain.GatewayResponse {
	return p.call(ctx, account, domain.OperationAuthorise3DS, req)
}

func (p *Provider) Capture(ctx context.Context, account domain.GatewayAccount, req domain.CaptureRequest) *domain.GatewayResponse {
	return p.call(ctx, account, domain.OperationCapture, req)
}

func (p *Provider) Cancel(ctx context.Context, account domain.GatewayAccount, req domain.CancelRequest) *domain.GatewayResponse {
	return p.call(ctx, account, domain.OperationCancel, req)
}

func (p *Provider) Refund(ctx context.Context, account domain.GatewayAccount, req domain.RefundRequest) *domain.GatewayResponse {
	return p.call(ctx, account, domain.OperationRefund, req)
}

func (p *Provider) ParseNotification(payload []byte) ([]domain.Notification, error) {
	return p.parse(payload)
}

func (p *Provider) ExternalRefundAvailability(charge *domain.Charge, refunds []*domain.Refund) domain.RefundAvailability {
	return p.refunds.Calculate(charge, refunds)
}

func (p *Provider) call(ctx context.Context, account domain.GatewayAccount, op domain.OperationType, req any) *domain.GatewayResponse {
	resp, err := p.transport.Send(ctx, p.name, account, op, req)
	if err != nil {
		var gerr *domain.GatewayError
		if errors.As(err, &gerr) {
			return domain.ErrorResponse(gerr)
		}
		return domain.ErrorResponse(&domain.GatewayError{
			Kind:    domain.GatewayErrorProcessing,
			Message: err.Error(),
			Err:     err,
		})
	}

	status, ok := p.responses[resp.Status]
	if !ok {
		return domain.ErrorResponse(&domain.GatewayError{
			Kind:    domain.GatewayErrorProcessing,
			Message: fmt.Sprintf("unrecognised %s status %q for %s", p.name, resp.Status, op),
		})
	}

	return domain.SuccessResponse(domain.ProviderResponse{
		TransactionID: resp.TransactionID,
		Status:        status,
		RawStatus:     resp.Status,
		Reference:     resp.Reference,
		ErrorCode:     resp.ErrorCode,
		ErrorMessage:  resp.ErrorMessage,
	})
}

// NewProviders builds every transport-backed provider plus the sandbox.
func NewProviders(transport ports.GatewayTransport, logger *zap.Logger) []ports.PaymentProvider {
	refunds := domain.NewRefundAvailabilityCalculator(logger)
	return []ports.PaymentProvider{
		NewSandbox(refunds),
		NewWorldpay(transport, refunds),
		NewSmartpay(transport, refunds),
		NewEpdq(transport, refunds),
	}
}
