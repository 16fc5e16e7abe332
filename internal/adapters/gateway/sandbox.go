package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/google/uuid"
)

const SandboxName = "sandbox"

// Test card numbers with a fixed sandbox outcome. Any other number authorises.
const (
	SandboxCardDeclined = "4000000000000002"
	SandboxCardError    = "4000000000000119"
	SandboxCard3DS      = "4000000000003220"
	SandboxCardPending  = "4000000000000259"
)

// Sandbox is an in-process gateway for test accounts. It answers every
// operation synchronously without leaving the process.
type Sandbox struct {
	mapper  *domain.StatusMapper
	refunds *domain.RefundAvailabilityCalculator
}

func NewSandbox(refunds *domain.RefundAvailabilityCalculator) *Sandbox {
	return &Sandbox{
		mapper: domain.NewStatusMapperBuilder().
			Ignore("SENT_FOR_AUTHORISATION").
			MapChargeWhen("AUTHORISED", domain.StatusAuthorisationSubmitted, domain.StatusAuthorisationSuccess).
			MapChargeWhen("REJECTED", domain.StatusAuthorisationSubmitted, domain.StatusAuthorisationRejected).
			MapCharge("CAPTURED", domain.StatusCaptured).
			Defer("CANCELLED", domain.CancelResolver).
			MapRefund("REFUNDED", domain.RefundStatusRefunded).
			MapRefund("REFUND_ERROR", domain.RefundStatusError).
			Build(),
		refunds: refunds,
	}
}

func (s *Sandbox) Name() string                       { return SandboxName }
func (s *Sandbox) StatusMapper() *domain.StatusMapper { return s.mapper }
func (s *Sandbox) GenerateTransactionID() string      { return uuid.NewString() }

func (s *Sandbox) Authorise(_ context.Context, _ domain.GatewayAccount, req domain.AuthorisationRequest) *domain.GatewayResponse {
	switch req.Card.CardNumber {
	case SandboxCardDeclined:
		return s.reply(req.TransactionID, domain.OperationRejected, "")
	case SandboxCardError:
		return domain.ErrorResponse(&domain.GatewayError{
			Kind:    domain.GatewayErrorProcessing,
			Message: "sandbox authorisation error",
		})
	case SandboxCard3DS:
		return s.reply(req.TransactionID, domain.OperationRequires3DS, "")
	case SandboxCardPending:
		return s.reply(req.TransactionID, domain.OperationSubmitted, "")
	default:
		return s.reply(req.TransactionID, domain.OperationAuthorised, "")
	}
}

func (s *Sandbox) Authorise3DS(_ context.Context, _ domain.GatewayAccount, req domain.Auth3DSRequest) *domain.GatewayResponse {
	if req.Details.PaResponse == "declined" {
		return s.reply(req.TransactionID, domain.OperationRejected, "")
	}
	return s.reply(req.TransactionID, domain.OperationAuthorised, "")
}

func (s *Sandbox) Capture(_ context.Context, _ domain.GatewayAccount, req domain.CaptureRequest) *domain.GatewayResponse {
	return s.reply(req.TransactionID, domain.OperationCaptured, "")
}

func (s *Sandbox) Cancel(_ context.Context, _ domain.GatewayAccount, req domain.CancelRequest) *domain.GatewayResponse {
	return s.reply(req.TransactionID, domain.OperationCancelled, "")
}

func (s *Sandbox) Refund(_ context.Context, _ domain.GatewayAccount, req domain.RefundRequest) *domain.GatewayResponse {
	return s.reply(req.TransactionID, domain.OperationRefunded, uuid.NewString())
}

func (s *Sandbox) reply(txID string, status domain.OperationStatus, reference string) *domain.GatewayResponse {
	return domain.SuccessResponse(domain.ProviderResponse{
		TransactionID: txID,
		Status:        status,
		RawStatus:     string(status),
		Reference:     reference,
	})
}

type sandboxNotification struct {
	TransactionID string    `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

type sandboxPayload struct {
	Notifications []sandboxNotification `json:"notifications"`
}

// ParseNotification reads {"notifications":[{transaction_id, reference, status, timestamp}]}.
func (s *Sandbox) ParseNotification(payload []byte) ([]domain.Notification, error) {
	var p sandboxPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode sandbox notification: %w", err)
	}

	out := make([]domain.Notification, 0, len(p.Notifications))
	for _, n := range p.Notifications {
		out = append(out, domain.Notification{
			TransactionID: n.TransactionID,
			Reference:     n.Reference,
			Status:        n.Status,
			GeneratedAt:   n.Timestamp,
		})
	}
	return out, nil
}

func (s *Sandbox) ExternalRefundAvailability(charge *domain.Charge, refunds []*domain.Refund) domain.RefundAvailability {
	return s.refunds.Calculate(charge, refunds)
}
