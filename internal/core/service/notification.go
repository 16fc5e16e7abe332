package service

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/DanielPopoola/charge-connector/internal/metrics"
	"go.uber.org/zap"
)

// NotificationService applies asynchronous gateway callbacks to charges and
// refunds. Nothing it encounters is returned to the caller: the gateway only
// needs to know the payload arrived.
type NotificationService struct {
	charges    *ChargeService
	chargeRepo ports.ChargeRepository
	refunds    ports.RefundRepository
	providers  *ProviderRegistry
	logger     *zap.Logger
}

func NewNotificationService(
	charges *ChargeService,
	chargeRepo ports.ChargeRepository,
	refunds ports.RefundRepository,
	providers *ProviderRegistry,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		charges:    charges,
		chargeRepo: chargeRepo,
		refunds:    refunds,
		providers:  providers,
		logger:     logger,
	}
}

func (s *NotificationService) Accept(ctx context.Context, gatewayName string, payload []byte) {
	provider, err := s.providers.ByName(gatewayName)
	if err != nil {
		metrics.RecordNotification(gatewayName, "unsupported_gateway")
		s.logger.Error("unsupported gateway", zap.String("gateway", gatewayName), zap.Error(err))
		return
	}

	notifications, err := provider.ParseNotification(payload)
	if err != nil {
		metrics.RecordNotification(gatewayName, "parse_failed")
		s.logger.Error("notification parse failed",
			zap.String("gateway", gatewayName),
			zap.Int("payload_bytes", len(payload)),
			zap.Error(err))
		return
	}

	for _, n := range notifications {
		outcome := s.handle(ctx, provider, n)
		metrics.RecordNotification(gatewayName, outcome)
	}
}

func (s *NotificationService) handle(ctx context.Context, provider ports.PaymentProvider, n domain.Notification) string {
	log := s.logger.With(
		zap.String("gateway", provider.Name()),
		zap.String("transaction_id", n.TransactionID),
		zap.String("raw_status", n.Status))

	if n.TransactionID == "" {
		log.Warn("missing transaction id")
		return "missing_transaction_id"
	}

	charge, err := s.chargeRepo.FindByProviderAndTransactionID(ctx, provider.Name(), n.TransactionID)
	if err != nil && !domain.IsNotFound(err) {
		log.Error("charge lookup failed", zap.Error(err))
		return "error"
	}

	var interpreted domain.InterpretedStatus
	if charge != nil {
		interpreted = provider.StatusMapper().FromCurrent(n.Status, charge.Status)
	} else {
		interpreted = provider.StatusMapper().From(n.Status)
	}

	switch interpreted.Kind() {
	case domain.InterpretedIgnored:
		log.Info("ignored status")
		return "ignored"
	case domain.InterpretedUnknown:
		log.Warn("unknown status")
		return "unknown"
	case domain.InterpretedRefund:
		return s.applyRefund(ctx, log, provider, n, interpreted.RefundStatus())
	}

	if charge == nil {
		log.Warn("charge not found")
		return "charge_not_found"
	}

	var target domain.ChargeStatus
	if interpreted.Kind() == domain.InterpretedDeferred {
		var matched bool
		target, matched = interpreted.ResolveDeferred(charge.Status)
		if !matched {
			log.Error("no deferred mapping for current status, using fallback",
				zap.String("charge_id", charge.ExternalID),
				zap.String("current", string(charge.Status)),
				zap.String("fallback", string(target)))
		}
	} else {
		target = interpreted.ChargeStatus()
	}

	if _, err := s.charges.Transition(ctx, charge.ExternalID, AnyStatus, target, nil); err != nil {
		log.Error("failed to apply notification",
			zap.String("charge_id", charge.ExternalID),
			zap.String("current", string(charge.Status)),
			zap.String("target", string(target)),
			zap.Error(err))
		return "rejected"
	}
	return "applied"
}

func (s *NotificationService) applyRefund(
	ctx context.Context,
	log *zap.Logger,
	provider ports.PaymentProvider,
	n domain.Notification,
	target domain.RefundStatus,
) string {
	if n.Reference == "" {
		log.Warn("missing reference")
		return "missing_reference"
	}

	refund, err := s.refunds.FindByProviderAndTransactionIDAndReference(ctx, provider.Name(), n.TransactionID, n.Reference)
	if err != nil {
		if domain.IsNotFound(err) {
			log.Warn("refund not found", zap.String("reference", n.Reference))
			return "refund_not_found"
		}
		log.Error("refund lookup failed", zap.Error(err))
		return "error"
	}

	changed, err := refund.TransitionTo(target)
	if err != nil {
		log.Error("failed to apply refund notification",
			zap.String("refund_id", refund.ExternalID),
			zap.String("current", string(refund.Status)),
			zap.String("target", string(target)),
			zap.Error(err))
		return "rejected"
	}
	if !changed {
		return "applied"
	}

	if _, err := s.refunds.Merge(ctx, refund); err != nil {
		log.Error("failed to persist refund notification",
			zap.String("refund_id", refund.ExternalID),
			zap.Error(err))
		return "error"
	}

	log.Info("refund status changed",
		zap.String("refund_id", refund.ExternalID),
		zap.String("status", string(target)))
	return "applied"
}
