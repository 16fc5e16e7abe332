package service

import (
	"context"
	"errors"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"go.uber.org/zap"
)

type RefundResult struct {
	Refund   *domain.Refund
	Response *domain.GatewayResponse
}

type RefundService struct {
	charges   *ChargeService
	refunds   ports.RefundRepository
	providers *ProviderRegistry
	logger    *zap.Logger
}

func NewRefundService(charges *ChargeService, refunds ports.RefundRepository, providers *ProviderRegistry, logger *zap.Logger) *RefundService {
	return &RefundService{
		charges:   charges,
		refunds:   refunds,
		providers: providers,
		logger:    logger,
	}
}

// Refund returns amount of a captured charge to the payer.
// amountAvailable is what the caller believes is still refundable; a stale
// value is rejected so two users cannot refund the same remainder.
func (s *RefundService) Refund(
	ctx context.Context,
	accountID int64,
	chargeID string,
	amount int64,
	amountAvailable int64,
	userID string,
) (*RefundResult, error) {
	charge, err := s.charges.Find(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if charge.GatewayAccount.ID != accountID {
		return nil, domain.NewChargeNotFoundError(chargeID)
	}

	provider, err := s.providers.ForCharge(charge)
	if err != nil {
		return nil, err
	}

	existing, err := s.refunds.FindByChargeExternalID(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	availability := provider.ExternalRefundAvailability(charge, existing)
	if availability != domain.RefundAvailable {
		return nil, domain.NewRefundNotAvailableError(chargeID, availability)
	}

	remaining := charge.TotalAmount() - domain.TotalRefunded(existing)
	if amountAvailable != remaining {
		return nil, domain.NewRefundAmountAvailableMismatchError(amountAvailable, remaining)
	}
	if amount <= 0 || amount > remaining {
		return nil, domain.NewInvalidAmountError(amount)
	}

	refund, err := domain.NewRefund(chargeID, amount, userID)
	if err != nil {
		return nil, err
	}

	if err := s.refunds.Create(ctx, refund, charge.Version); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			s.logger.Warn("charge modified while creating refund",
				zap.String("charge_id", chargeID),
				zap.Int64("version", charge.Version))
			return nil, domain.NewConflictError("charge", chargeID, err)
		}
		return nil, err
	}

	resp := provider.Refund(ctx, charge.GatewayAccount, domain.RefundRequest{
		ChargeExternalID: chargeID,
		RefundExternalID: refund.ExternalID,
		TransactionID:    charge.GatewayTransactionID,
		Amount:           amount,
	})

	target := domain.RefundStatusError
	switch resp.Status() {
	case domain.OperationSubmitted:
		target = domain.RefundStatusSubmitted
	case domain.OperationRefunded:
		target = domain.RefundStatusRefunded
	}

	if _, err := refund.TransitionTo(target); err != nil {
		return nil, err
	}
	if target != domain.RefundStatusError {
		refund.GatewayTransactionID = resp.Response.Reference
		if refund.GatewayTransactionID == "" {
			refund.GatewayTransactionID = resp.Response.TransactionID
		}
	}

	stored, err := s.refunds.Merge(ctx, refund)
	if err != nil {
		s.logger.Error("failed to record refund outcome",
			zap.String("charge_id", chargeID),
			zap.String("refund_id", refund.ExternalID),
			zap.String("status", string(target)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("refund processed",
		zap.String("charge_id", chargeID),
		zap.String("refund_id", stored.ExternalID),
		zap.Int64("amount", amount),
		zap.String("status", string(stored.Status)))

	return &RefundResult{Refund: stored, Response: resp}, gatewayErr(domain.OperationRefund, resp)
}
