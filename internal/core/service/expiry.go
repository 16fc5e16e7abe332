package service

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/metrics"
	"go.uber.org/zap"
)

type ExpiryResult struct {
	Expired int
	// Pending counts charges left in EXPIRE_CANCEL_SUBMITTED, waiting on the
	// gateway's notification.
	Pending int
	// Failed counts charges left in EXPIRE_CANCEL_FAILED.
	Failed int
	Errors int
}

// ExpiryService force-terminates stale charges.
type ExpiryService struct {
	cancels *CancelService
	logger  *zap.Logger
}

func NewExpiryService(cancels *CancelService, logger *zap.Logger) *ExpiryService {
	return &ExpiryService{
		cancels: cancels,
		logger:  logger,
	}
}

// Expire terminates each charge independently. Charges the gateway still
// holds an authorisation for are cancelled there first, and only reach
// EXPIRED once the gateway confirms.
func (s *ExpiryService) Expire(ctx context.Context, charges []*domain.Charge) ExpiryResult {
	var result ExpiryResult

	for _, charge := range charges {
		updated, _, err := s.cancels.terminate(ctx, charge, expiryFlow)
		switch {
		case updated != nil && updated.Status == domain.StatusExpireCancelFailed:
			result.Failed++
			metrics.RecordExpiry("cancel_failed")
			s.logger.Warn("gateway cancel failed during expiry",
				zap.String("charge_id", charge.ExternalID),
				zap.Error(err))
		case err != nil:
			result.Errors++
			metrics.RecordExpiry("error")
			s.logger.Error("failed to expire charge",
				zap.String("charge_id", charge.ExternalID),
				zap.String("status", string(charge.Status)),
				zap.Error(err))
		case err == nil && updated != nil && updated.Status == domain.StatusExpireCancelSubmitted:
			result.Pending++
			metrics.RecordExpiry("cancel_submitted")
		default:
			result.Expired++
			metrics.RecordExpiry("expired")
		}
	}

	s.logger.Info("expiry run finished",
		zap.Int("charges", len(charges)),
		zap.Int("expired", result.Expired),
		zap.Int("pending", result.Pending),
		zap.Int("failed", result.Failed),
		zap.Int("errors", result.Errors))

	return result
}
