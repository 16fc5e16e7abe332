package service

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/DanielPopoola/charge-connector/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type CaptureBatchResult struct {
	Processed int
	Captured  int
	Failed    int
	Skipped   int
}

// CaptureProcessService drives charges approved for capture through the
// gateway, oldest first.
type CaptureProcessService struct {
	repo      ports.ChargeRepository
	captures  *CaptureService
	limiter   *rate.Limiter
	batchSize int
	logger    *zap.Logger
}

func NewCaptureProcessService(
	repo ports.ChargeRepository,
	captures *CaptureService,
	limiter *rate.Limiter,
	batchSize int,
	logger *zap.Logger,
) *CaptureProcessService {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &CaptureProcessService{
		repo:      repo,
		captures:  captures,
		limiter:   limiter,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run captures at most one batch. Processed charges leave the eligible set,
// so every run reads the first page.
func (s *CaptureProcessService) Run(ctx context.Context) (CaptureBatchResult, error) {
	var result CaptureBatchResult

	charges, err := s.repo.FindAllEligibleForCapture(ctx, domain.CaptureEligibleStatuses(), s.batchSize, 0)
	if err != nil {
		return result, err
	}

	for _, charge := range charges {
		if err := s.limiter.Wait(ctx); err != nil {
			return result, err
		}

		result.Processed++
		resp, err := s.captures.Capture(ctx, charge.ExternalID)

		switch {
		case err == nil && resp.IsSuccessful() &&
			(resp.Response.Status == domain.OperationCaptured || resp.Response.Status == domain.OperationSubmitted):
			result.Captured++
			metrics.RecordCaptureBatch("captured")
		case domain.IsAlreadyInProgress(err) || domain.IsConflict(err) || domain.IsIllegalState(err):
			result.Skipped++
			metrics.RecordCaptureBatch("skipped")
			s.logger.Info("capture skipped",
				zap.String("charge_id", charge.ExternalID),
				zap.Error(err))
		default:
			result.Failed++
			metrics.RecordCaptureBatch("failed")
			s.logger.Error("capture failed",
				zap.String("charge_id", charge.ExternalID),
				zap.Int64("version", charge.Version),
				zap.Error(err))
		}
	}

	if len(charges) > 0 {
		s.logger.Info("capture batch finished",
			zap.Int("processed", result.Processed),
			zap.Int("captured", result.Captured),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped))
	}

	return result, nil
}
