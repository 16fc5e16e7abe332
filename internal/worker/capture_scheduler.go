package worker

import (
	"context"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/service"
	"go.uber.org/zap"
)

type CaptureRunner interface {
	Run(ctx context.Context) (service.CaptureBatchResult, error)
}

// CaptureScheduler triggers a capture batch on every tick.
type CaptureScheduler struct {
	runner CaptureRunner
	logger *zap.Logger
	loop   loop
}

func NewCaptureScheduler(runner CaptureRunner, interval time.Duration, logger *zap.Logger) *CaptureScheduler {
	return &CaptureScheduler{
		runner: runner,
		logger: logger,
		loop:   loop{name: "capture", interval: interval, logger: logger},
	}
}

func (s *CaptureScheduler) Start(ctx context.Context) {
	s.loop.start(ctx, s.RunOnce)
}

func (s *CaptureScheduler) Stop() {
	s.loop.stop()
}

// RunOnce executes a single capture batch.
func (s *CaptureScheduler) RunOnce(ctx context.Context) {
	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("capture batch failed",
			zap.Int("processed", result.Processed),
			zap.Error(err))
		return
	}
	if result.Processed > 0 {
		s.logger.Debug("capture batch completed",
			zap.Int("processed", result.Processed),
			zap.Int("captured", result.Captured))
	}
}
