package worker

import (
	"context"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/config"
	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/DanielPopoola/charge-connector/internal/core/service"
	"go.uber.org/zap"
)

type Expirer interface {
	Expire(ctx context.Context, charges []*domain.Charge) service.ExpiryResult
}

// ExpirySweeper expires charges left unfinished for longer than MaxAge.
type ExpirySweeper struct {
	repo      ports.ChargeRepository
	expirer   Expirer
	maxAge    time.Duration
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
	loop      loop
}

func NewExpirySweeper(repo ports.ChargeRepository, expirer Expirer, cfg config.ExpiryConfig, logger *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		repo:      repo,
		expirer:   expirer,
		maxAge:    cfg.MaxAge,
		batchSize: cfg.BatchSize,
		now:       time.Now,
		logger:    logger,
		loop:      loop{name: "expiry", interval: cfg.Interval, logger: logger},
	}
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	s.loop.start(ctx, s.RunOnce)
}

func (s *ExpirySweeper) Stop() {
	s.loop.stop()
}

// RunOnce expires one batch of stale charges.
func (s *ExpirySweeper) RunOnce(ctx context.Context) {
	cutoff := s.now().Add(-s.maxAge)

	charges, err := s.repo.FindBeforeDateWithStatusIn(ctx, cutoff, domain.ExpirableStatuses(), s.batchSize)
	if err != nil {
		s.logger.Error("failed to fetch expirable charges", zap.Time("cutoff", cutoff), zap.Error(err))
		return
	}
	if len(charges) == 0 {
		return
	}

	s.logger.Info("expiring charges", zap.Int("count", len(charges)), zap.Time("cutoff", cutoff))
	s.expirer.Expire(ctx, charges)
}
