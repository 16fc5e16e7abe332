package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/DanielPopoola/charge-connector/internal/metrics"
	"go.uber.org/zap"
)

// AnyStatus accepts every starting status; legality is left to the
// transition table.
var AnyStatus []domain.ChargeStatus

// ChargeService applies guarded status transitions to persisted charges.
type ChargeService struct {
	repo      ports.ChargeRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

func NewChargeService(repo ports.ChargeRepository, publisher ports.EventPublisher, logger *zap.Logger) *ChargeService {
	return &ChargeService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *ChargeService) Find(ctx context.Context, externalID string) (*domain.Charge, error) {
	return s.repo.FindByExternalID(ctx, externalID)
}

// Transition reloads the charge, checks it is in one of accepted and moves it
// to target. mutate, if non-nil, runs after the status change and before the
// merge. A charge already in target is returned unchanged.
func (s *ChargeService) Transition(
	ctx context.Context,
	externalID string,
	accepted []domain.ChargeStatus,
	target domain.ChargeStatus,
	mutate func(*domain.Charge),
) (*domain.Charge, error) {
	charge, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, charge, accepted, target, mutate)
}

// Prepare moves a loaded charge into the ready status of a gateway
// operation. A charge already in ready means another request owns the
// operation, so it is reported as ALREADY_IN_PROGRESS.
func (s *ChargeService) Prepare(
	ctx context.Context,
	charge *domain.Charge,
	accepted []domain.ChargeStatus,
	ready domain.ChargeStatus,
	mutate func(*domain.Charge),
) (*domain.Charge, error) {
	if charge.Status == ready {
		return nil, domain.NewAlreadyInProgressError(charge.ExternalID)
	}
	return s.apply(ctx, charge, accepted, ready, mutate)
}

func (s *ChargeService) CountEvents(ctx context.Context, externalID string, status domain.ChargeStatus) (int, error) {
	return s.repo.CountEvents(ctx, externalID, status)
}

func (s *ChargeService) apply(
	ctx context.Context,
	charge *domain.Charge,
	accepted []domain.ChargeStatus,
	target domain.ChargeStatus,
	mutate func(*domain.Charge),
) (*domain.Charge, error) {
	if charge.Status == target {
		s.logger.Debug("charge already in target status",
			zap.String("charge_id", charge.ExternalID),
			zap.String("status", string(target)))
		return charge, nil
	}

	if accepted != nil && !slices.Contains(accepted, charge.Status) {
		return nil, domain.NewIllegalStateError(charge.ExternalID, charge.Status, accepted)
	}

	from := charge.Status
	if _, err := charge.TransitionTo(target); err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(charge)
	}

	event := domain.ChargeEvent{
		ChargeExternalID: charge.ExternalID,
		Status:           target,
		OccurredAt:       charge.UpdatedAt,
	}

	merged, err := s.repo.Merge(ctx, charge, event)
	if err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			s.logger.Warn("charge modified concurrently",
				zap.String("charge_id", charge.ExternalID),
				zap.String("from", string(from)),
				zap.String("to", string(target)),
				zap.Int64("version", charge.Version))
			return nil, domain.NewConflictError("charge", charge.ExternalID, err)
		}
		return nil, err
	}

	metrics.RecordTransition(string(from), string(target))
	s.logger.Info("charge status changed",
		zap.String("charge_id", merged.ExternalID),
		zap.String("from", string(from)),
		zap.String("to", string(target)))

	s.publisher.Publish(ctx, domain.StatusChange{
		ChargeExternalID: merged.ExternalID,
		GatewayAccountID: merged.GatewayAccount.ID,
		From:             from,
		To:               target,
		OccurredAt:       time.Now().UTC(),
	})

	return merged, nil
}

// NopPublisher discards status changes.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.StatusChange) {}
