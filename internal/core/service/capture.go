package service

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"go.uber.org/zap"
)

var captureStartStatuses = []domain.ChargeStatus{
	domain.StatusAuthorisationSuccess,
	domain.StatusCaptureApproved,
	domain.StatusCaptureApprovedRetry,
}

type CaptureService struct {
	charges    *ChargeService
	providers  *ProviderRegistry
	executor   *Executor
	maxRetries int
	logger     *zap.Logger
}

func NewCaptureService(charges *ChargeService, providers *ProviderRegistry, executor *Executor, maxRetries int, logger *zap.Logger) *CaptureService {
	return &CaptureService{
		charges:    charges,
		providers:  providers,
		executor:   executor,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// ApproveCapture marks an authorised charge for capture by the next batch run.
func (s *CaptureService) ApproveCapture(ctx context.Context, chargeID string) (*domain.Charge, error) {
	return s.charges.Transition(ctx, chargeID,
		[]domain.ChargeStatus{domain.StatusAuthorisationSuccess},
		domain.StatusCaptureApproved,
		nil,
	)
}

// Capture asks the gateway to settle an authorised charge.
func (s *CaptureService) Capture(ctx context.Context, chargeID string) (*domain.GatewayResponse, error) {
	charge, err := s.charges.Find(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	provider, err := s.providers.ForCharge(charge)
	if err != nil {
		return nil, err
	}

	prepare := func(ctx context.Context) error {
		current, err := s.charges.Find(ctx, chargeID)
		if err != nil {
			return err
		}
		prepared, err := s.charges.Prepare(ctx, current, captureStartStatuses, domain.StatusCaptureReady, nil)
		if err != nil {
			return err
		}
		charge = prepared
		return nil
	}

	status, resp, err := s.executor.Execute(ctx, chargeID, prepare, func(taskCtx context.Context) *domain.GatewayResponse {
		resp := provider.Capture(taskCtx, charge.GatewayAccount, domain.CaptureRequest{
			ChargeExternalID: charge.ExternalID,
			TransactionID:    charge.GatewayTransactionID,
			Amount:           charge.Amount,
		})
		s.record(taskCtx, chargeID, resp)
		return resp
	})
	if err != nil {
		return nil, err
	}
	if status == ExecutionInProgress {
		return nil, domain.NewOperationInProgressError(chargeID)
	}

	return resp, gatewayErr(domain.OperationCapture, resp)
}

func (s *CaptureService) record(ctx context.Context, chargeID string, resp *domain.GatewayResponse) {
	target := s.outcome(ctx, chargeID, resp)

	_, err := s.charges.Transition(ctx, chargeID, []domain.ChargeStatus{domain.StatusCaptureReady}, target, nil)
	if err != nil {
		s.logger.Error("failed to record capture outcome",
			zap.String("charge_id", chargeID),
			zap.String("target", string(target)),
			zap.Error(err))
	}
}

func (s *CaptureService) outcome(ctx context.Context, chargeID string, resp *domain.GatewayResponse) domain.ChargeStatus {
	switch resp.Status() {
	case domain.OperationCaptured:
		return domain.StatusCaptured
	case domain.OperationSubmitted:
		return domain.StatusCaptureSubmitted
	}

	retries, err := s.charges.CountEvents(ctx, chargeID, domain.StatusCaptureApprovedRetry)
	if err != nil {
		s.logger.Error("failed to count capture retries",
			zap.String("charge_id", chargeID),
			zap.Error(err))
		return domain.StatusCaptureApprovedRetry
	}
	if retries >= s.maxRetries {
		s.logger.Warn("capture retries exhausted",
			zap.String("charge_id", chargeID),
			zap.Int("retries", retries))
		return domain.StatusCaptureError
	}
	return domain.StatusCaptureApprovedRetry
}
