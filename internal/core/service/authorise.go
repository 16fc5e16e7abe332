package service

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"go.uber.org/zap"
)

// AuthoriseService submits card and 3DS authorisations.
type AuthoriseService struct {
	charges   *ChargeService
	providers *ProviderRegistry
	executor  *Executor
	logger    *zap.Logger
}

func NewAuthoriseService(charges *ChargeService, providers *ProviderRegistry, executor *Executor, logger *zap.Logger) *AuthoriseService {
	return &AuthoriseService{
		charges:   charges,
		providers: providers,
		executor:  executor,
		logger:    logger,
	}
}

// Authorise sends the card details to the charge's gateway. If the gateway
// does not answer within the executor's wait budget an OPERATION_IN_PROGRESS
// error is returned and the outcome is recorded when it arrives.
func (s *AuthoriseService) Authorise(ctx context.Context, chargeID string, card domain.CardDetails) (*domain.GatewayResponse, error) {
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
		prepared, err := s.charges.Prepare(ctx, current,
			[]domain.ChargeStatus{domain.StatusEnteringCardDetails},
			domain.StatusAuthorisationReady,
			func(c *domain.Charge) {
				if txID := provider.GenerateTransactionID(); txID != "" {
					c.GatewayTransactionID = txID
				}
			},
		)
		if err != nil {
			return err
		}
		charge = prepared
		return nil
	}

	status, resp, err := s.executor.Execute(ctx, chargeID, prepare, func(taskCtx context.Context) *domain.GatewayResponse {
		resp := provider.Authorise(taskCtx, charge.GatewayAccount, domain.AuthorisationRequest{
			ChargeExternalID: charge.ExternalID,
			TransactionID:    charge.GatewayTransactionID,
			Amount:           charge.Amount,
			Description:      charge.Description,
			Card:             card,
		})
		s.record(taskCtx, chargeID, domain.StatusAuthorisationReady, resp)
		return resp
	})
	if err != nil {
		return nil, err
	}
	if status == ExecutionInProgress {
		return nil, domain.NewOperationInProgressError(chargeID)
	}

	return resp, gatewayErr(domain.OperationAuthorise, resp)
}

// Authorise3DS completes an authorisation that the gateway challenged.
func (s *AuthoriseService) Authorise3DS(ctx context.Context, chargeID string, details domain.Auth3DSDetails) (*domain.GatewayResponse, error) {
	charge, err := s.charges.Find(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	provider, err := s.providers.ForCharge(charge)
	if err != nil {
		return nil, err
	}

	charge, err = s.charges.Prepare(ctx, charge,
		[]domain.ChargeStatus{domain.StatusAuthorisation3DSRequired},
		domain.StatusAuthorisation3DSReady,
		nil,
	)
	if err != nil {
		return nil, err
	}

	resp := provider.Authorise3DS(ctx, charge.GatewayAccount, domain.Auth3DSRequest{
		ChargeExternalID: charge.ExternalID,
		TransactionID:    charge.GatewayTransactionID,
		Details:          details,
	})
	s.record(ctx, chargeID, domain.StatusAuthorisation3DSReady, resp)

	return resp, gatewayErr(domain.OperationAuthorise3DS, resp)
}

func (s *AuthoriseService) record(ctx context.Context, chargeID string, from domain.ChargeStatus, resp *domain.GatewayResponse) {
	target := authorisationOutcome(resp)

	_, err := s.charges.Transition(ctx, chargeID, []domain.ChargeStatus{from}, target, func(c *domain.Charge) {
		if resp.IsSuccessful() && resp.Response.TransactionID != "" {
			c.GatewayTransactionID = resp.Response.TransactionID
		}
	})
	if err != nil {
		s.logger.Error("failed to record authorisation outcome",
			zap.String("charge_id", chargeID),
			zap.String("target", string(target)),
			zap.Error(err))
	}
}

func authorisationOutcome(resp *domain.GatewayResponse) domain.ChargeStatus {
	if !resp.IsSuccessful() {
		if resp == nil || resp.Err == nil {
			return domain.StatusAuthorisationUnexpectedError
		}
		switch resp.Err.Kind {
		case domain.GatewayErrorTimeout:
			return domain.StatusAuthorisationTimeout
		case domain.GatewayErrorConnection:
			return domain.StatusAuthorisationUnexpectedError
		default:
			return domain.StatusAuthorisationError
		}
	}

	switch resp.Response.Status {
	case domain.OperationAuthorised:
		return domain.StatusAuthorisationSuccess
	case domain.OperationRejected:
		return domain.StatusAuthorisationRejected
	case domain.OperationRequires3DS:
		return domain.StatusAuthorisation3DSRequired
	case domain.OperationSubmitted:
		return domain.StatusAuthorisationSubmitted
	case domain.OperationCancelled:
		return domain.StatusAuthorisationCancelled
	default:
		return domain.StatusAuthorisationError
	}
}

// gatewayErr lifts a failed response into the error taxonomy.
func gatewayErr(op domain.OperationType, resp *domain.GatewayResponse) error {
	if resp == nil || resp.Err == nil {
		return nil
	}
	return domain.NewGatewayDomainError(op, resp.Err)
}
