package service

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"go.uber.org/zap"
)

type CancelInitiator string

const (
	InitiatorUser   CancelInitiator = "user"
	InitiatorSystem CancelInitiator = "system"
)

// cancelFlow names the statuses one kind of cancellation moves through.
type cancelFlow struct {
	// accepted without a gateway call
	direct []domain.ChargeStatus
	// accepted when the gateway must release the authorisation
	viaGateway []domain.ChargeStatus
	ready      domain.ChargeStatus
	submitted  domain.ChargeStatus
	done       domain.ChargeStatus
	failed     domain.ChargeStatus
}

var gatewayCancellable = []domain.ChargeStatus{
	domain.StatusAuthorisation3DSRequired,
	domain.StatusAuthorisationSuccess,
}

var cancelFlows = map[CancelInitiator]cancelFlow{
	InitiatorUser: {
		direct:     []domain.ChargeStatus{domain.StatusEnteringCardDetails},
		viaGateway: gatewayCancellable,
		ready:      domain.StatusUserCancelReady,
		submitted:  domain.StatusUserCancelSubmitted,
		done:       domain.StatusUserCancelled,
		failed:     domain.StatusUserCancelError,
	},
	InitiatorSystem: {
		direct:     []domain.ChargeStatus{domain.StatusCreated, domain.StatusEnteringCardDetails},
		viaGateway: gatewayCancellable,
		ready:      domain.StatusSystemCancelReady,
		submitted:  domain.StatusSystemCancelSubmitted,
		done:       domain.StatusSystemCancelled,
		failed:     domain.StatusSystemCancelError,
	},
}

var expiryFlow = cancelFlow{
	direct:     []domain.ChargeStatus{domain.StatusCreated, domain.StatusEnteringCardDetails},
	viaGateway: gatewayCancellable,
	ready:      domain.StatusExpireCancelReady,
	submitted:  domain.StatusExpireCancelSubmitted,
	done:       domain.StatusExpired,
	failed:     domain.StatusExpireCancelFailed,
}

type CancelService struct {
	charges   *ChargeService
	providers *ProviderRegistry
	logger    *zap.Logger
}

func NewCancelService(charges *ChargeService, providers *ProviderRegistry, logger *zap.Logger) *CancelService {
	return &CancelService{
		charges:   charges,
		providers: providers,
		logger:    logger,
	}
}

// Cancel terminates a charge on behalf of initiator. The returned response is
// nil when the charge never reached the gateway and no call was made.
func (s *CancelService) Cancel(ctx context.Context, chargeID string, initiator CancelInitiator) (*domain.GatewayResponse, error) {
	flow, ok := cancelFlows[initiator]
	if !ok {
		return nil, domain.NewInvalidRequestError("unknown cancel initiator %q", initiator)
	}

	charge, err := s.charges.Find(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	_, resp, err := s.terminate(ctx, charge, flow)
	return resp, err
}

// terminate ends charge along flow, calling the gateway when the charge's
// status requires it.
func (s *CancelService) terminate(ctx context.Context, charge *domain.Charge, flow cancelFlow) (*domain.Charge, *domain.GatewayResponse, error) {
	if !charge.Status.RequiresGatewayCancel() {
		c, err := s.charges.Transition(ctx, charge.ExternalID, flow.direct, flow.done, nil)
		return c, nil, err
	}

	provider, err := s.providers.ForCharge(charge)
	if err != nil {
		return nil, nil, err
	}

	charge, err = s.charges.Prepare(ctx, charge, flow.viaGateway, flow.ready, nil)
	if err != nil {
		return nil, nil, err
	}

	resp := provider.Cancel(ctx, charge.GatewayAccount, domain.CancelRequest{
		ChargeExternalID: charge.ExternalID,
		TransactionID:    charge.GatewayTransactionID,
	})

	var target domain.ChargeStatus
	switch resp.Status() {
	case domain.OperationCancelled:
		target = flow.done
	case domain.OperationSubmitted:
		target = flow.submitted
	default:
		target = flow.failed
	}

	updated, err := s.charges.Transition(ctx, charge.ExternalID, []domain.ChargeStatus{flow.ready}, target, nil)
	if err != nil {
		s.logger.Error("failed to record cancel outcome",
			zap.String("charge_id", charge.ExternalID),
			zap.String("target", string(target)),
			zap.Error(err))
		return nil, resp, err
	}

	return updated, resp, gatewayErr(domain.OperationCancel, resp)
}
