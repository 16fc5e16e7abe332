package service

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExpiryService(h *testHarness) *ExpiryService {
	return NewExpiryService(NewCancelService(h.charges, h.providers, zap.NewNop()), zap.NewNop())
}

func TestExpiryService_Expire(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(time.Second)

	charges := []*domain.Charge{
		newTestCharge("created", domain.StatusCreated),
		newTestCharge("entering", domain.StatusEnteringCardDetails),
		newTestCharge("authorised", domain.StatusAuthorisationSuccess),
		newTestCharge("cancel-fails", domain.StatusAuthorisationSuccess),
		newTestCharge("captured", domain.StatusCaptured),
	}
	for _, c := range charges {
		h.repo.Put(c)
	}

	h.provider.CancelFn = func(_ context.Context, req domain.CancelRequest) *domain.GatewayResponse {
		if req.ChargeExternalID == "cancel-fails" {
			return domain.ErrorResponse(&domain.GatewayError{Kind: domain.GatewayErrorProcessing, Message: "nope"})
		}
		return domain.SuccessResponse(domain.ProviderResponse{Status: domain.OperationCancelled})
	}

	result := newExpiryService(h).Expire(ctx, charges)

	assert.Equal(t, ExpiryResult{Expired: 3, Failed: 1, Errors: 1}, result)
	assert.Equal(t, domain.StatusExpired, h.repo.Get("created").Status)
	assert.Equal(t, domain.StatusExpired, h.repo.Get("entering").Status)
	assert.Equal(t, domain.StatusExpired, h.repo.Get("authorised").Status)
	assert.Equal(t, domain.StatusExpireCancelFailed, h.repo.Get("cancel-fails").Status)
	assert.Equal(t, domain.StatusCaptured, h.repo.Get("captured").Status)
	assert.Equal(t, 2, h.provider.GetCalls("Cancel"))
}

func TestExpiryService_Expire_GatewayPending(t *testing.T) {
	h := newTestHarness(time.Second)
	charge := newTestCharge("c1", domain.StatusAuthorisation3DSRequired)
	h.repo.Put(charge)
	h.provider.CancelFn = func(context.Context, domain.CancelRequest) *domain.GatewayResponse {
		return domain.SuccessResponse(domain.ProviderResponse{Status: domain.OperationSubmitted})
	}

	result := newExpiryService(h).Expire(context.Background(), []*domain.Charge{charge})

	assert.Equal(t, ExpiryResult{Pending: 1}, result)
	assert.Equal(t, domain.StatusExpireCancelSubmitted, h.repo.Get("c1").Status)
}

func TestExpiryService_Expire_StaleCharge(t *testing.T) {
	h := newTestHarness(time.Second)
	charge := newTestCharge("c1", domain.StatusAuthorisationSuccess)
	h.repo.Put(charge)

	_, err := h.charges.Transition(context.Background(), "c1", AnyStatus, domain.StatusCaptureApproved, nil)
	require.NoError(t, err)

	result := newExpiryService(h).Expire(context.Background(), []*domain.Charge{charge})

	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, domain.StatusCaptureApproved, h.repo.Get("c1").Status)
	assert.Equal(t, 0, h.provider.GetCalls("Cancel"))
}
