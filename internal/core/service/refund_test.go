package service

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRefundService(h *testHarness) *RefundService {
	return NewRefundService(h.charges, h.refunds, h.providers, zap.NewNop())
}

func existingRefund(chargeID string, amount int64, status domain.RefundStatus) *domain.Refund {
	r, _ := domain.NewRefund(chargeID, amount, "user-1")
	r.Status = status
	return r
}

func TestRefundService_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("partial refund submitted", func(t *testing.T) {
		h := newTestHarness(time.Second)
		h.repo.Put(newTestCharge("c1", domain.StatusCaptured))

		result, err := newRefundService(h).Refund(ctx, 42, "c1", 300, 1000, "user-1")
		require.NoError(t, err)
		require.NotNil(t, result.Refund)

		assert.Equal(t, domain.RefundStatusSubmitted, result.Refund.Status)
		assert.Equal(t, "ref-"+result.Refund.ExternalID, result.Refund.GatewayTransactionID)
		assert.Equal(t, int64(300), result.Refund.Amount)
		assert.Equal(t, "user-1", result.Refund.UserExternalID)
		assert.Equal(t, int64(1), h.repo.Get("c1").Version, "refund creation bumps charge version")
		assert.Equal(t, 1, h.provider.GetCalls("Refund"))
	})

	t.Run("refunded synchronously", func(t *testing.T) {
		h := newTestHarness(time.Second)
		h.repo.Put(newTestCharge("c1", domain.StatusCaptureSubmitted))
		h.provider.RefundFn = func(context.Context, domain.RefundRequest) *domain.GatewayResponse {
			return domain.SuccessResponse(domain.ProviderResponse{TransactionID: "gw-ref", Status: domain.OperationRefunded})
		}

		result, err := newRefundService(h).Refund(ctx, 42, "c1", 1000, 1000, "user-1")
		require.NoError(t, err)
		assert.Equal(t, domain.RefundStatusRefunded, result.Refund.Status)
		assert.Equal(t, "gw-ref", result.Refund.GatewayTransactionID)
	})

	t.Run("gateway failure records refund error", func(t *testing.T) {
		h := newTestHarness(time.Second)
		h.repo.Put(newTestCharge("c1", domain.StatusCaptured))
		h.provider.RefundFn = func(context.Context, domain.RefundRequest) *domain.GatewayResponse {
			return domain.ErrorResponse(&domain.GatewayError{Kind: domain.GatewayErrorProcessing, Message: "rejected", StatusCode: 422})
		}

		result, err := newRefundService(h).Refund(ctx, 42, "c1", 100, 1000, "user-1")
		require.Error(t, err)
		assert.True(t, domain.IsGatewayError(err))
		require.NotNil(t, result)
		assert.Equal(t, domain.RefundStatusError, result.Refund.Status)
		assert.Empty(t, result.Refund.GatewayTransactionID)

		// an errored refund does not reduce the remainder
		_, err = newRefundService(h).Refund(ctx, 42, "c1", 100, 1000, "user-1")
		assert.True(t, domain.IsGatewayError(err))
	})

	t.Run("surcharge is refundable", func(t *testing.T) {
		h := newTestHarness(time.Second)
		c := newTestCharge("c1", domain.StatusCaptured)
		c.CorporateSurcharge = 250
		h.repo.Put(c)

		_, err := newRefundService(h).Refund(ctx, 42, "c1", 1250, 1250, "user-1")
		require.NoError(t, err)
	})
}

func TestRefundService_Refund_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name            string
		status          domain.ChargeStatus
		prior           []*domain.Refund
		accountID       int64
		amount          int64
		amountAvailable int64
		wantCode        string
	}{
		{
			name:            "other account",
			status:          domain.StatusCaptured,
			accountID:       7,
			amount:          100,
			amountAvailable: 1000,
			wantCode:        domain.ErrCodeChargeNotFound,
		},
		{
			name:            "not yet captured",
			status:          domain.StatusAuthorisationSuccess,
			accountID:       42,
			amount:          100,
			amountAvailable: 1000,
			wantCode:        domain.ErrCodeRefundNotAvailable,
		},
		{
			name:            "failed charge",
			status:          domain.StatusExpired,
			accountID:       42,
			amount:          100,
			amountAvailable: 1000,
			wantCode:        domain.ErrCodeRefundNotAvailable,
		},
		{
			name:            "fully refunded",
			status:          domain.StatusCaptured,
			prior:           []*domain.Refund{existingRefund("c1", 1000, domain.RefundStatusRefunded)},
			accountID:       42,
			amount:          100,
			amountAvailable: 0,
			wantCode:        domain.ErrCodeRefundNotAvailable,
		},
		{
			name:            "stale amount available",
			status:          domain.StatusCaptured,
			prior:           []*domain.Refund{existingRefund("c1", 300, domain.RefundStatusSubmitted)},
			accountID:       42,
			amount:          100,
			amountAvailable: 1000,
			wantCode:        domain.ErrCodeRefundAmountAvailableMismatch,
		},
		{
			name:            "more than remainder",
			status:          domain.StatusCaptured,
			prior:           []*domain.Refund{existingRefund("c1", 300, domain.RefundStatusSubmitted)},
			accountID:       42,
			amount:          800,
			amountAvailable: 700,
			wantCode:        domain.ErrCodeInvalidAmount,
		},
		{
			name:            "zero amount",
			status:          domain.StatusCaptured,
			accountID:       42,
			amount:          0,
			amountAvailable: 1000,
			wantCode:        domain.ErrCodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(time.Second)
			h.repo.Put(newTestCharge("c1", tt.status))
			for _, r := range tt.prior {
				h.refunds.Put(r)
			}

			_, err := newRefundService(h).Refund(ctx, tt.accountID, "c1", tt.amount, tt.amountAvailable, "user-1")
			require.Error(t, err)
			assert.True(t, domain.IsErrorCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, 0, h.provider.GetCalls("Refund"))
		})
	}
}

func TestRefundService_Refund_ConcurrentModification(t *testing.T) {
	h := newTestHarness(time.Second)
	h.repo.Put(newTestCharge("c1", domain.StatusCaptured))
	h.refunds.CreateFn = func(context.Context, *domain.Refund, int64) error {
		return ports.ErrVersionConflict
	}

	_, err := newRefundService(h).Refund(context.Background(), 42, "c1", 100, 1000, "user-1")
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, 0, h.provider.GetCalls("Refund"))
}

func TestRefundService_Refund_SecondRefundSeesFirst(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(time.Second)
	h.repo.Put(newTestCharge("c1", domain.StatusCaptured))
	svc := newRefundService(h)

	_, err := svc.Refund(ctx, 42, "c1", 600, 1000, "user-1")
	require.NoError(t, err)

	_, err = svc.Refund(ctx, 42, "c1", 600, 1000, "user-2")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeRefundAmountAvailableMismatch))

	_, err = svc.Refund(ctx, 42, "c1", 400, 400, "user-2")
	require.NoError(t, err)

	_, err = svc.Refund(ctx, 42, "c1", 1, 0, "user-2")
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeRefundNotAvailable))
}
