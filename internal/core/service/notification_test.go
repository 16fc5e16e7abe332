package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func notificationMapper() *domain.StatusMapper {
	return domain.NewStatusMapperBuilder().
		Ignore("PENDING").
		MapCharge("CAPTURED", domain.StatusCaptured).
		MapChargeWhen("REFUSED", domain.StatusAuthorisationSubmitted, domain.StatusAuthorisationRejected).
		MapRefund("REFUNDED", domain.RefundStatusRefunded).
		MapRefund("REFUND_FAILED", domain.RefundStatusError).
		Defer("CANCELLED", domain.CancelResolver).
		Build()
}

type notificationFixture struct {
	*testHarness
	svc  *NotificationService
	logs *observer.ObservedLogs
}

func newNotificationFixture(notifications ...domain.Notification) *notificationFixture {
	h := newTestHarness(time.Second)
	h.provider.Mapper = notificationMapper()
	h.provider.ParseNotificationFn = func([]byte) ([]domain.Notification, error) {
		return notifications, nil
	}

	core, logs := observer.New(zapcore.DebugLevel)
	return &notificationFixture{
		testHarness: h,
		svc:         NewNotificationService(h.charges, h.repo, h.refunds, h.providers, zap.New(core)),
		logs:        logs,
	}
}

func (f *notificationFixture) logged(msg string) int {
	return f.logs.FilterMessage(msg).Len()
}

func TestNotificationService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("applies mapped charge status", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-c1", Status: "CAPTURED"})
		f.repo.Put(newTestCharge("c1", domain.StatusCaptureSubmitted))

		f.svc.Accept(ctx, testGateway, []byte("{}"))

		assert.Equal(t, domain.StatusCaptured, f.repo.Get("c1").Status)
		require.Len(t, f.publisher.Changes(), 1)
		assert.Equal(t, domain.StatusCaptured, f.publisher.Changes()[0].To)
	})

	t.Run("replay is a no-op", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-c1", Status: "CAPTURED"})
		f.repo.Put(newTestCharge("c1", domain.StatusCaptureSubmitted))

		f.svc.Accept(ctx, testGateway, nil)
		f.svc.Accept(ctx, testGateway, nil)
		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, domain.StatusCaptured, f.repo.Get("c1").Status)
		assert.Len(t, f.repo.Events(), 1)
		assert.Len(t, f.publisher.Changes(), 1)
	})

	t.Run("unknown transaction id", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-missing", Status: "CAPTURED"})
		f.repo.Put(newTestCharge("c1", domain.StatusCaptureSubmitted))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, 1, f.logged("charge not found"))
		assert.Equal(t, domain.StatusCaptureSubmitted, f.repo.Get("c1").Status)
		assert.Empty(t, f.repo.Events())
	})

	t.Run("blank transaction id", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{Status: "CAPTURED"})

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, 1, f.logged("missing transaction id"))
		assert.Equal(t, 0, f.repo.GetCalls("FindByProviderAndTransactionID"))
	})

	t.Run("ignored and unknown statuses change nothing", func(t *testing.T) {
		f := newNotificationFixture(
			domain.Notification{TransactionID: "tx-c1", Status: "PENDING"},
			domain.Notification{TransactionID: "tx-c1", Status: "WHO_KNOWS"},
		)
		f.repo.Put(newTestCharge("c1", domain.StatusCaptureSubmitted))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, 1, f.logged("ignored status"))
		assert.Equal(t, 1, f.logged("unknown status"))
		assert.Empty(t, f.repo.Events())
	})

	t.Run("conditional mapping needs exact current status", func(t *testing.T) {
		f := newNotificationFixture(
			domain.Notification{TransactionID: "tx-c1", Status: "REFUSED"},
			domain.Notification{TransactionID: "tx-c2", Status: "REFUSED"},
		)
		f.repo.Put(newTestCharge("c1", domain.StatusAuthorisationSubmitted))
		f.repo.Put(newTestCharge("c2", domain.StatusAuthorisationSuccess))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, domain.StatusAuthorisationRejected, f.repo.Get("c1").Status)
		assert.Equal(t, domain.StatusAuthorisationSuccess, f.repo.Get("c2").Status)
		assert.Equal(t, 1, f.logged("unknown status"))
	})

	t.Run("deferred cancel resolves from current status", func(t *testing.T) {
		f := newNotificationFixture(
			domain.Notification{TransactionID: "tx-user", Status: "CANCELLED"},
			domain.Notification{TransactionID: "tx-expire", Status: "CANCELLED"},
			domain.Notification{TransactionID: "tx-system", Status: "CANCELLED"},
		)
		f.repo.Put(newTestCharge("user", domain.StatusUserCancelSubmitted))
		f.repo.Put(newTestCharge("expire", domain.StatusExpireCancelSubmitted))
		f.repo.Put(newTestCharge("system", domain.StatusSystemCancelReady))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, domain.StatusUserCancelled, f.repo.Get("user").Status)
		assert.Equal(t, domain.StatusExpired, f.repo.Get("expire").Status)
		assert.Equal(t, domain.StatusSystemCancelled, f.repo.Get("system").Status)
		assert.Zero(t, f.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	})

	t.Run("deferred fallback is logged and still validated", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-c1", Status: "CANCELLED"})
		f.repo.Put(newTestCharge("c1", domain.StatusCaptured))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, 1, f.logged("no deferred mapping for current status, using fallback"))
		assert.Equal(t, 1, f.logged("failed to apply notification"))
		assert.Equal(t, domain.StatusCaptured, f.repo.Get("c1").Status)
	})

	t.Run("illegal target is rejected", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-c1", Status: "CAPTURED"})
		f.repo.Put(newTestCharge("c1", domain.StatusExpired))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, domain.StatusExpired, f.repo.Get("c1").Status)
		assert.Equal(t, 1, f.logged("failed to apply notification"))
	})

	t.Run("refund notification", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-c1", Reference: "gw-ref-1", Status: "REFUNDED"})
		f.repo.Put(newTestCharge("c1", domain.StatusCaptured))
		refund := existingRefund("c1", 100, domain.RefundStatusSubmitted)
		refund.GatewayTransactionID = "gw-ref-1"
		f.refunds.Put(refund)

		f.svc.Accept(ctx, testGateway, nil)
		f.svc.Accept(ctx, testGateway, nil)

		stored := f.refunds.Get(refund.ExternalID)
		assert.Equal(t, domain.RefundStatusRefunded, stored.Status)
		assert.Equal(t, int64(1), stored.Version)
		assert.Equal(t, domain.StatusCaptured, f.repo.Get("c1").Status)
	})

	t.Run("refund notification without reference", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-c1", Status: "REFUNDED"})
		f.repo.Put(newTestCharge("c1", domain.StatusCaptured))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, 1, f.logged("missing reference"))
	})

	t.Run("unknown refund reference", func(t *testing.T) {
		f := newNotificationFixture(domain.Notification{TransactionID: "tx-c1", Reference: "nope", Status: "REFUND_FAILED"})

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, 1, f.logged("refund not found"))
	})

	t.Run("bad entry does not stop the rest", func(t *testing.T) {
		f := newNotificationFixture(
			domain.Notification{TransactionID: "tx-gone", Status: "CAPTURED"},
			domain.Notification{TransactionID: "tx-c1", Status: "CAPTURED"},
		)
		f.repo.Put(newTestCharge("c1", domain.StatusCaptureSubmitted))

		f.svc.Accept(ctx, testGateway, nil)

		assert.Equal(t, domain.StatusCaptured, f.repo.Get("c1").Status)
	})

	t.Run("unsupported gateway", func(t *testing.T) {
		f := newNotificationFixture()

		f.svc.Accept(ctx, "nowhere", nil)

		assert.Equal(t, 1, f.logged("unsupported gateway"))
	})

	t.Run("unparseable payload", func(t *testing.T) {
		f := newNotificationFixture()
		f.provider.ParseNotificationFn = func([]byte) ([]domain.Notification, error) {
			return nil, errors.New("bad xml")
		}

		f.svc.Accept(ctx, testGateway, []byte("<"))

		assert.Equal(t, 1, f.logged("notification parse failed"))
	})
}
