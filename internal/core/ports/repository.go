package ports

import (
	"context"
	"errors"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
)

// ErrVersionConflict is returned by Merge when the stored version no longer
// matches the version the caller loaded.
var ErrVersionConflict = errors.New("version conflict")

// ChargeRepository defines the persistence operations for charges
type ChargeRepository interface {
	Create(ctx context.Context, charge *domain.Charge) error
	// FindByExternalID returns a CHARGE_NOT_FOUND DomainError when absent.
	FindByExternalID(ctx context.Context, externalID string) (*domain.Charge, error)
	// FindByProviderAndTransactionID returns a CHARGE_NOT_FOUND DomainError when absent.
	FindByProviderAndTransactionID(ctx context.Context, gatewayName, transactionID string) (*domain.Charge, error)
	// FindAllEligibleForCapture pages through charges in statuses, least recently updated first.
	FindAllEligibleForCapture(ctx context.Context, statuses []domain.ChargeStatus, pageSize, pageNumber int) ([]*domain.Charge, error)
	FindBeforeDateWithStatusIn(ctx context.Context, cutoff time.Time, statuses []domain.ChargeStatus, limit int) ([]*domain.Charge, error)
	// Merge persists charge and event if charge.Version is still current and
	// returns the stored charge with its new version.
	Merge(ctx context.Context, charge *domain.Charge, event domain.ChargeEvent) (*domain.Charge, error)
	CountEvents(ctx context.Context, externalID string, status domain.ChargeStatus) (int, error)
}

// RefundRepository defines the persistence operations for refunds
type RefundRepository interface {
	// Create stores refund and bumps the owning charge's version, failing with
	// ErrVersionConflict if chargeVersion is stale.
	Create(ctx context.Context, refund *domain.Refund, chargeVersion int64) error
	FindByChargeExternalID(ctx context.Context, chargeExternalID string) ([]*domain.Refund, error)
	// FindByProviderAndTransactionIDAndReference returns a REFUND_NOT_FOUND DomainError when absent.
	FindByProviderAndTransactionIDAndReference(ctx context.Context, gatewayName, transactionID, reference string) (*domain.Refund, error)
	Merge(ctx context.Context, refund *domain.Refund) (*domain.Refund, error)
}
