package domain

import (
	"time"

	"github.com/google/uuid"
)

type RefundStatus string

const (
	RefundStatusCreated   RefundStatus = "CREATED"
	RefundStatusSubmitted RefundStatus = "REFUND_SUBMITTED"
	RefundStatusRefunded  RefundStatus = "REFUNDED"
	RefundStatusError     RefundStatus = "REFUND_ERROR"
)

func (s RefundStatus) String() string {
	return string(s)
}

// Refund represents one attempt to return funds against a charge
type Refund struct {
	ExternalID           string
	ChargeExternalID     string
	Amount               int64
	Status               RefundStatus
	GatewayTransactionID string
	UserExternalID       string
	Version              int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewRefund(chargeExternalID string, amount int64, userExternalID string) (*Refund, error) {
	if amount <= 0 {
		return nil, NewInvalidAmountError(amount)
	}
	now := time.Now().UTC()
	return &Refund{
		ExternalID:       uuid.NewString(),
		ChargeExternalID: chargeExternalID,
		Amount:           amount,
		Status:           RefundStatusCreated,
		UserExternalID:   userExternalID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// TransitionTo advances the refund; refund statuses never move backwards.
func (r *Refund) TransitionTo(target RefundStatus) (bool, error) {
	if r.Status == target {
		return false, nil
	}
	if !CanTransitionRefund(r.Status, target) {
		return false, NewInvalidTransitionError(r.Status, target)
	}
	r.Status = target
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

// CountsAgainstCharge reports whether the refund reduces the refundable remainder.
func (r *Refund) CountsAgainstCharge() bool {
	return r.Status != RefundStatusError
}

func (r *Refund) Clone() *Refund {
	cp := *r
	return &cp
}
