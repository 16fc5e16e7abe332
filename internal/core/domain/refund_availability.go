package domain

import "go.uber.org/zap"

type RefundAvailability string

const (
	RefundPending     RefundAvailability = "PENDING"
	RefundUnavailable RefundAvailability = "UNAVAILABLE"
	RefundAvailable   RefundAvailability = "AVAILABLE"
	RefundFull        RefundAvailability = "FULL"
)

// IsTerminal reports whether a stored availability is an archival snapshot.
func (a RefundAvailability) IsTerminal() bool {
	return a == RefundUnavailable || a == RefundFull
}

// RefundAvailabilityCalculator derives how much of a charge can still be refunded.
type RefundAvailabilityCalculator struct {
	Logger *zap.Logger
}

func NewRefundAvailabilityCalculator(logger *zap.Logger) *RefundAvailabilityCalculator {
	return &RefundAvailabilityCalculator{Logger: logger}
}

func (c *RefundAvailabilityCalculator) Calculate(charge *Charge, refunds []*Refund) RefundAvailability {
	switch charge.Status.RefundGroup() {
	case RefundGroupPending:
		return RefundPending
	case RefundGroupEligible:
	default:
		return RefundUnavailable
	}

	refunded := TotalRefunded(refunds)
	remaining := charge.TotalAmount() - refunded

	switch {
	case remaining < 0:
		c.logger().Error("refunded total exceeds charge total",
			zap.String("charge_id", charge.ExternalID),
			zap.Int64("total_amount", charge.TotalAmount()),
			zap.Int64("refunded", refunded),
		)
		return RefundUnavailable
	case remaining == 0:
		return RefundFull
	default:
		return RefundAvailable
	}
}

// CalculateFromStored recomputes only when stored is non-terminal.
func (c *RefundAvailabilityCalculator) CalculateFromStored(stored RefundAvailability, charge *Charge, refunds []*Refund) RefundAvailability {
	if stored.IsTerminal() {
		return stored
	}
	return c.Calculate(charge, refunds)
}

// TotalRefunded sums refunds that count against the charge.
func TotalRefunded(refunds []*Refund) int64 {
	var total int64
	for _, r := range refunds {
		if r.CountsAgainstCharge() {
			total += r.Amount
		}
	}
	return total
}

func (c *RefundAvailabilityCalculator) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
