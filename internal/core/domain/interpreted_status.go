package domain

import "fmt"

type InterpretedKind int

const (
	InterpretedUnknown InterpretedKind = iota
	InterpretedIgnored
	InterpretedCharge
	InterpretedRefund
	InterpretedDeferred
)

func (k InterpretedKind) String() string {
	switch k {
	case InterpretedIgnored:
		return "IGNORED"
	case InterpretedCharge:
		return "CHARGE_STATUS"
	case InterpretedRefund:
		return "REFUND_STATUS"
	case InterpretedDeferred:
		return "DEFERRED"
	default:
		return "UNKNOWN"
	}
}

// StatusResolver picks a charge status based on the charge's current status.
// It returns false when it has no rule for current.
type StatusResolver func(current ChargeStatus) (ChargeStatus, bool)

// DeferredResolution is a resolver plus the status used when it has no rule.
type DeferredResolution struct {
	Resolve  StatusResolver
	Fallback ChargeStatus
}

// InterpretedStatus is the normalised meaning of a raw gateway status.
// Exactly one payload is populated, selected by Kind.
type InterpretedStatus struct {
	kind     InterpretedKind
	charge   ChargeStatus
	refund   RefundStatus
	deferred DeferredResolution
}

var (
	Ignored = InterpretedStatus{kind: InterpretedIgnored}
	Unknown = InterpretedStatus{kind: InterpretedUnknown}
)

func ChargeStatusResult(s ChargeStatus) InterpretedStatus {
	return InterpretedStatus{kind: InterpretedCharge, charge: s}
}

func RefundStatusResult(s RefundStatus) InterpretedStatus {
	return InterpretedStatus{kind: InterpretedRefund, refund: s}
}

func DeferredResult(d DeferredResolution) InterpretedStatus {
	return InterpretedStatus{kind: InterpretedDeferred, deferred: d}
}

func (i InterpretedStatus) Kind() InterpretedKind { return i.kind }

// ChargeStatus panics unless Kind is InterpretedCharge.
func (i InterpretedStatus) ChargeStatus() ChargeStatus {
	i.must(InterpretedCharge)
	return i.charge
}

// RefundStatus panics unless Kind is InterpretedRefund.
func (i InterpretedStatus) RefundStatus() RefundStatus {
	i.must(InterpretedRefund)
	return i.refund
}

// ResolveDeferred runs the resolver against current. matched is false when the
// fallback was used, which callers must surface.
func (i InterpretedStatus) ResolveDeferred(current ChargeStatus) (target ChargeStatus, matched bool) {
	i.must(InterpretedDeferred)
	if i.deferred.Resolve != nil {
		if s, ok := i.deferred.Resolve(current); ok {
			return s, true
		}
	}
	return i.deferred.Fallback, false
}

func (i InterpretedStatus) String() string {
	switch i.kind {
	case InterpretedCharge:
		return fmt.Sprintf("%s(%s)", i.kind, i.charge)
	case InterpretedRefund:
		return fmt.Sprintf("%s(%s)", i.kind, i.refund)
	default:
		return i.kind.String()
	}
}

func (i InterpretedStatus) must(k InterpretedKind) {
	if i.kind != k {
		panic(fmt.Sprintf("interpreted status is %s, not %s", i.kind, k))
	}
}

// CancelResolver maps a "cancelled" gateway report onto the cancel flow the
// charge was already in.
var CancelResolver = DeferredResolution{
	Resolve: func(current ChargeStatus) (ChargeStatus, bool) {
		switch current {
		case StatusUserCancelReady, StatusUserCancelSubmitted:
			return StatusUserCancelled, true
		case StatusSystemCancelReady, StatusSystemCancelSubmitted:
			return StatusSystemCancelled, true
		case StatusExpireCancelReady, StatusExpireCancelSubmitted:
			return StatusExpired, true
		}
		return "", false
	},
	Fallback: StatusSystemCancelled,
}
