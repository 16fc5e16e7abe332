package domain

// ChargeStatus represents the current state of a charge in its lifecycle
type ChargeStatus string

const (
	StatusCreated                      ChargeStatus = "CREATED"
	StatusEnteringCardDetails          ChargeStatus = "ENTERING_CARD_DETAILS"
	StatusAuthorisationReady           ChargeStatus = "AUTHORISATION_READY"
	StatusAuthorisationSubmitted       ChargeStatus = "AUTHORISATION_SUBMITTED"
	StatusAuthorisation3DSRequired     ChargeStatus = "AUTHORISATION_3DS_REQUIRED"
	StatusAuthorisation3DSReady        ChargeStatus = "AUTHORISATION_3DS_READY"
	StatusAuthorisationSuccess         ChargeStatus = "AUTHORISATION_SUCCESS"
	StatusAuthorisationRejected        ChargeStatus = "AUTHORISATION_REJECTED"
	StatusAuthorisationCancelled       ChargeStatus = "AUTHORISATION_CANCELLED"
	StatusAuthorisationError           ChargeStatus = "AUTHORISATION_ERROR"
	StatusAuthorisationTimeout         ChargeStatus = "AUTHORISATION_TIMEOUT"
	StatusAuthorisationUnexpectedError ChargeStatus = "AUTHORISATION_UNEXPECTED_ERROR"
	StatusCaptureApproved              ChargeStatus = "CAPTURE_APPROVED"
	StatusCaptureApprovedRetry         ChargeStatus = "CAPTURE_APPROVED_RETRY"
	StatusCaptureReady                 ChargeStatus = "CAPTURE_READY"
	StatusCaptureSubmitted             ChargeStatus = "CAPTURE_SUBMITTED"
	StatusCaptured                     ChargeStatus = "CAPTURED"
	StatusCaptureError                 ChargeStatus = "CAPTURE_ERROR"
	StatusExpireCancelReady            ChargeStatus = "EXPIRE_CANCEL_READY"
	StatusExpireCancelSubmitted        ChargeStatus = "EXPIRE_CANCEL_SUBMITTED"
	StatusExpireCancelFailed           ChargeStatus = "EXPIRE_CANCEL_FAILED"
	StatusExpired                      ChargeStatus = "EXPIRED"
	StatusSystemCancelReady            ChargeStatus = "SYSTEM_CANCEL_READY"
	StatusSystemCancelSubmitted        ChargeStatus = "SYSTEM_CANCEL_SUBMITTED"
	StatusSystemCancelError            ChargeStatus = "SYSTEM_CANCEL_ERROR"
	StatusSystemCancelled              ChargeStatus = "SYSTEM_CANCELLED"
	StatusUserCancelReady              ChargeStatus = "USER_CANCEL_READY"
	StatusUserCancelSubmitted          ChargeStatus = "USER_CANCEL_SUBMITTED"
	StatusUserCancelError              ChargeStatus = "USER_CANCEL_ERROR"
	StatusUserCancelled                ChargeStatus = "USER_CANCELLED"
)

// StatusGroup partitions charge statuses by lifecycle phase.
type StatusGroup int

const (
	GroupPending StatusGroup = iota + 1
	GroupSuccess
	GroupFailure
	GroupInFlight
)

// RefundGroup says how a charge status relates to refundability.
type RefundGroup int

const (
	RefundGroupPending RefundGroup = iota + 1
	RefundGroupNever
	RefundGroupEligible
)

type statusTraits struct {
	group                 StatusGroup
	awaitingGateway       bool
	expirable             bool
	requiresGatewayCancel bool
	refund                RefundGroup
}

var chargeStatusTraits = map[ChargeStatus]statusTraits{
	StatusCreated:                      {group: GroupPending, expirable: true, refund: RefundGroupPending},
	StatusEnteringCardDetails:          {group: GroupPending, expirable: true, refund: RefundGroupPending},
	StatusAuthorisationReady:           {group: GroupPending, awaitingGateway: true, refund: RefundGroupPending},
	StatusAuthorisationSubmitted:       {group: GroupPending, awaitingGateway: true, refund: RefundGroupPending},
	StatusAuthorisation3DSRequired:     {group: GroupPending, expirable: true, requiresGatewayCancel: true, refund: RefundGroupPending},
	StatusAuthorisation3DSReady:        {group: GroupPending, awaitingGateway: true, refund: RefundGroupPending},
	StatusAuthorisationSuccess:         {group: GroupInFlight, expirable: true, requiresGatewayCancel: true, refund: RefundGroupPending},
	StatusAuthorisationRejected:        {group: GroupFailure, refund: RefundGroupNever},
	StatusAuthorisationCancelled:       {group: GroupFailure, refund: RefundGroupNever},
	StatusAuthorisationError:           {group: GroupFailure, refund: RefundGroupNever},
	StatusAuthorisationTimeout:         {group: GroupFailure, refund: RefundGroupNever},
	StatusAuthorisationUnexpectedError: {group: GroupFailure, refund: RefundGroupNever},
	StatusCaptureApproved:              {group: GroupPending, refund: RefundGroupPending},
	StatusCaptureApprovedRetry:         {group: GroupPending, refund: RefundGroupPending},
	StatusCaptureReady:                 {group: GroupPending, awaitingGateway: true, refund: RefundGroupPending},
	StatusCaptureSubmitted:             {group: GroupPending, awaitingGateway: true, refund: RefundGroupEligible},
	StatusCaptured:                     {group: GroupSuccess, refund: RefundGroupEligible},
	StatusCaptureError:                 {group: GroupFailure, refund: RefundGroupNever},
	StatusExpireCancelReady:            {group: GroupInFlight, awaitingGateway: true, refund: RefundGroupNever},
	StatusExpireCancelSubmitted:        {group: GroupInFlight, awaitingGateway: true, refund: RefundGroupNever},
	StatusExpireCancelFailed:           {group: GroupFailure, refund: RefundGroupNever},
	StatusExpired:                      {group: GroupFailure, refund: RefundGroupNever},
	StatusSystemCancelReady:            {group: GroupInFlight, awaitingGateway: true, refund: RefundGroupNever},
	StatusSystemCancelSubmitted:        {group: GroupInFlight, awaitingGateway: true, refund: RefundGroupNever},
	StatusSystemCancelError:            {group: GroupFailure, refund: RefundGroupNever},
	StatusSystemCancelled:              {group: GroupFailure, refund: RefundGroupNever},
	StatusUserCancelReady:              {group: GroupInFlight, awaitingGateway: true, refund: RefundGroupNever},
	StatusUserCancelSubmitted:          {group: GroupInFlight, awaitingGateway: true, refund: RefundGroupNever},
	StatusUserCancelError:              {group: GroupFailure, refund: RefundGroupNever},
	StatusUserCancelled:                {group: GroupFailure, refund: RefundGroupNever},
}

// AllChargeStatuses returns every known charge status.
func AllChargeStatuses() []ChargeStatus {
	out := make([]ChargeStatus, 0, len(chargeStatusTraits))
	for s := range chargeStatusTraits {
		out = append(out, s)
	}
	return out
}

func (s ChargeStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the enumerated statuses.
func (s ChargeStatus) IsValid() bool {
	_, ok := chargeStatusTraits[s]
	return ok
}

func (s ChargeStatus) Group() StatusGroup {
	return chargeStatusTraits[s].group
}

// IsAwaitingGateway reports whether an operation on the gateway is outstanding.
func (s ChargeStatus) IsAwaitingGateway() bool {
	return chargeStatusTraits[s].awaitingGateway
}

func (s ChargeStatus) IsExpirable() bool {
	return chargeStatusTraits[s].expirable
}

// RequiresGatewayCancel reports whether terminating a charge in this status
// needs the gateway to release the authorisation first.
func (s ChargeStatus) RequiresGatewayCancel() bool {
	return chargeStatusTraits[s].requiresGatewayCancel
}

func (s ChargeStatus) RefundGroup() RefundGroup {
	return chargeStatusTraits[s].refund
}

// ExpirableStatuses lists the statuses an expiry sweep may select.
func ExpirableStatuses() []ChargeStatus {
	return statusesWhere(func(t statusTraits) bool { return t.expirable })
}

// CaptureEligibleStatuses lists the statuses the capture batch picks up.
func CaptureEligibleStatuses() []ChargeStatus {
	return []ChargeStatus{StatusCaptureApproved, StatusCaptureApprovedRetry}
}

func statusesWhere(pred func(statusTraits) bool) []ChargeStatus {
	var out []ChargeStatus
	for s, t := range chargeStatusTraits {
		if pred(t) {
			out = append(out, s)
		}
	}
	return out
}
