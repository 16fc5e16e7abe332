package domain

import "slices"

// chargeTransitions is the adjacency table of legal charge transitions.
// Any (current, target) pair absent from it is illegal.
var chargeTransitions = map[ChargeStatus][]ChargeStatus{
	StatusCreated: {
		StatusEnteringCardDetails,
		StatusExpired,
		StatusSystemCancelled,
	},
	StatusEnteringCardDetails: {
		StatusAuthorisationReady,
		StatusExpired,
		StatusSystemCancelled,
		StatusUserCancelled,
	},
	StatusAuthorisationReady: {
		StatusAuthorisationSubmitted,
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisation3DSRequired,
		StatusAuthorisationCancelled,
		StatusAuthorisationError,
		StatusAuthorisationTimeout,
		StatusAuthorisationUnexpectedError,
	},
	StatusAuthorisationSubmitted: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
	},
	StatusAuthorisation3DSRequired: {
		StatusAuthorisation3DSReady,
		StatusUserCancelReady,
		StatusSystemCancelReady,
		StatusExpireCancelReady,
	},
	StatusAuthorisation3DSReady: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationCancelled,
		StatusAuthorisationError,
		StatusAuthorisationTimeout,
		StatusAuthorisationUnexpectedError,
	},
	StatusAuthorisationSuccess: {
		StatusCaptureApproved,
		StatusCaptureReady,
		StatusUserCancelReady,
		StatusSystemCancelReady,
		StatusExpireCancelReady,
	},
	StatusCaptureApproved: {
		StatusCaptureReady,
		StatusCaptureError,
	},
	StatusCaptureApprovedRetry: {
		StatusCaptureReady,
		StatusCaptureError,
	},
	StatusCaptureReady: {
		StatusCaptureSubmitted,
		StatusCaptured,
		StatusCaptureApprovedRetry,
		StatusCaptureError,
	},
	StatusCaptureSubmitted: {
		StatusCaptured,
		StatusCaptureError,
	},
	StatusExpireCancelReady: {
		StatusExpireCancelSubmitted,
		StatusExpired,
		StatusExpireCancelFailed,
	},
	StatusExpireCancelSubmitted: {
		StatusExpired,
		StatusExpireCancelFailed,
	},
	StatusSystemCancelReady: {
		StatusSystemCancelSubmitted,
		StatusSystemCancelled,
		StatusSystemCancelError,
	},
	StatusSystemCancelSubmitted: {
		StatusSystemCancelled,
		StatusSystemCancelError,
	},
	StatusUserCancelReady: {
		StatusUserCancelSubmitted,
		StatusUserCancelled,
		StatusUserCancelError,
	},
	StatusUserCancelSubmitted: {
		StatusUserCancelled,
		StatusUserCancelError,
	},
}

// CanTransition reports whether the table allows moving from current to target.
func CanTransition(current, target ChargeStatus) bool {
	return slices.Contains(chargeTransitions[current], target)
}

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundStatusCreated:   {RefundStatusSubmitted, RefundStatusRefunded, RefundStatusError},
	RefundStatusSubmitted: {RefundStatusRefunded, RefundStatusError},
}

func CanTransitionRefund(current, target RefundStatus) bool {
	return slices.Contains(refundTransitions[current], target)
}
