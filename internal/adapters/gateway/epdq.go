package gateway

import (
	"fmt"
	"net/url"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
)

const EpdqName = "epdq"

// ePDQ reports numeric statuses: 9 payment requested, 2 refused, 6 authorised
// and cancelled, 8 refund, 83 refund refused.
func NewEpdq(transport ports.GatewayTransport, refunds *domain.RefundAvailabilityCalculator) *Provider {
	return &Provider{
		name: EpdqName,
		mapper: domain.NewStatusMapperBuilder().
			Ignore("5", "91", "81").
			MapChargeWhen("2", domain.StatusAuthorisationSubmitted, domain.StatusAuthorisationRejected).
			MapCharge("9", domain.StatusCaptured).
			Defer("6", domain.CancelResolver).
			MapRefund("8", domain.RefundStatusRefunded).
			MapRefund("83", domain.RefundStatusError).
			Build(),
		transport: transport,
		responses: map[string]domain.OperationStatus{
			"5":  domain.OperationAuthorised,
			"2":  domain.OperationRejected,
			"46": domain.OperationRequires3DS,
			"51": domain.OperationSubmitted,
			"91": domain.OperationSubmitted,
			"9":  domain.OperationCaptured,
			"6":  domain.OperationCancelled,
			"61": domain.OperationSubmitted,
			"81": domain.OperationSubmitted,
			"8":  domain.OperationRefunded,
			"0":  domain.OperationError,
		},
		newTxID: uuidTxID,
		parse:   parseEpdqNotification,
		refunds: refunds,
	}
}

// parseEpdqNotification reads a form-encoded post. ePDQ sends one entry per
// request.
func parseEpdqNotification(payload []byte) ([]domain.Notification, error) {
	values, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("decode epdq notification: %w", err)
	}

	status := values.Get("STATUS")
	if status == "" {
		return nil, fmt.Errorf("decode epdq notification: missing STATUS")
	}

	n := domain.Notification{
		TransactionID: values.Get("orderID"),
		Status:        status,
	}
	if payID := values.Get("PAYID"); payID != "" {
		n.Reference = payID + "/" + values.Get("PAYIDSUB")
	}
	return []domain.Notification{n}, nil
}
