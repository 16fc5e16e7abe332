package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
)

const SmartpayName = "smartpay"

// Smartpay notifications combine the event code and success flag into one raw
// status, e.g. "CAPTURE:true".
func NewSmartpay(transport ports.GatewayTransport, refunds *domain.RefundAvailabilityCalculator) *Provider {
	return &Provider{
		name: SmartpayName,
		mapper: domain.NewStatusMapperBuilder().
			Ignore("AUTHORISATION:true", "AUTHORISATION:false", "CAPTURE:false", "REPORT_AVAILABLE:true").
			MapCharge("CAPTURE:true", domain.StatusCaptured).
			Defer("CANCELLATION:true", domain.CancelResolver).
			MapRefund("REFUND:true", domain.RefundStatusRefunded).
			MapRefund("REFUND:false", domain.RefundStatusError).
			MapRefund("REFUND_FAILED:true", domain.RefundStatusError).
			Build(),
		transport: transport,
		responses: map[string]domain.OperationStatus{
			"Authorised":         domain.OperationAuthorised,
			"Refused":            domain.OperationRejected,
			"RedirectShopper":    domain.OperationRequires3DS,
			"Received":           domain.OperationSubmitted,
			"[capture-received]": domain.OperationSubmitted,
			"[cancel-received]":  domain.OperationSubmitted,
			"[refund-received]":  domain.OperationSubmitted,
			"Error":              domain.OperationError,
		},
		newTxID: noTxID,
		parse:   parseSmartpayNotification,
		refunds: refunds,
	}
}

type smartpayItem struct {
	EventCode         string `json:"eventCode"`
	Success           string `json:"success"`
	PspReference      string `json:"pspReference"`
	OriginalReference string `json:"originalReference"`
	EventDate         string `json:"eventDate"`
}

type smartpayPayload struct {
	NotificationItems []struct {
		Item smartpayItem `json:"NotificationRequestItem"`
	} `json:"notificationItems"`
}

func parseSmartpayNotification(payload []byte) ([]domain.Notification, error) {
	var p smartpayPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode smartpay notification: %w", err)
	}

	out := make([]domain.Notification, 0, len(p.NotificationItems))
	for _, wrapper := range p.NotificationItems {
		item := wrapper.Item
		success, _ := strconv.ParseBool(item.Success)

		// Modifications carry the authorisation's psp reference as originalReference.
		txID := item.OriginalReference
		if txID == "" {
			txID = item.PspReference
		}

		n := domain.Notification{
			TransactionID: txID,
			Reference:     item.PspReference,
			Status:        item.EventCode + ":" + strconv.FormatBool(success),
		}
		if ts, err := time.Parse(time.RFC3339, item.EventDate); err == nil {
			n.GeneratedAt = ts
		}
		out = append(out, n)
	}
	return out, nil
}
