package gateway

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
)

const WorldpayName = "worldpay"

func NewWorldpay(transport ports.GatewayTransport, refunds *domain.RefundAvailabilityCalculator) *Provider {
	return &Provider{
		name: WorldpayName,
		mapper: domain.NewStatusMapperBuilder().
			Ignore("SENT_FOR_AUTHORISATION", "AUTHORISED", "SETTLED", "SETTLED_BY_MERCHANT", "SENT_FOR_REFUND").
			MapChargeWhen("REFUSED", domain.StatusAuthorisationSubmitted, domain.StatusAuthorisationRejected).
			MapCharge("CAPTURED", domain.StatusCaptured).
			Defer("CANCELLED", domain.CancelResolver).
			MapRefund("REFUNDED", domain.RefundStatusRefunded).
			MapRefund("REFUNDED_BY_MERCHANT", domain.RefundStatusRefunded).
			MapRefund("REFUND_FAILED", domain.RefundStatusError).
			Build(),
		transport: transport,
		responses: map[string]domain.OperationStatus{
			"AUTHORISED":       domain.OperationAuthorised,
			"REFUSED":          domain.OperationRejected,
			"3DS_REQUIRED":     domain.OperationRequires3DS,
			"SENT_FOR_AUTH":    domain.OperationSubmitted,
			"CAPTURE_RECEIVED": domain.OperationSubmitted,
			"CAPTURED":         domain.OperationCaptured,
			"CANCEL_RECEIVED":  domain.OperationSubmitted,
			"CANCELLED":        domain.OperationCancelled,
			"REFUND_RECEIVED":  domain.OperationSubmitted,
			"ERROR":            domain.OperationError,
		},
		newTxID: uuidTxID,
		parse:   parseWorldpayNotification,
		refunds: refunds,
	}
}

type worldpayDate struct {
	Day   int `xml:"dayOfMonth,attr"`
	Month int `xml:"month,attr"`
	Year  int `xml:"year,attr"`
}

type worldpayOrderStatusEvent struct {
	OrderCode string `xml:"orderCode,attr"`
	Payment   struct {
		LastEvent string `xml:"lastEvent"`
	} `xml:"payment"`
	Journal struct {
		BookingDate struct {
			Date worldpayDate `xml:"date"`
		} `xml:"bookingDate"`
		References []struct {
			Type      string `xml:"type,attr"`
			Reference string `xml:"reference,attr"`
		} `xml:"journalReference"`
	} `xml:"journal"`
}

type worldpayPaymentService struct {
	XMLName xml.Name `xml:"paymentService"`
	Notify  struct {
		Events []worldpayOrderStatusEvent `xml:"orderStatusEvent"`
	} `xml:"notify"`
}

func parseWorldpayNotification(payload []byte) ([]domain.Notification, error) {
	var doc worldpayPaymentService
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode worldpay notification: %w", err)
	}

	out := make([]domain.Notification, 0, len(doc.Notify.Events))
	for _, ev := range doc.Notify.Events {
		n := domain.Notification{
			TransactionID: ev.OrderCode,
			Status:        ev.Payment.LastEvent,
		}
		for _, ref := range ev.Journal.References {
			if ref.Type == "refund" {
				n.Reference = ref.Reference
			}
		}
		if d := ev.Journal.BookingDate.Date; d.Year > 0 {
			n.GeneratedAt = time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
		}
		out = append(out, n)
	}
	return out, nil
}
