// Package handler exposes the gateway notification endpoint.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type NotificationService interface {
	Accept(ctx context.Context, gatewayName string, payload []byte)
}

type NotificationHandler struct {
	notifications NotificationService
	maxBodyBytes  int64
	logger        *zap.Logger
}

func NewNotificationHandler(notifications NotificationService, maxBodyBytes int64, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		maxBodyBytes:  maxBodyBytes,
		logger:        logger,
	}
}

func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/api/notifications/{gateway}", h.HandleNotification)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// HandleNotification acknowledges every readable payload. Processing problems
// are logged by the service and never reported back to the gateway.
func (h *NotificationHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	gatewayName := r.PathValue("gateway")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("notification payload too large",
				zap.String("gateway", gatewayName),
				zap.Int64("limit", tooLarge.Limit))
			respondWithJSON(w, http.StatusRequestEntityTooLarge, &APIError{
				Code:    "PAYLOAD_TOO_LARGE",
				Message: "notification payload exceeds limit",
			})
			return
		}
		h.logger.Warn("failed to read notification", zap.String("gateway", gatewayName), zap.Error(err))
		respondWithJSON(w, http.StatusBadRequest, &APIError{
			Code:    "INVALID_PAYLOAD",
			Message: "unreadable notification payload",
		})
		return
	}

	h.notifications.Accept(r.Context(), gatewayName, payload)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
