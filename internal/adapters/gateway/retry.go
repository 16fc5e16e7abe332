package gateway

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/config"
	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"go.uber.org/zap"
)

// retryableOps are safe to resend: the gateway treats a repeated capture or
// cancel of the same transaction as the same request.
var retryableOps = map[domain.OperationType]bool{
	domain.OperationCapture: true,
	domain.OperationCancel:  true,
}

// RetryTransport resends idempotent operations on transient failures.
type RetryTransport struct {
	inner      ports.GatewayTransport
	baseDelay  time.Duration
	maxRetries int
	logger     *zap.Logger
}

func NewRetryTransport(inner ports.GatewayTransport, cfg config.RetryConfig, logger *zap.Logger) *RetryTransport {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryTransport{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (r *RetryTransport) Send(
	ctx context.Context,
	gatewayName string,
	account domain.GatewayAccount,
	op domain.OperationType,
	req any,
) (*ports.TransportResponse, error) {
	if !retryableOps[op] {
		return r.inner.Send(ctx, gatewayName, account, op, req)
	}

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := r.inner.Send(ctx, gatewayName, account, op, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			delay := r.backoff(attempt)
			r.logger.Info("retrying gateway request",
				zap.String("gateway", gatewayName),
				zap.String("operation", string(op)),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, lastErr
}

func isRetryable(err error) bool {
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.IsConnectionFailure() {
		return true
	}
	return gerr.StatusCode >= 500
}

// backoff doubles the base delay per attempt and adds up to one base delay of jitter.
func (r *RetryTransport) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	if r.baseDelay <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int63n(int64(r.baseDelay)))
	return base + jitter
}
