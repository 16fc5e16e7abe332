package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/config"
	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/DanielPopoola/charge-connector/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultGatewayTimeout = 10 * time.Second

type endpoint struct {
	baseURL string
	client  *http.Client
}

// HTTPTransport posts the normalised request envelope to a gateway's
// adapter endpoint and decodes the normalised reply.
type HTTPTransport struct {
	endpoints map[string]endpoint
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewHTTPTransport(cfg config.GatewaysConfig, tracer trace.Tracer, logger *zap.Logger) *HTTPTransport {
	eps := make(map[string]endpoint)
	for name, ep := range cfg.Endpoints() {
		timeout := ep.Timeout
		if timeout == 0 {
			timeout = defaultGatewayTimeout
		}
		eps[name] = endpoint{
			baseURL: ep.BaseURL,
			client:  &http.Client{Timeout: timeout},
		}
	}
	return &HTTPTransport{endpoints: eps, tracer: tracer, logger: logger}
}

type requestEnvelope struct {
	AccountID   int64             `json:"account_id"`
	AccountType string            `json:"account_type"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Operation   string            `json:"operation"`
	Request     any               `json:"request"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (t *HTTPTransport) Send(
	ctx context.Context,
	gatewayName string,
	account domain.GatewayAccount,
	op domain.OperationType,
	req any,
) (*ports.TransportResponse, error) {
	ep, ok := t.endpoints[gatewayName]
	if !ok {
		return nil, &domain.GatewayError{
			Kind:    domain.GatewayErrorConnection,
			Message: fmt.Sprintf("no endpoint configured for gateway %s", gatewayName),
		}
	}

	ctx, span := t.tracer.Start(ctx, "gateway."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.name", gatewayName),
			attribute.Int64("gateway.account_id", account.ID),
		))
	defer span.End()

	start := time.Now()
	resp, err := t.post(ctx, ep, requestEnvelope{
		AccountID:   account.ID,
		AccountType: string(account.Type),
		Credentials: account.Credentials,
		Operation:   string(op),
		Request:     req,
	})
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		var gerr *domain.GatewayError
		if errors.As(err, &gerr) {
			outcome = string(gerr.Kind)
		} else {
			outcome = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Warn("gateway request failed",
			zap.String("gateway", gatewayName),
			zap.String("operation", string(op)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	} else {
		span.SetAttributes(attribute.String("gateway.status", resp.Status))
	}
	metrics.ObserveGatewayRequest(gatewayName, string(op), outcome, elapsed)

	return resp, err
}

func (t *HTTPTransport) post(ctx context.Context, ep endpoint, envelope requestEnvelope) (*ports.TransportResponse, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("error marshalling json: %w", err)
	}

	url := ep.baseURL + "/v1/" + envelope.Operation
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := ep.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		msg := string(raw)
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
			msg = eb.Message
		}
		return nil, &domain.GatewayError{
			Kind:       domain.GatewayErrorProcessing,
			Message:    msg,
			StatusCode: httpResp.StatusCode,
		}
	}

	var out ports.TransportResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, &domain.GatewayError{
			Kind:       domain.GatewayErrorProcessing,
			Message:    "malformed gateway response",
			StatusCode: httpResp.StatusCode,
			Err:        err,
		}
	}
	return &out, nil
}

func classifyTransportError(err error) *domain.GatewayError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.GatewayError{Kind: domain.GatewayErrorTimeout, Message: "gateway timed out", Err: err}
	}
	return &domain.GatewayError{Kind: domain.GatewayErrorConnection, Message: "gateway unreachable", Err: err}
}
