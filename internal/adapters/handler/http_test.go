package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockNotificationService struct {
	mu       sync.Mutex
	gateway  string
	payloads [][]byte
}

func (m *mockNotificationService) Accept(_ context.Context, gatewayName string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateway = gatewayName
	m.payloads = append(m.payloads, payload)
}

func newTestMux(svc NotificationService, limit int64) *http.ServeMux {
	mux := http.NewServeMux()
	NewNotificationHandler(svc, limit, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestHandleNotification_Success(t *testing.T) {
	svc := &mockNotificationService{}
	mux := newTestMux(svc, 1024)

	body := `{"notifications":[{"transaction_id":"tx-1","status":"CAPTURED"}]}`
	r := httptest.NewRequest(http.MethodPost, "/v1/api/notifications/sandbox", strings.NewReader(body))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sandbox", svc.gateway)
	require.Len(t, svc.payloads, 1)
	assert.Equal(t, body, string(svc.payloads[0]))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestHandleNotification_UnknownGatewayStillAcknowledged(t *testing.T) {
	svc := &mockNotificationService{}
	mux := newTestMux(svc, 1024)

	r := httptest.NewRequest(http.MethodPost, "/v1/api/notifications/nope", strings.NewReader("garbage"))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nope", svc.gateway)
}

func TestHandleNotification_PayloadTooLarge(t *testing.T) {
	svc := &mockNotificationService{}
	mux := newTestMux(svc, 16)

	r := httptest.NewRequest(http.MethodPost, "/v1/api/notifications/worldpay", bytes.NewReader(make([]byte, 64)))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, svc.payloads)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", resp.Error.Code)
}

func TestHandleNotification_WrongMethod(t *testing.T) {
	mux := newTestMux(&mockNotificationService{}, 1024)

	r := httptest.NewRequest(http.MethodGet, "/v1/api/notifications/sandbox", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsAndHealthRoutes(t *testing.T) {
	mux := newTestMux(&mockNotificationService{}, 1024)

	for _, path := range []string{"/metrics", "/healthz"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
