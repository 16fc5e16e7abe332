package service

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"go.uber.org/zap"
)

// MockChargeRepository is an in-memory ChargeRepository with optimistic versioning.
type MockChargeRepository struct {
	mu      sync.Mutex
	charges map[string]*domain.Charge
	events  []domain.ChargeEvent
	calls   map[string]int

	MergeFn                     func(ctx context.Context, charge *domain.Charge, event domain.ChargeEvent) (*domain.Charge, error)
	FindAllEligibleForCaptureFn func(ctx context.Context, statuses []domain.ChargeStatus, pageSize, pageNumber int) ([]*domain.Charge, error)
	CountEventsFn               func(ctx context.Context, externalID string, status domain.ChargeStatus) (int, error)
}

func NewMockChargeRepository() *MockChargeRepository {
	return &MockChargeRepository{
		charges: make(map[string]*domain.Charge),
		calls:   make(map[string]int),
	}
}

func (m *MockChargeRepository) record(name string) {
	m.calls[name]++
}

func (m *MockChargeRepository) GetCalls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// Put stores charge as-is, bypassing versioning.
func (m *MockChargeRepository) Put(charge *domain.Charge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[charge.ExternalID] = charge.Clone()
}

// Get returns the stored copy of a charge.
func (m *MockChargeRepository) Get(externalID string) *domain.Charge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.charges[externalID]; ok {
		return c.Clone()
	}
	return nil
}

func (m *MockChargeRepository) Events() []domain.ChargeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

func (m *MockChargeRepository) Create(_ context.Context, charge *domain.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Create")
	m.charges[charge.ExternalID] = charge.Clone()
	return nil
}

func (m *MockChargeRepository) FindByExternalID(_ context.Context, externalID string) (*domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindByExternalID")
	if c, ok := m.charges[externalID]; ok {
		return c.Clone(), nil
	}
	return nil, domain.NewChargeNotFoundError(externalID)
}

func (m *MockChargeRepository) FindByProviderAndTransactionID(_ context.Context, gatewayName, transactionID string) (*domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindByProviderAndTransactionID")
	for _, c := range m.charges {
		if c.GatewayAccount.GatewayName == gatewayName && c.GatewayTransactionID == transactionID {
			return c.Clone(), nil
		}
	}
	return nil, domain.NewChargeNotFoundError(transactionID)
}

func (m *MockChargeRepository) FindAllEligibleForCapture(ctx context.Context, statuses []domain.ChargeStatus, pageSize, pageNumber int) ([]*domain.Charge, error) {
	if m.FindAllEligibleForCaptureFn != nil {
		return m.FindAllEligibleForCaptureFn(ctx, statuses, pageSize, pageNumber)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindAllEligibleForCapture")

	var matched []*domain.Charge
	for _, c := range m.charges {
		if slices.Contains(statuses, c.Status) {
			matched = append(matched, c.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})

	start := pageSize * pageNumber
	if start >= len(matched) {
		return nil, nil
	}
	return matched[start:min(start+pageSize, len(matched))], nil
}

func (m *MockChargeRepository) FindBeforeDateWithStatusIn(_ context.Context, cutoff time.Time, statuses []domain.ChargeStatus, limit int) ([]*domain.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("FindBeforeDateWithStatusIn")

	var matched []*domain.Charge
	for _, c := range m.charges {
		if c.CreatedAt.Before(cutoff) && slices.Contains(statuses, c.Status) {
			matched = append(matched, c.Clone())
		}
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MockChargeRepository) Merge(ctx context.Context, charge *domain.Charge, event domain.ChargeEvent) (*domain.Charge, error) {
	if m.MergeFn != nil {
		return m.MergeFn(ctx, charge, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Merge")

	stored, ok := m.charges[charge.ExternalID]
	if !ok {
		return nil, domain.NewChargeNotFoundError(charge.ExternalID)
	}
	if stored.Version != charge.Version {
		return nil, ports.ErrVersionConflict
	}

	merged := charge.Clone()
	merged.Version++
	m.charges[charge.ExternalID] = merged
	m.events = append(m.events, event)
	return merged.Clone(), nil
}

func (m *MockChargeRepository) CountEvents(ctx context.Context, externalID string, status domain.ChargeStatus) (int, error) {
	if m.CountEventsFn != nil {
		return m.CountEventsFn(ctx, externalID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.ChargeExternalID == externalID && e.Status == status {
			n++
		}
	}
	return n, nil
}

// MockRefundRepository is an in-memory RefundRepository. Create bumps the
// owning charge's version in charges.
type MockRefundRepository struct {
	mu      sync.Mutex
	charges *MockChargeRepository
	refunds map[string]*domain.Refund

	CreateFn func(ctx context.Context, refund *domain.Refund, chargeVersion int64) error
}

func NewMockRefundRepository(charges *MockChargeRepository) *MockRefundRepository {
	return &MockRefundRepository{
		charges: charges,
		refunds: make(map[string]*domain.Refund),
	}
}

func (m *MockRefundRepository) Put(refund *domain.Refund) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[refund.ExternalID] = refund.Clone()
}

func (m *MockRefundRepository) Get(externalID string) *domain.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.refunds[externalID]; ok {
		return r.Clone()
	}
	return nil
}

func (m *MockRefundRepository) Create(ctx context.Context, refund *domain.Refund, chargeVersion int64) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, refund, chargeVersion)
	}

	m.charges.mu.Lock()
	charge, ok := m.charges.charges[refund.ChargeExternalID]
	if !ok {
		m.charges.mu.Unlock()
		return domain.NewChargeNotFoundError(refund.ChargeExternalID)
	}
	if charge.Version != chargeVersion {
		m.charges.mu.Unlock()
		return ports.ErrVersionConflict
	}
	charge.Version++
	m.charges.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refunds[refund.ExternalID] = refund.Clone()
	return nil
}

func (m *MockRefundRepository) FindByChargeExternalID(_ context.Context, chargeExternalID string) ([]*domain.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Refund
	for _, r := range m.refunds {
		if r.ChargeExternalID == chargeExternalID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *MockRefundRepository) FindByProviderAndTransactionIDAndReference(_ context.Context, _ string, _ string, reference string) (*domain.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.refunds {
		if r.GatewayTransactionID == reference {
			return r.Clone(), nil
		}
	}
	return nil, domain.NewRefundNotFoundError(reference)
}

func (m *MockRefundRepository) Merge(_ context.Context, refund *domain.Refund) (*domain.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.refunds[refund.ExternalID]
	if !ok {
		return nil, domain.NewRefundNotFoundError(refund.ExternalID)
	}
	if stored.Version != refund.Version {
		return nil, ports.ErrVersionConflict
	}
	merged := refund.Clone()
	merged.Version++
	m.refunds[refund.ExternalID] = merged
	return merged.Clone(), nil
}

// MockProvider is a PaymentProvider whose operations can be scripted.
type MockProvider struct {
	mu    sync.Mutex
	calls map[string]int

	NameValue string
	Mapper    *domain.StatusMapper
	TxID      string
	// Delay is applied to every gateway operation.
	Delay time.Duration
	// Block, when non-nil, holds every gateway operation until it is closed.
	Block chan struct{}

	AuthoriseFn         func(ctx context.Context, req domain.AuthorisationRequest) *domain.GatewayResponse
	Authorise3DSFn      func(ctx context.Context, req domain.Auth3DSRequest) *domain.GatewayResponse
	CaptureFn           func(ctx context.Context, req domain.CaptureRequest) *domain.GatewayResponse
	CancelFn            func(ctx context.Context, req domain.CancelRequest) *domain.GatewayResponse
	RefundFn            func(ctx context.Context, req domain.RefundRequest) *domain.GatewayResponse
	ParseNotificationFn func(payload []byte) ([]domain.Notification, error)
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		NameValue: name,
		Mapper:    domain.NewStatusMapperBuilder().Build(),
		calls:     make(map[string]int),
	}
}

func (m *MockProvider) GetCalls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockProvider) begin(op string) {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	if m.Block != nil {
		<-m.Block
	}
}

func (m *MockProvider) Name() string                       { return m.NameValue }
func (m *MockProvider) StatusMapper() *domain.StatusMapper { return m.Mapper }
func (m *MockProvider) GenerateTransactionID() string      { return m.TxID }

func (m *MockProvider) Authorise(ctx context.Context, _ domain.GatewayAccount, req domain.AuthorisationRequest) *domain.GatewayResponse {
	m.begin("Authorise")
	if m.AuthoriseFn != nil {
		return m.AuthoriseFn(ctx, req)
	}
	return domain.SuccessResponse(domain.ProviderResponse{TransactionID: "gw-tx-1", Status: domain.OperationAuthorised})
}

func (m *MockProvider) Authorise3DS(ctx context.Context, _ domain.GatewayAccount, req domain.Auth3DSRequest) *domain.GatewayResponse {
	m.begin("Authorise3DS")
	if m.Authorise3DSFn != nil {
		return m.Authorise3DSFn(ctx, req)
	}
	return domain.SuccessResponse(domain.ProviderResponse{TransactionID: req.TransactionID, Status: domain.OperationAuthorised})
}

func (m *MockProvider) Capture(ctx context.Context, _ domain.GatewayAccount, req domain.CaptureRequest) *domain.GatewayResponse {
	m.begin("Capture")
	if m.CaptureFn != nil {
		return m.CaptureFn(ctx, req)
	}
	return domain.SuccessResponse(domain.ProviderResponse{TransactionID: req.TransactionID, Status: domain.OperationSubmitted})
}

func (m *MockProvider) Cancel(ctx context.Context, _ domain.GatewayAccount, req domain.CancelRequest) *domain.GatewayResponse {
	m.begin("Cancel")
	if m.CancelFn != nil {
		return m.CancelFn(ctx, req)
	}
	return domain.SuccessResponse(domain.ProviderResponse{TransactionID: req.TransactionID, Status: domain.OperationCancelled})
}

func (m *MockProvider) Refund(ctx context.Context, _ domain.GatewayAccount, req domain.RefundRequest) *domain.GatewayResponse {
	m.begin("Refund")
	if m.RefundFn != nil {
		return m.RefundFn(ctx, req)
	}
	return domain.SuccessResponse(domain.ProviderResponse{
		TransactionID: req.TransactionID,
		Reference:     "ref-" + req.RefundExternalID,
		Status:        domain.OperationSubmitted,
	})
}

func (m *MockProvider) ParseNotification(payload []byte) ([]domain.Notification, error) {
	if m.ParseNotificationFn != nil {
		return m.ParseNotificationFn(payload)
	}
	return nil, nil
}

func (m *MockProvider) ExternalRefundAvailability(charge *domain.Charge, refunds []*domain.Refund) domain.RefundAvailability {
	return domain.NewRefundAvailabilityCalculator(zap.NewNop()).Calculate(charge, refunds)
}

// RecordingPublisher keeps every published status change.
type RecordingPublisher struct {
	mu      sync.Mutex
	changes []domain.StatusChange
}

func (p *RecordingPublisher) Publish(_ context.Context, change domain.StatusChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
}

func (p *RecordingPublisher) Changes() []domain.StatusChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.changes)
}

const testGateway = "sandbox"

func testAccount() domain.GatewayAccount {
	return domain.GatewayAccount{ID: 42, GatewayName: testGateway, Type: domain.AccountTypeTest}
}

// newTestCharge builds a charge in status with a gateway transaction id.
func newTestCharge(id string, status domain.ChargeStatus) *domain.Charge {
	now := time.Now().UTC()
	return &domain.Charge{
		ExternalID:           id,
		Amount:               1000,
		Status:               status,
		GatewayTransactionID: "tx-" + id,
		GatewayAccount:       testAccount(),
		Reference:            "ref",
		Description:          "test charge",
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// StubGuard is a MemoryGuard whose Acquire can be made to fail.
type StubGuard struct {
	MemoryGuard

	mu         sync.Mutex
	acquireErr error
}

func (g *StubGuard) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquireErr = err
}

func (g *StubGuard) Acquire(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	err := g.acquireErr
	g.mu.Unlock()
	if err != nil {
		return false, err
	}
	return g.MemoryGuard.Acquire(ctx, key)
}

type testHarness struct {
	guard     *StubGuard
	repo      *MockChargeRepository
	refunds   *MockRefundRepository
	provider  *MockProvider
	publisher *RecordingPublisher
	charges   *ChargeService
	providers *ProviderRegistry
	executor  *Executor
}

func newTestHarness(wait time.Duration) *testHarness {
	logger := zap.NewNop()
	repo := NewMockChargeRepository()
	provider := NewMockProvider(testGateway)
	publisher := &RecordingPublisher{}
	guard := &StubGuard{}
	return &testHarness{
		guard:     guard,
		repo:      repo,
		refunds:   NewMockRefundRepository(repo),
		provider:  provider,
		publisher: publisher,
		charges:   NewChargeService(repo, publisher, logger),
		providers: NewProviderRegistry(provider),
		executor:  NewExecutor(4, wait, guard, logger),
	}
}
