package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/DanielPopoola/charge-connector/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type ExecutionStatus int

const (
	ExecutionCompleted ExecutionStatus = iota + 1
	ExecutionInProgress
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionCompleted:
		return "completed"
	case ExecutionInProgress:
		return "in_progress"
	default:
		return "unknown"
	}
}

// Task is one gateway call plus whatever it records afterwards. It receives a
// context that is never cancelled by the submitting caller.
type Task func(ctx context.Context) *domain.GatewayResponse

// Prepare runs under the in-flight guard before the task is scheduled,
// typically persisting the operation's ready status. If it fails, the guard
// is released and the task never runs.
type Prepare func(ctx context.Context) error

// Executor runs gateway tasks on a bounded pool. Callers wait up to the
// configured budget; past that they get ExecutionInProgress while the task
// keeps running.
type Executor struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	guard   ports.InFlightGuard
	logger  *zap.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
}

func NewExecutor(poolSize int64, timeout time.Duration, guard ports.InFlightGuard, logger *zap.Logger) *Executor {
	return &Executor{
		sem:     semaphore.NewWeighted(poolSize),
		timeout: timeout,
		guard:   guard,
		logger:  logger,
	}
}

// Execute takes the in-flight guard for key, runs prepare and then task. A
// second call for a key whose task has not finished is rejected with an
// ALREADY_IN_PROGRESS error before prepare runs, so a rejected call never
// changes the charge.
func (e *Executor) Execute(ctx context.Context, key string, prepare Prepare, task Task) (ExecutionStatus, *domain.GatewayResponse, error) {
	if !e.track() {
		metrics.RecordExecution("stopped")
		return 0, nil, domain.NewExecutorStoppedError(key)
	}

	acquired, err := e.guard.Acquire(ctx, key)
	if err != nil {
		e.wg.Done()
		metrics.RecordExecution("guard_error")
		e.logger.Error("in-flight guard unavailable",
			zap.String("charge_id", key),
			zap.Error(err))
		return 0, nil, domain.NewGuardUnavailableError(key, err)
	}
	if !acquired {
		e.wg.Done()
		metrics.RecordExecution("rejected")
		return 0, nil, domain.NewAlreadyInProgressError(key)
	}

	if prepare != nil {
		if err := prepare(ctx); err != nil {
			e.guard.Release(context.WithoutCancel(ctx), key)
			e.wg.Done()
			return 0, nil, err
		}
	}

	taskCtx := context.WithoutCancel(ctx)
	done := make(chan *domain.GatewayResponse, 1)

	go func() {
		defer e.wg.Done()
		resp := e.run(taskCtx, key, task)
		e.guard.Release(taskCtx, key)
		done <- resp
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case resp := <-done:
		metrics.RecordExecution(ExecutionCompleted.String())
		return ExecutionCompleted, resp, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	metrics.RecordExecution(ExecutionInProgress.String())
	e.logger.Info("gateway task still running, caller detached",
		zap.String("charge_id", key),
		zap.Duration("wait_budget", e.timeout))
	return ExecutionInProgress, nil, nil
}

func (e *Executor) run(ctx context.Context, key string, task Task) (resp *domain.GatewayResponse) {
	// taskCtx is never cancelled, so Acquire only returns once a slot frees up.
	_ = e.sem.Acquire(ctx, 1)
	defer e.sem.Release(1)

	metrics.ExecutionStarted()
	defer metrics.ExecutionFinished()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("gateway task panicked",
				zap.String("charge_id", key),
				zap.Any("panic", r))
			resp = domain.ErrorResponse(&domain.GatewayError{
				Kind:    domain.GatewayErrorProcessing,
				Message: fmt.Sprintf("task panicked: %v", r),
			})
		}
	}()

	return task(ctx)
}

func (e *Executor) track() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopping {
		return false
	}
	e.wg.Add(1)
	return true
}

// Shutdown stops accepting work and waits for running tasks to finish.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	e.logger.Info("waiting for in-flight gateway tasks")

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("all gateway tasks completed")
		return nil
	case <-ctx.Done():
		e.logger.Warn("shutdown timed out with gateway tasks still running")
		return ctx.Err()
	}
}

// MemoryGuard is a process-local InFlightGuard.
type MemoryGuard struct {
	keys sync.Map
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	_, loaded := g.keys.LoadOrStore(key, struct{}{})
	return !loaded, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) {
	g.keys.Delete(key)
}
