// Package worker runs the connector's recurring background jobs.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// loop runs tick at a fixed rate until stopped. A tick that overruns the
// interval delays the next one; ticks never overlap.
type loop struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *loop) start(ctx context.Context, tick func(context.Context)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		l.logger.Info("worker started", zap.String("worker", l.name), zap.Duration("interval", l.interval))

		for {
			select {
			case <-ctx.Done():
				l.logger.Info("worker stopping", zap.String("worker", l.name))
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
}

// stop cancels the loop and waits for an in-progress tick to return.
func (l *loop) stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
