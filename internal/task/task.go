// Package task manages the lifecycle of long-running goroutines: the protocol
// server's accept and connection loops and the simulation tick loop. It
// provides a structured way to start, stop, and wait for goroutines, ensuring
// proper cancellation and cleanup through a shared context.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-plantbus/logger"
)

// Func represents a function that performs one iteration of a task within a
// goroutine managed by the Manager. It should return true to keep running, or
// false to stop the goroutine.
type Func func() bool

// Manager manages the lifecycle of goroutines. When its context is canceled,
// all running goroutines are signaled to stop; Wait blocks until they have
// all terminated.
type Manager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	tickers sync.Map // map[string]*time.Ticker
}

// NewManager creates a Manager with the given context as parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the manager's context, canceled when Stop is called.
func (mgr *Manager) Context() context.Context {
	return mgr.ctx
}

// Start runs taskFunc in a new goroutine until it returns false or the
// manager is stopped.
func (mgr *Manager) Start(name string, taskFunc Func) {
	mgr.logger.Debug("start task", "name", name)

	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			default:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	}()
}

// StartInterval executes taskFunc at the specified interval until it returns
// false or the manager is stopped. If runNow is true, taskFunc runs once
// before the first tick. The returned ticker can be used to adjust the
// cadence.
func (mgr *Manager) StartInterval(name string, taskFunc Func, interval time.Duration, runNow bool) (*time.Ticker, error) {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval: %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return nil, fmt.Errorf("interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	if runNow && !mgr.callWithRecover(name, taskFunc) {
		cleanup()
		return ticker, nil
	}

	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()
		defer cleanup()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	}()

	return ticker, nil
}

// Stop signals all running goroutines to terminate.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(key, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}

		return true
	})

	mgr.cancel()
}

// Wait blocks until all managed goroutines have terminated.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// callWithRecover calls a task function with panic protection, so one
// misbehaving task cannot take down the process.
func (mgr *Manager) callWithRecover(name string, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			cont = true
		}
	}()

	return fn()
}
