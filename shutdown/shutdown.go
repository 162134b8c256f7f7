// Package shutdown turns an external interrupt into a single cancellation.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/pankaj/minechat/logger"
)

// Coordinator owns the cancellation token shared by the listener loop.
// Its only effect is cancelling the context; it never touches the socket
// or the history file.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	once   sync.Once
	mu     sync.Mutex
	reason string

	sigCh    chan os.Signal
	stopOnce sync.Once
	watchWG  sync.WaitGroup
}

// New returns a Coordinator whose context is derived from parent.
func New(parent context.Context) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context is cancelled once shutdown has been requested.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Shutdown requests cancellation. Only the first call records its reason;
// later calls are no-ops.
func (c *Coordinator) Shutdown(reason string) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		logger.Debug("Shutdown requested", "reason", reason)
		c.cancel()
	})
}

// Reason reports why shutdown happened, or "" if it has not.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Watch calls Shutdown when one of sigs arrives. It must be called at most
// once; Stop releases the signal registration.
func (c *Coordinator) Watch(sigs ...os.Signal) {
	c.sigCh = make(chan os.Signal, 1)
	signal.Notify(c.sigCh, sigs...)

	c.watchWG.Add(1)
	go func() {
		defer c.watchWG.Done()
		select {
		case sig, ok := <-c.sigCh:
			if ok {
				c.Shutdown(sig.String())
			}
		case <-c.ctx.Done():
		}
	}()
}

// Stop unregisters signal handling and waits for the watcher to exit.
// It does not cancel the context by itself.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		if c.sigCh != nil {
			signal.Stop(c.sigCh)
			close(c.sigCh)
		}
		c.watchWG.Wait()
	})
}
