package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned by Dispatch once Wait has been called.
var ErrDispatcherClosed = errors.New("bot: dispatcher closed")

// Dispatcher routes inbound messages and runs their handlers off the
// receive loop. At most maxConcurrent handlers run at once; a slow upstream
// call only delays the chat that made it.
type Dispatcher struct {
	router  *Router
	handler Handler
	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	log     *zap.Logger
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. maxConcurrent <= 0 means 1.
func NewDispatcher(router *Router, handler Handler, maxConcurrent int, log *zap.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		router:  router,
		handler: handler,
		sem:     make(chan struct{}, maxConcurrent),
		log:     log,
		now:     time.Now,
	}
}

// Dispatch routes in and schedules its handler. It blocks only while all
// handler slots are busy, and returns ctx.Err() if ctx ends first.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ev := d.router.Route(in)
	ev.ID = uuid.NewString()
	ev.ReceivedAt = d.now()

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		d.log.Warn("bot: dropping event on shutdown",
			zap.String("event_id", ev.ID),
			zap.Int64("chat_id", ev.ChatID))
		return ctx.Err()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.sem
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		// errors are logged by middleware
		_, _ = d.handler.Handle(ctx, ev)
	}()
	return nil
}

// Wait stops accepting events and blocks until all scheduled handlers have
// returned.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
