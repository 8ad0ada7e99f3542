package tracking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Async wraps a Recorder so every call returns immediately. Writes run in the
// background with their own timeout; failures are logged and dropped.
type Async struct {
	next    Recorder
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync creates an Async recorder.
func NewAsync(next Recorder, timeout time.Duration, log *zap.Logger) *Async {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, log: log, timeout: timeout}
}

func (a *Async) run(op string, fn func(ctx context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			a.log.Warn("tracking: write failed", zap.String("op", op), zap.Error(err))
		}
	}()
}

func (a *Async) UserSeen(_ context.Context, u User) error {
	a.run("user_seen", func(ctx context.Context) error { return a.next.UserSeen(ctx, u) })
	return nil
}

func (a *Async) DeviceSelected(_ context.Context, userID int64, name, id string) error {
	a.run("device_selected", func(ctx context.Context) error { return a.next.DeviceSelected(ctx, userID, name, id) })
	return nil
}

func (a *Async) LocationShared(_ context.Context, userID int64, at Coordinates) error {
	a.run("location_shared", func(ctx context.Context) error { return a.next.LocationShared(ctx, userID, at) })
	return nil
}

func (a *Async) CommandHandled(_ context.Context, c Command) error {
	a.run("command_handled", func(ctx context.Context) error { return a.next.CommandHandled(ctx, c) })
	return nil
}

// Wait blocks until in-flight writes finish. Used on shutdown and in tests.
func (a *Async) Wait() {
	a.wg.Wait()
}
