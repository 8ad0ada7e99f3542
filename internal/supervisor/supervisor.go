// Package supervisor keeps a long-running task alive.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task runs until ctx is done or it fails.
type Task func(ctx context.Context) error

// Supervisor restarts a task after a fixed delay whenever it returns or
// panics, until its context is canceled.
type Supervisor struct {
	name     string
	delay    time.Duration
	log      *zap.Logger
	restarts atomic.Int64
}

// New creates a Supervisor.
func New(name string, delay time.Duration, log *zap.Logger) *Supervisor {
	return &Supervisor{name: name, delay: delay, log: log.With(zap.String("task", name))}
}

// Restarts is the number of times the task has been restarted.
func (s *Supervisor) Restarts() int64 {
	return s.restarts.Load()
}

// Run blocks until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context, task Task) {
	for {
		err := s.runOnce(ctx, task)
		if ctx.Err() != nil {
			s.log.Info("supervisor: stopped")
			return
		}
		if err == nil {
			err = errors.New("task exited")
		}
		s.log.Error("supervisor: task failed; restarting",
			zap.Error(err),
			zap.Duration("delay", s.delay),
			zap.Int64("restarts", s.restarts.Load()))

		select {
		case <-ctx.Done():
			s.log.Info("supervisor: stopped")
			return
		case <-time.After(s.delay):
		}
		s.restarts.Add(1)
	}
}

func (s *Supervisor) runOnce(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("supervisor: task panic", zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}
