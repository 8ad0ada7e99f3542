package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/climatenet-bot/internal/climate"
	"github.com/i474232898/climatenet-bot/internal/conversation"
	"github.com/i474232898/climatenet-bot/internal/tracking"
)

// ErrInvalidInput marks free text, media or unknown commands.
var ErrInvalidInput = errors.New("invalid input")

// Action describes what handling an event did.
type Action struct {
	Name string
	From conversation.Phase
	To   conversation.Phase
}

// Handler handles one routed event.
type Handler interface {
	Handle(ctx context.Context, ev Event) (Action, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) (Action, error)

func (f HandlerFunc) Handle(ctx context.Context, ev Event) (Action, error) {
	return f(ctx, ev)
}

// Middleware wraps a Handler.
type Middleware func(next Handler) Handler

// Chain applies middlewares so that the first one is outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover turns a panic in a handler into an error.
func Recover(log *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, ev Event) (act Action, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("bot: handler panic",
						zap.String("event_id", ev.ID),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()))
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next.Handle(ctx, ev)
		})
	}
}

// userFacing reports whether err was already explained to the user.
func userFacing(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, climate.ErrUnknownDevice) ||
		errors.Is(err, climate.ErrNoData) ||
		errors.Is(err, climate.ErrUpstreamUnavailable)
}

// Logging logs every transition with its event and resulting action.
func Logging(log *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, ev Event) (Action, error) {
			start := time.Now()
			act, err := next.Handle(ctx, ev)

			fields := []zap.Field{
				zap.String("event_id", ev.ID),
				zap.Int64("chat_id", ev.ChatID),
				zap.String("event", ev.Kind.String()),
				zap.String("action", act.Name),
				zap.Stringer("from", act.From),
				zap.Stringer("to", act.To),
				zap.Duration("took", time.Since(start)),
			}
			switch {
			case err == nil:
				log.Info("bot: event handled", fields...)
			case userFacing(err):
				log.Warn("bot: event rejected", append(fields, zap.Error(err))...)
			default:
				log.Error("bot: event failed", append(fields, zap.Error(err))...)
			}
			return act, err
		})
	}
}

// Analytics records every handled event as a command for usage statistics.
func Analytics(rec tracking.Recorder) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, ev Event) (Action, error) {
			start := time.Now()
			act, err := next.Handle(ctx, ev)

			_ = rec.CommandHandled(ctx, tracking.Command{
				EventID:  ev.ID,
				UserID:   ev.User.ID,
				ChatID:   ev.ChatID,
				Name:     ev.Kind.String(),
				Text:     ev.Arg,
				Action:   act.Name,
				Failed:   err != nil,
				Duration: time.Since(start),
				At:       start.UTC(),
			})
			return act, err
		})
	}
}
