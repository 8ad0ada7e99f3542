// Package tracking persists who uses the bot and what they pick.
// Callers never wait on it and never see its errors.
package tracking

import (
	"context"
	"time"
)

// User is the chat user as reported by the transport.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	IsBot        bool
}

// Coordinates is a shared location.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Command is one handled inbound event, kept for usage analytics.
type Command struct {
	EventID  string
	UserID   int64
	ChatID   int64
	Name     string
	Text     string
	Action   string
	Failed   bool
	Duration time.Duration
	At       time.Time
}

// Recorder receives side-effect writes from the conversation layer.
type Recorder interface {
	UserSeen(ctx context.Context, u User) error
	DeviceSelected(ctx context.Context, userID int64, deviceName, deviceID string) error
	LocationShared(ctx context.Context, userID int64, at Coordinates) error
	CommandHandled(ctx context.Context, c Command) error
}

// Noop discards everything. Used when no database is configured.
type Noop struct{}

func (Noop) UserSeen(context.Context, User) error                        { return nil }
func (Noop) DeviceSelected(context.Context, int64, string, string) error { return nil }
func (Noop) LocationShared(context.Context, int64, Coordinates) error    { return nil }
func (Noop) CommandHandled(context.Context, Command) error               { return nil }
