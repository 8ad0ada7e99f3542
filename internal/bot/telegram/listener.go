package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/i474232898/climatenet-bot/internal/bot"
	"github.com/i474232898/climatenet-bot/internal/tracking"
)

var (
	ErrNotConnected  = errors.New("telegram: not connected")
	ErrUpdatesClosed = errors.New("telegram: update channel closed")
)

// Inbox accepts inbound messages, typically a *bot.Dispatcher.
type Inbox interface {
	Dispatch(ctx context.Context, in bot.Inbound) error
}

// Listener long-polls the Bot API and hands every message to an Inbox. It is
// meant to run under a supervisor: Run returns on any failure and can be
// called again, resuming after the last update it saw.
type Listener struct {
	token       string
	pollTimeout int
	client      *http.Client
	log         *zap.Logger

	api    atomic.Pointer[tgbotapi.BotAPI]
	offset atomic.Int64
}

// NewListener creates a Listener. pollTimeout is in seconds.
func NewListener(token string, pollTimeout int, log *zap.Logger) *Listener {
	_ = tgbotapi.SetLogger(zap.NewStdLog(log.Named("tgbotapi")))
	return &Listener{
		token:       token,
		pollTimeout: pollTimeout,
		// long polls must outlive the server-side timeout
		client: &http.Client{Timeout: time.Duration(pollTimeout+15) * time.Second},
		log:    log,
	}
}

// Send delivers c through the live connection.
func (l *Listener) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	api := l.api.Load()
	if api == nil {
		return tgbotapi.Message{}, ErrNotConnected
	}
	return api.Send(c)
}

// Run connects and receives updates until ctx is done or polling stops.
func (l *Listener) Run(ctx context.Context, inbox Inbox) error {
	api, err := tgbotapi.NewBotAPIWithClient(l.token, tgbotapi.APIEndpoint, l.client)
	if err != nil {
		return err
	}
	l.api.Store(api)
	l.log.Info("telegram: connected", zap.String("bot", api.Self.UserName))

	u := tgbotapi.NewUpdate(int(l.offset.Load()))
	u.Timeout = l.pollTimeout
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return ErrUpdatesClosed
			}
			l.offset.Store(int64(upd.UpdateID) + 1)

			in, ok := toInbound(upd)
			if !ok {
				continue
			}
			if err := inbox.Dispatch(ctx, in); err != nil {
				return err
			}
		}
	}
}

// toInbound converts a message update. Other update kinds are skipped.
func toInbound(upd tgbotapi.Update) (bot.Inbound, bool) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return bot.Inbound{}, false
	}

	in := bot.Inbound{
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	}
	if u := msg.From; u != nil {
		in.User = tracking.User{
			ID:           u.ID,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Username:     u.UserName,
			LanguageCode: u.LanguageCode,
			IsBot:        u.IsBot,
		}
	}

	switch {
	case msg.Location != nil:
		in.Location = &tracking.Coordinates{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}
	case strings.TrimSpace(msg.Text) == "":
		// photos, stickers, voice notes, contacts and the like
		in.Unsupported = true
	}
	return in, true
}

var (
	_ Inbox         = (*bot.Dispatcher)(nil)
	_ bot.Messenger = (*Messenger)(nil)
)
