package tracking

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS bot_users (
    id            BIGINT PRIMARY KEY,
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    username      TEXT NOT NULL DEFAULT '',
    language_code TEXT NOT NULL DEFAULT '',
    is_bot        BOOLEAN NOT NULL DEFAULT FALSE,
    first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS bot_selected_devices (
    user_id     BIGINT PRIMARY KEY,
    device_name TEXT NOT NULL,
    device_id   TEXT NOT NULL,
    selected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS bot_user_locations (
    id         BIGSERIAL PRIMARY KEY,
    user_id    BIGINT NOT NULL,
    location   TEXT NOT NULL,
    address    TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS bot_commands (
    event_id    TEXT PRIMARY KEY,
    user_id     BIGINT NOT NULL,
    chat_id     BIGINT NOT NULL,
    command     TEXT NOT NULL,
    text        TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL DEFAULT '',
    failed      BOOLEAN NOT NULL DEFAULT FALSE,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    handled_at  TIMESTAMPTZ NOT NULL
);`

// DB is the subset of *pgxpool.Pool the recorder needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres stores tracking data with pgx.
type Postgres struct {
	pool     DB
	geocoder Geocoder
	log      *zap.Logger
}

// NewPostgres wraps an open pool. geocoder may be nil.
func NewPostgres(pool DB, geocoder Geocoder, log *zap.Logger) *Postgres {
	return &Postgres{pool: pool, geocoder: geocoder, log: log}
}

// EnsureSchema creates the tracking tables if they do not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure tracking schema: %w", err)
	}
	return nil
}

// UserSeen inserts the user or refreshes their profile and last-seen time.
func (p *Postgres) UserSeen(ctx context.Context, u User) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO bot_users (id, first_name, last_name, username, language_code, is_bot)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE
SET first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    username = EXCLUDED.username,
    language_code = EXCLUDED.language_code,
    last_seen_at = NOW()`,
		u.ID, u.FirstName, u.LastName, u.Username, u.LanguageCode, u.IsBot)
	return err
}

// DeviceSelected keeps the latest device chosen by a user.
func (p *Postgres) DeviceSelected(ctx context.Context, userID int64, name, id string) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO bot_selected_devices (user_id, device_name, device_id)
VALUES ($1,$2,$3)
ON CONFLICT (user_id) DO UPDATE
SET device_name = EXCLUDED.device_name,
    device_id = EXCLUDED.device_id,
    selected_at = NOW()`,
		userID, name, id)
	return err
}

// LocationShared appends a "lon,lat" location, resolving an address when a
// geocoder is configured.
func (p *Postgres) LocationShared(ctx context.Context, userID int64, at Coordinates) error {
	var address *string
	if p.geocoder != nil {
		addr, err := p.geocoder.Reverse(ctx, at)
		if err != nil {
			p.log.Debug("tracking: reverse geocoding failed", zap.Int64("user_id", userID), zap.Error(err))
		} else {
			address = &addr
		}
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO bot_user_locations (user_id, location, address) VALUES ($1,$2,$3)`,
		userID, formatLocation(at), address)
	return err
}

// formatLocation renders coordinates as "lon,lat".
func formatLocation(at Coordinates) string {
	return strconv.FormatFloat(at.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(at.Latitude, 'f', -1, 64)
}

// CommandHandled records one handled event.
func (p *Postgres) CommandHandled(ctx context.Context, c Command) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO bot_commands (event_id, user_id, chat_id, command, text, action, failed, duration_ms, handled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (event_id) DO NOTHING`,
		c.EventID, c.UserID, c.ChatID, c.Name, c.Text, c.Action, c.Failed, c.Duration.Milliseconds(), c.At)
	return err
}

// CommandCounts returns how many times each command was handled.
func (p *Postgres) CommandCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT command, COUNT(*) FROM bot_commands GROUP BY command`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		out[name] = count
	}
	return out, rows.Err()
}
