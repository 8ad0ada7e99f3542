package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/climatenet-bot/internal/climate/providers"
)

type AppConfig struct {
	AppEnv string `validate:"oneof=development production test"`

	TelegramToken string `validate:"required"`
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int `validate:"gte=0,lte=600"`

	ClimateNetBaseURL string        `validate:"required,url"`
	HTTPTimeout       time.Duration `validate:"gt=0"`

	// DirectoryRefresh controls how often the device list is reloaded (0 = load once).
	DirectoryRefresh time.Duration `validate:"gte=0"`

	// Sessions idle for SessionTTL are forgotten (0 = never).
	SessionTTL      time.Duration `validate:"gte=0"`
	SessionCleanup  time.Duration `validate:"gte=0"`
	ListenerBackoff time.Duration `validate:"gt=0"`
	MaxConcurrent   int           `validate:"gte=1"`

	// Devices with known hardware problems; their reports carry a notice.
	ImpairedDevices []string

	WebsiteURL  string `validate:"required,url"`
	MapImageURL string `validate:"required,url"`

	// Optional integrations. Empty disables them.
	DatabaseURL    string
	GeocoderAPIKey string
	LogFile        string

	Port string `validate:"required,numeric"`
}

const defaultImpaired = "Berd,Ashotsk,Gavar,Artsvaberd,Chambarak,Areni,Amasia"

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		AppEnv:            getenvDefault("APP_ENV", "development"),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		ClimateNetBaseURL: strings.TrimRight(getenvDefault("CLIMATENET_BASE_URL", providers.DefaultBaseURL), "/"),
		ImpairedDevices:   splitList(getenvDefault("IMPAIRED_DEVICES", defaultImpaired)),
		WebsiteURL:        getenvDefault("WEBSITE_URL", "https://climatenet.am/en/"),
		MapImageURL:       getenvDefault("MAP_IMAGE_URL", "https://images-in-website.s3.us-east-1.amazonaws.com/Bot/map.png"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		GeocoderAPIKey:    os.Getenv("GEOCODER_API_KEY"),
		LogFile:           os.Getenv("LOG_FILE"),
		Port:              getenvDefault("PORT", "8080"),
	}

	var err error
	if cfg.PollTimeout, err = getenvInt("POLL_TIMEOUT", 60); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent, err = getenvInt("MAX_CONCURRENT_EVENTS", 64); err != nil {
		return nil, err
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "15s", &cfg.HTTPTimeout},
		{"DIRECTORY_REFRESH_INTERVAL", "60m", &cfg.DirectoryRefresh},
		{"SESSION_TTL", "24h", &cfg.SessionTTL},
		{"SESSION_CLEANUP_INTERVAL", "10m", &cfg.SessionCleanup},
		{"LISTENER_RESTART_DELAY", "15s", &cfg.ListenerBackoff},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Production reports whether the app runs with production logging.
func (c *AppConfig) Production() bool {
	return c.AppEnv == "production"
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
