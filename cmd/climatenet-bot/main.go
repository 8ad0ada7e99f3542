package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/climatenet-bot/internal/api/http"
	"github.com/i474232898/climatenet-bot/internal/bot"
	"github.com/i474232898/climatenet-bot/internal/bot/telegram"
	"github.com/i474232898/climatenet-bot/internal/climate"
	"github.com/i474232898/climatenet-bot/internal/climate/providers"
	"github.com/i474232898/climatenet-bot/internal/config"
	"github.com/i474232898/climatenet-bot/internal/logger"
	"github.com/i474232898/climatenet-bot/internal/scheduler"
	"github.com/i474232898/climatenet-bot/internal/store"
	"github.com/i474232898/climatenet-bot/internal/supervisor"
	"github.com/i474232898/climatenet-bot/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Production: cfg.Production(), FilePath: cfg.LogFile})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound device service calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	source := providers.NewClimateNetProvider(httpClient, cfg.ClimateNetBaseURL)

	dir := climate.NewDirectory(source, log.Named("directory"))
	loadCtx, cancel := context.WithTimeout(ctx, 2*cfg.HTTPTimeout)
	if err := dir.Load(loadCtx); err != nil {
		log.Warn("starting with an empty device directory", zap.Error(err))
	}
	cancel()

	sched := scheduler.New(dir, cfg.DirectoryRefresh, 2*cfg.HTTPTimeout, log.Named("scheduler"))
	if err := sched.Start(); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	recorder, stats, closeDB := openTracking(ctx, cfg, log.Named("tracking"))
	defer closeDB()
	async := tracking.NewAsync(recorder, 5*time.Second, log.Named("tracking"))
	defer async.Wait()

	sessions := store.NewMemoryStore(cfg.SessionTTL, cfg.SessionCleanup)
	formatter := climate.NewFormatter(true, cfg.ImpairedDevices)

	listener := telegram.NewListener(cfg.TelegramToken, cfg.PollTimeout, log.Named("telegram"))
	machine := bot.NewMachine(dir, source, sessions, telegram.NewMessenger(listener), formatter, async,
		bot.Links{Website: cfg.WebsiteURL, MapImage: cfg.MapImageURL},
		log.Named("bot"))

	handler := bot.Chain(machine,
		bot.Recover(log.Named("bot")),
		bot.Logging(log.Named("bot")),
		bot.Analytics(async),
	)
	dispatcher := bot.NewDispatcher(bot.NewRouter(dir), handler, cfg.MaxConcurrent, log.Named("bot"))
	defer dispatcher.Wait()

	sup := supervisor.New("telegram-listener", cfg.ListenerBackoff, log.Named("supervisor"))
	go sup.Run(ctx, func(ctx context.Context) error {
		return listener.Run(ctx, dispatcher)
	})

	app := fiber.New(fiber.Config{
		AppName:               "climatenet-bot",
		DisableStartupMessage: true,
		UnescapePath:          true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          2*cfg.HTTPTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Directory: dir,
		Source:    source,
		Formatter: climate.NewFormatter(false, cfg.ImpairedDevices),
		Sessions:  sessions,
		Stats:     stats,
		Restarts:  sup.Restarts,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
		}
	}()

	log.Info("climatenet-bot started",
		zap.String("source", source.Name()),
		zap.Int("devices", dir.Len()),
		zap.String("port", cfg.Port))

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
}

// openTracking connects to Postgres when configured. Without a database the
// bot still works and nothing is recorded.
func openTracking(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (tracking.Recorder, httpapi.CommandStats, func()) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set; usage tracking disabled")
		return tracking.Noop{}, nil, func() {}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to create database pool; usage tracking disabled", zap.Error(err))
		return tracking.Noop{}, nil, func() {}
	}

	var geocoder tracking.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geocoder = tracking.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}

	pg := tracking.NewPostgres(pool, geocoder, log)
	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pg.EnsureSchema(schemaCtx); err != nil {
		log.Error("failed to prepare tracking schema; usage tracking disabled", zap.Error(err))
		pool.Close()
		return tracking.Noop{}, nil, func() {}
	}

	log.Info("usage tracking enabled")
	return pg, pg, pool.Close
}
