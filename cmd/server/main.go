// Command server runs the MACLA-IA assistant: the web chat websocket, the
// Twilio WhatsApp and voice webhooks, the REST API and the reminder
// dispatcher.
//
// @title           MACLA-IA Assistant API
// @version         1.0
// @description     Reminders, preferences and conversation memory for the MACLA-IA assistant.
// @BasePath        /api/v1
// @schemes         http https
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/calendar"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/config"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/dispatch"
	httpapi "github.com/claudioaldrian-source/asistente-macla-ia/internal/http"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/http/handlers"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/llm"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/observability"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/realtime"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/repo"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/services"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/sysutil"
	"github.com/claudioaldrian-source/asistente-macla-ia/internal/telephony"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.InitLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "asistente-macla-ia"))
	gin.SetMode(cfg.GinMode)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version, observability.Attributes(cfg)...)
	if err != nil {
		return err
	}

	if err := sysutil.EnsureDirs(filepath.Dir(cfg.DBPath), filepath.Dir(cfg.Store.Path), cfg.TTSDir); err != nil {
		return err
	}
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	store := repo.OpenStore(ctx, snapshotBackend(cfg, db))
	reminders := services.NewReminderService(store)
	users := services.NewUserService(store)

	model := llm.New(cfg.OpenAI)
	if !model.Enabled() {
		log.Warn().Msg("OPENAI_API_KEY not set; replies fall back to canned text")
	}
	conversations := services.NewConversationService(db, model, users, cfg.HistoryWindow)

	var cal *calendar.Client
	if cfg.Google.Enabled() {
		if cal, err = calendar.New(ctx, cfg.Google); err != nil {
			log.Error().Err(err).Msg("google calendar unavailable; events are saved as local reminders")
			cal = nil
		}
	}

	var fallback dispatch.FallbackFunc
	if cfg.Twilio.Enabled() {
		fallback = telephony.NewWhatsAppSender(cfg.Twilio).Fallback
	}
	dir := dispatch.NewDirectory(fallback)
	events := dispatch.NewEventScheduler()

	assistant := &services.AssistantService{
		Classifier:         model,
		Model:              model,
		Events:             events,
		Reminders:          reminders,
		Users:              users,
		Conversations:      conversations,
		LocalReminderDelay: cfg.Dispatch.LocalReminderDelay,
		EventReminderLead:  cfg.Dispatch.EventReminderLead,
		Location:           time.Local,
	}
	if cal != nil {
		assistant.Calendar = cal
	}

	sweeper := dispatch.NewSweeper(reminders, dir, dispatch.SweeperOptions{
		Interval: cfg.Dispatch.SweepInterval,
		Policy:   dispatch.Policy(cfg.Dispatch.UndeliveredPolicy),
	})
	if err := sweeper.Start(); err != nil {
		return err
	}

	janitor, err := startJanitor(db)
	if err != nil {
		return err
	}

	ws := realtime.NewHandler(dir, reminders, users, assistant)
	ws.AllowedOrigins = cfg.CORS.AllowedOrigins
	ws.Location = time.Local

	api := handlers.Deps{
		Reminders:      reminders,
		Users:          users,
		Conversations:  conversations,
		Assistant:      assistant,
		Speech:         model,
		Targets:        dir,
		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Location:       time.Local,
		TTSDir:         cfg.TTSDir,
		PublicBaseURL:  cfg.PublicBaseURL,
	}
	if cal != nil {
		api.Calendar = cal
	}
	if cfg.Twilio.AccountSID != "" {
		api.Media = &telephony.MediaFetcher{
			Client:     &http.Client{Timeout: 30 * time.Second},
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
		}
	}
	deps := httpapi.Deps{API: api, Realtime: ws}
	if cfg.Twilio.AuthToken != "" {
		deps.Signature = telephony.NewSignatureValidator(cfg.Twilio.AuthToken)
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).
			Str("store", cfg.Store.Driver).Bool("twilio", cfg.Twilio.Enabled()).
			Bool("calendar", cal != nil).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	sweeper.Stop(sctx)
	events.Stop()
	<-janitor.Stop().Done()
	if err := store.Flush(sctx); err != nil {
		log.Error().Err(err).Msg("final snapshot flush")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := otelShutdown(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("bye")
	return serveErr
}

// snapshotBackend picks where users and reminders are persisted.
func snapshotBackend(cfg config.Config, db *gorm.DB) repo.SnapshotBackend {
	if cfg.Store.Driver == config.StoreSQLite {
		return repo.NewSQLiteBackend(db)
	}
	return repo.NewJSONFileBackend(cfg.Store.Path)
}

// startJanitor purges expired idempotency records every hour.
func startJanitor(db *gorm.DB) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc("@hourly", func() {
		n, err := repo.PurgeExpiredIdempotency(context.Background(), db, time.Now().UTC())
		if err != nil {
			log.Error().Err(err).Str("component", "janitor").Msg("purge idempotency")
			return
		}
		if n > 0 {
			log.Debug().Str("component", "janitor").Int64("purged", n).Msg("expired idempotency keys removed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
