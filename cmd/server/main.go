package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/hotel-car-service/internal/assign"
	"github.com/example/hotel-car-service/internal/assistant"
	"github.com/example/hotel-car-service/internal/booking"
	"github.com/example/hotel-car-service/internal/config"
	"github.com/example/hotel-car-service/internal/dispatch"
	"github.com/example/hotel-car-service/internal/fleet"
	"github.com/example/hotel-car-service/internal/geo"
	httpapi "github.com/example/hotel-car-service/internal/http"
	"github.com/example/hotel-car-service/internal/ingest"
	"github.com/example/hotel-car-service/internal/logging"
	"github.com/example/hotel-car-service/internal/matcher"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/payments"
	"github.com/example/hotel-car-service/internal/storage"
	"github.com/example/hotel-car-service/internal/tracking"
)

func main() {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("booking-api", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mirror storage.Mirror
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres mirror unavailable, continuing in memory", "error", err)
		} else {
			defer pg.Close()
			mirror = pg
			if cfg.RunMigrations {
				migrate(ctx, pg, logger)
			}
		}
	}
	store := storage.NewMemoryStore(mirror, logger)

	var (
		positions geo.Geo = geo.NewIndexWithin(cfg.GeoRadiusKm)
		ready     func(context.Context) error
	)
	if cfg.RedisAddr != "" {
		rg := geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey, cfg.GeoRadiusKm)
		defer rg.Close()
		positions = rg
		ready = rg.Ping
	}

	var events ingest.Publisher = ingest.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		events = kp
	}

	wsreg := dispatch.NewWSRegistry()
	notifiers := dispatch.Fanout{wsreg, dispatch.LogNotifier{Logger: logger}, ingest.ArrivalPublisher{Publisher: events, Logger: logger}}
	if cfg.ArrivalWebhookURL != "" {
		notifiers = append(notifiers, dispatch.NewWebhookNotifier(cfg.ArrivalWebhookURL, logger))
	}
	sim := tracking.NewSimulator(store, notifiers, logger, tracking.Options{
		Tick:     cfg.TrackingTick,
		Duration: cfg.TrackingDuration,
	})
	defer func() {
		logger.Info("stopping trip simulations", "active", sim.Active())
		sim.Shutdown()
	}()

	fl := &fleet.Service{Store: store, Geo: positions, Tracker: sim, Logger: logger}
	if err := fl.Seed(ctx, fleet.DefaultCatalogue()); err != nil {
		logger.Error("fleet seed failed", "error", err)
		os.Exit(1)
	}

	bookings := &booking.Service{
		Store:            store,
		AssistantTimeout: cfg.AssistantTimeout,
		Events:           events,
		Tracker:          sim,
		Watchers:         wsreg,
		Logger:           logger,
	}
	if cfg.AssistantURL != "" {
		bookings.Assistant = assistant.NewHTTPClient(cfg.AssistantURL, cfg.AssistantTimeout)
	}

	var gateway payments.Gateway
	if cfg.StripeAPIKey != "" {
		gateway = payments.NewStripeClient(cfg.StripeAPIKey, cfg.PaymentCurrency)
	}

	assigner := &assign.Service{Store: store, Tracker: sim, Events: events, Logger: logger}
	api := httpapi.NewServer(httpapi.Deps{
		Bookings: bookings,
		Assign:   assigner,
		Fleet:    fl,
		Matcher: &matcher.Service{
			Assign:          assigner,
			Geo:             positions,
			Store:           store,
			DefaultSpeedMps: cfg.DefaultSpeedMps,
			TopN:            cfg.MatcherTopN,
		},
		Origin:   models.Coord{Lat: cfg.HotelLat, Lng: cfg.HotelLng},
		Payments: gateway,
		WSReg:    wsreg,
		Trips:    sim,
		Ready:    ready,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("booking api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func migrate(ctx context.Context, pg *storage.PostgresStore, logger *slog.Logger) {
	path := filepath.Join("migrations", "001_create_bookings.sql")
	script, err := os.ReadFile(path)
	if err != nil {
		logger.Error("migration read failed", "path", path, "error", err)
		return
	}
	if err := pg.Migrate(ctx, string(script)); err != nil {
		logger.Error("migration exec failed", "path", path, "error", err)
		return
	}
	logger.Info("migration applied", "path", path)
}
