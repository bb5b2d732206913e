package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/hotel-car-service/internal/config"
	"github.com/example/hotel-car-service/internal/logging"
	"github.com/example/hotel-car-service/internal/models"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_consumed_total",
		Help: "Total booking events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_invalid_total",
		Help: "Total booking events that could not be decoded",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_updates_total",
		Help: "Total successful redis projections",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, redisUpdates, redisErrors)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger("booking-projector", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	radapter := &redisAdapter{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, GroupID: cfg.KafkaGroup, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("projector listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down projector")
				return
			}
			logger.Warn("kafka read failed", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		e, err := decodeEvent(m.Value)
		if err != nil {
			eventsInvalid.Inc()
			logger.Warn("invalid booking event", "offset", m.Offset, "error", err)
			continue
		}

		if err := updateRedisWithRetry(ctx, radapter, e, cfg.RetryAttempts, cfg.RetryDelay); err != nil {
			redisErrors.Inc()
			logger.Error("redis projection failed", "confirmation_number", e.ConfirmationNumber, "type", e.Type, "error", err)
			continue
		}
		redisUpdates.Inc()
	}
}

func decodeEvent(raw []byte) (models.Event, error) {
	var e models.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.Event{}, err
	}
	if e.ConfirmationNumber == "" || e.Type == "" {
		return models.Event{}, errors.New("event without confirmation number or type")
	}
	return e, nil
}

// RedisUpdater is the subset of redis operations the projection needs.
type RedisUpdater interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SRem(ctx context.Context, key string, members ...interface{}) error
}

type redisAdapter struct{ c *redis.Client }

// HGet returns "" for a missing key or field.
func (r *redisAdapter) HGet(ctx context.Context, key, field string) (string, error) {
	v, err := r.c.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := r.c.HSet(ctx, key, values).Result()
	return err
}

func (r *redisAdapter) SAdd(ctx context.Context, key string, members ...interface{}) error {
	_, err := r.c.SAdd(ctx, key, members...).Result()
	return err
}

func (r *redisAdapter) SRem(ctx context.Context, key string, members ...interface{}) error {
	_, err := r.c.SRem(ctx, key, members...).Result()
	return err
}

func statusKey(confirmationNumber string) string { return "booking:status:" + confirmationNumber }

func driverKey(driverName string) string { return "driver:bookings:" + driverName }

func projection(e models.Event) map[string]interface{} {
	return map[string]interface{}{
		"booking_status":   string(e.BookingStatus),
		"driver_status":    string(e.DriverStatus),
		"payment_status":   string(e.PaymentStatus),
		"driver_name":      e.DriverName,
		"assigned_vehicle": e.AssignedVehicle,
		"last_event":       e.Type,
		"last_event_id":    e.ID,
		"updated_at":       e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

// updateRedisWithRetry writes the latest status of a booking and keeps the
// per-driver index in step with it, retrying with exponential backoff.
func updateRedisWithRetry(ctx context.Context, rc RedisUpdater, e models.Event, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = project(ctx, rc, e); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// project removes the booking from its previous driver's set before the
// status hash moves on, so a retried event still sees the old driver.
func project(ctx context.Context, rc RedisUpdater, e models.Event) error {
	key := statusKey(e.ConfirmationNumber)
	prev, err := rc.HGet(ctx, key, "driver_name")
	if err != nil {
		return err
	}
	if prev != "" && prev != e.DriverName {
		if err := rc.SRem(ctx, driverKey(prev), e.ConfirmationNumber); err != nil {
			return err
		}
	}
	if err := rc.HSet(ctx, key, projection(e)); err != nil {
		return err
	}
	if e.Type == models.EventAssigned && e.DriverName != "" {
		return rc.SAdd(ctx, driverKey(e.DriverName), e.ConfirmationNumber)
	}
	return nil
}
