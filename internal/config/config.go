package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the booking API process.
// Values are loaded from environment variables with defaults so the binary
// runs locally with nothing but an empty environment.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	GeoRadiusKm   float64

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN         string
	RunMigrations bool

	StripeAPIKey    string
	PaymentCurrency string

	AssistantURL     string
	AssistantTimeout time.Duration

	ArrivalWebhookURL string

	TrackingTick     time.Duration
	TrackingDuration time.Duration

	// Pickup origin used to rank drivers when a request names none.
	HotelLat        float64
	HotelLng        float64
	DefaultSpeedMps float64
	MatcherTopN     int

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		RedisGeoKey:      "drivers_geo",
		GeoRadiusKm:      50,
		KafkaTopic:       "booking-events",
		PaymentCurrency:  "inr",
		AssistantTimeout: 3 * time.Second,
		TrackingTick:     time.Second,
		TrackingDuration: 20 * time.Second,
		HotelLat:         23.1815,
		HotelLng:         79.9864,
		DefaultSpeedMps:  10,
		MatcherTopN:      5,
		LogLevel:         "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setFloatFromEnv(&cfg.GeoRadiusKm, "GEO_RADIUS_KM", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	cfg.StripeAPIKey = strings.TrimSpace(os.Getenv("STRIPE_API_KEY"))
	if v := os.Getenv("PAYMENT_CURRENCY"); v != "" {
		cfg.PaymentCurrency = strings.ToLower(strings.TrimSpace(v))
	}

	cfg.AssistantURL = strings.TrimSpace(os.Getenv("ASSISTANT_URL"))
	setDurationFromEnv(&cfg.AssistantTimeout, "ASSISTANT_TIMEOUT", &errs)

	cfg.ArrivalWebhookURL = strings.TrimSpace(os.Getenv("ARRIVAL_WEBHOOK_URL"))

	setDurationFromEnv(&cfg.TrackingTick, "TRACKING_TICK", &errs)
	setDurationFromEnv(&cfg.TrackingDuration, "TRACKING_DURATION", &errs)

	setFloatFromEnv(&cfg.HotelLat, "HOTEL_LAT", &errs)
	setFloatFromEnv(&cfg.HotelLng, "HOTEL_LNG", &errs)
	setFloatFromEnv(&cfg.DefaultSpeedMps, "MATCHER_DEFAULT_SPEED_MPS", &errs)
	setIntFromEnv(&cfg.MatcherTopN, "MATCHER_TOP_N", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.TrackingTick <= 0 {
		errs = append(errs, fmt.Errorf("TRACKING_TICK must be > 0"))
	}
	if cfg.TrackingDuration < cfg.TrackingTick {
		errs = append(errs, fmt.Errorf("TRACKING_DURATION must be >= TRACKING_TICK"))
	}
	if cfg.AssistantTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ASSISTANT_TIMEOUT must be > 0"))
	}
	if cfg.MatcherTopN <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_TOP_N must be > 0"))
	}
	if cfg.GeoRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("GEO_RADIUS_KM must be > 0"))
	}
	if cfg.DefaultSpeedMps <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_DEFAULT_SPEED_MPS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig is the event projector's configuration.
type ConsumerConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RetryAttempts int
	RetryDelay    time.Duration
	LogLevel      string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:   ":2112",
		KafkaBrokers:  []string{"localhost:9092"},
		KafkaTopic:    "booking-events",
		KafkaGroup:    "hotel-car-service-projector",
		RedisAddr:     "localhost:6379",
		RetryAttempts: 3,
		RetryDelay:    200 * time.Millisecond,
		LogLevel:      "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	if brokers := splitAndTrim(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setIntFromEnv(&cfg.RetryAttempts, "REDIS_RETRY_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.RetryDelay, "REDIS_RETRY_DELAY", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.RetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("REDIS_RETRY_ATTEMPTS must be > 0"))
	}
	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
