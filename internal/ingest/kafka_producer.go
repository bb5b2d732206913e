package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/example/hotel-car-service/internal/models"
)

// Publisher records booking lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e models.Event) error
}

// NewEvent snapshots b into an event of the given type.
func NewEvent(eventType string, b models.Booking) models.Event {
	return models.Event{
		ID:                 uuid.NewString(),
		Type:               eventType,
		ConfirmationNumber: b.ConfirmationNumber,
		BookingStatus:      b.BookingStatus,
		DriverStatus:       b.DriverStatus,
		PaymentStatus:      b.PaymentStatus,
		DriverName:         b.DriverName,
		AssignedVehicle:    b.AssignedVehicle,
		OccurredAt:         time.Now().UTC(),
	}
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic, Balancer: &kafka.Hash{}}
	return &KafkaProducer{writer: w}
}

// Publish keys messages by confirmation number so one booking's events stay
// ordered within a partition.
func (k *KafkaProducer) Publish(ctx context.Context, e models.Event) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.ConfirmationNumber), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

func (Discard) Publish(ctx context.Context, e models.Event) error { return nil }

// ArrivalPublisher turns trip arrivals into booking events. Position ticks
// are too frequent for the event log and are dropped.
type ArrivalPublisher struct {
	Publisher Publisher
	Logger    *slog.Logger
}

func (a ArrivalPublisher) PositionChanged(ctx context.Context, b models.Booking) {}

func (a ArrivalPublisher) Arrived(ctx context.Context, b models.Booking) {
	if err := a.Publisher.Publish(ctx, NewEvent(models.EventArrived, b)); err != nil {
		a.Logger.Error("booking event publish failed", "type", models.EventArrived, "confirmation_number", b.ConfirmationNumber, "error", err)
	}
}
