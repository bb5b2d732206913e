package booking

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/hotel-car-service/internal/assistant"
	"github.com/example/hotel-car-service/internal/fare"
	"github.com/example/hotel-car-service/internal/ingest"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/observability"
	"github.com/example/hotel-car-service/internal/storage"
)

// Tracker is the trip simulator as seen by the lifecycle.
type Tracker interface {
	Reset(confirmationNumber string)
}

// Watchers are told about cancellations after they commit, so open tracking
// screens can drop the last known position.
type Watchers interface {
	Cancelled(ctx context.Context, b models.Booking)
}

// Service owns the booking state machine: create, cancel and pay.
type Service struct {
	Store            *storage.MemoryStore
	Assistant        assistant.Client // optional
	AssistantTimeout time.Duration
	Events           ingest.Publisher
	Tracker          Tracker
	Watchers         Watchers // optional
	Logger           *slog.Logger

	// NewConfirmationNumber overrides the generator, mainly for tests.
	NewConfirmationNumber func() string
}

var validate = validator.New()

const maxConfirmationAttempts = 16

// Create validates a guest request and stores a new confirmed booking. The
// fare is computed here once and never recomputed.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (models.Booking, error) {
	req = trimRequest(req)
	if err := validate.Struct(req); err != nil {
		return models.Booking{}, models.Validationf("%v", err)
	}

	var vt models.VehicleType
	_ = s.Store.View(func(tx *storage.Tx) error {
		vt, _ = tx.VehicleType(req.VehicleType)
		return nil
	})
	if vt.Name == "" {
		return models.Booking{}, models.Validationf("unknown vehicle type %q", req.VehicleType)
	}
	req.VehicleType = vt.Name

	suggestion, suggested := s.suggest(ctx, req)
	now := time.Now().UTC()
	var b models.Booking
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		id := ""
		for i := 0; i < maxConfirmationAttempts; i++ {
			if c := s.confirmationNumber(); !tx.HasBooking(c) {
				id = c
				break
			}
		}
		if id == "" {
			return models.Conflictf("could not allocate a confirmation number")
		}
		if !suggested {
			suggestion = assistant.Fallback(req, id)
		}
		b = models.Booking{
			ConfirmationNumber:    id,
			GuestName:             req.GuestName,
			GuestPhone:            req.GuestPhone,
			Location:              req.Location,
			Date:                  req.Date,
			Time:                  req.Time,
			ServiceType:           req.ServiceType,
			VehicleType:           req.VehicleType,
			EstimatedFare:         fare.Estimate(req.Location, req.VehicleType),
			BookingStatus:         models.BookingConfirmed,
			DriverStatus:          models.DriverOffline,
			PaymentStatus:         models.PaymentPending,
			ConfirmationMessage:   suggestion.ConfirmationMessage,
			EstimatedTripDuration: suggestion.EstimatedTripDuration,
			EstimatedArrivalTime:  suggestion.EstimatedArrivalTime,
			CreatedAt:             now,
		}
		tx.PutBooking(b)
		b, _ = tx.Booking(id)
		return nil
	})
	if err != nil {
		return models.Booking{}, err
	}

	observability.BookingsCreated.Inc()
	s.Logger.Info("booking created", "confirmation_number", b.ConfirmationNumber, "vehicle_type", b.VehicleType, "fare", b.EstimatedFare)
	s.publish(ctx, models.EventCreated, b)
	return b, nil
}

// suggest asks the text service for confirmation copy. Any failure falls
// back to locally generated text; it never blocks the booking.
func (s *Service) suggest(ctx context.Context, req models.CreateRequest) (assistant.Suggestion, bool) {
	if s.Assistant == nil {
		observability.AssistantFallbacks.Inc()
		return assistant.Suggestion{}, false
	}
	timeout := s.AssistantTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sg, err := s.Assistant.Suggest(actx, req)
	if err != nil {
		observability.AssistantFallbacks.Inc()
		s.Logger.Warn("assistant unavailable, using fallback text", "error", err)
		return assistant.Suggestion{}, false
	}
	return sg, true
}

// Cancel moves a booking to cancelled and releases its driver and vehicle.
// Cancelling twice is a no-op. The trip simulation is stopped before the
// assignment is cleared.
func (s *Service) Cancel(ctx context.Context, confirmationNumber string) (models.Booking, error) {
	cur, ok := s.Store.Booking(confirmationNumber)
	if !ok {
		return models.Booking{}, models.NotFoundf("booking %s", confirmationNumber)
	}
	if cur.BookingStatus.Terminal() {
		return cur, nil
	}

	s.Tracker.Reset(confirmationNumber)

	changed := false
	var b models.Booking
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		var ok bool
		b, ok = tx.Booking(confirmationNumber)
		if !ok {
			return models.NotFoundf("booking %s", confirmationNumber)
		}
		if !b.BookingStatus.CanTransitionTo(models.BookingCancelled) {
			return nil
		}
		b.BookingStatus = models.BookingCancelled
		b.DriverName = ""
		b.DriverPhone = ""
		b.AssignedVehicle = ""
		b.DriverStatus = models.DriverOffline
		b.DriverPosition = nil
		b.ETA = ""
		tx.PutBooking(b)
		b, _ = tx.Booking(confirmationNumber)
		changed = true
		return nil
	})
	if err != nil || !changed {
		return b, err
	}

	observability.BookingsCancelled.Inc()
	s.Logger.Info("booking cancelled", "confirmation_number", confirmationNumber)
	s.publish(ctx, models.EventCancelled, b)
	if s.Watchers != nil {
		s.Watchers.Cancelled(ctx, b)
	}
	return b, nil
}

// MarkPaid records the payment identifier. A booking that is already paid
// keeps its original identifier.
func (s *Service) MarkPaid(ctx context.Context, confirmationNumber, paymentID string) (models.Booking, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return models.Booking{}, models.Validationf("payment id is required")
	}
	changed := false
	var b models.Booking
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		var ok bool
		b, ok = tx.Booking(confirmationNumber)
		if !ok {
			return models.NotFoundf("booking %s", confirmationNumber)
		}
		if b.PaymentStatus == models.PaymentPaid {
			return nil
		}
		b.PaymentStatus = models.PaymentPaid
		b.PaymentID = paymentID
		tx.PutBooking(b)
		b, _ = tx.Booking(confirmationNumber)
		changed = true
		return nil
	})
	if err != nil || !changed {
		return b, err
	}

	observability.BookingsPaid.Inc()
	s.Logger.Info("booking paid", "confirmation_number", confirmationNumber, "payment_id", paymentID)
	s.publish(ctx, models.EventPaid, b)
	return b, nil
}

func (s *Service) Get(confirmationNumber string) (models.Booking, error) {
	b, ok := s.Store.Booking(confirmationNumber)
	if !ok {
		return models.Booking{}, models.NotFoundf("booking %s", confirmationNumber)
	}
	return b, nil
}

// List returns all bookings in creation order, cancelled ones included.
func (s *Service) List() []models.Booking { return s.Store.Bookings() }

// ListByDriver returns the bookings currently assigned to a driver.
func (s *Service) ListByDriver(driverName string) []models.Booking {
	var out []models.Booking
	for _, b := range s.Store.Bookings() {
		if b.DriverName == driverName {
			out = append(out, b)
		}
	}
	return out
}

func (s *Service) publish(ctx context.Context, eventType string, b models.Booking) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ingest.NewEvent(eventType, b)); err != nil {
		s.Logger.Error("booking event publish failed", "type", eventType, "confirmation_number", b.ConfirmationNumber, "error", err)
	}
}

func (s *Service) confirmationNumber() string {
	if s.NewConfirmationNumber != nil {
		return s.NewConfirmationNumber()
	}
	return NewConfirmationNumber()
}

const confirmationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewConfirmationNumber returns a random "HCS-XXXXXX" code.
func NewConfirmationNumber() string {
	var sb strings.Builder
	sb.WriteString("HCS-")
	limit := big.NewInt(int64(len(confirmationAlphabet)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			n = big.NewInt(time.Now().UnixNano() % limit.Int64())
		}
		sb.WriteByte(confirmationAlphabet[n.Int64()])
	}
	return sb.String()
}

func trimRequest(r models.CreateRequest) models.CreateRequest {
	r.GuestName = strings.TrimSpace(r.GuestName)
	r.GuestPhone = strings.TrimSpace(r.GuestPhone)
	r.Location = strings.TrimSpace(r.Location)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.ServiceType = strings.TrimSpace(r.ServiceType)
	r.VehicleType = strings.TrimSpace(r.VehicleType)
	return r
}
