package assign

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/example/hotel-car-service/internal/ingest"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/observability"
	"github.com/example/hotel-car-service/internal/schedule"
	"github.com/example/hotel-car-service/internal/storage"
)

// Tracker is the trip simulator as seen by assignment.
type Tracker interface {
	Start(confirmationNumber string) bool
	Reset(confirmationNumber string)
}

type Service struct {
	Store   *storage.MemoryStore
	Tracker Tracker
	Events  ingest.Publisher
	Logger  *slog.Logger
}

// Assign binds a driver and a vehicle to a booking. Validation and commit run
// in one store transaction, so two concurrent calls cannot both win the same
// driver or vehicle. On any error the booking is left untouched.
func (s *Service) Assign(ctx context.Context, confirmationNumber, driverName, plate string) (models.Booking, error) {
	start := time.Now()
	defer func() { observability.AssignLatency.Observe(time.Since(start).Seconds()) }()

	var prev, b models.Booking
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		d, ok := tx.DriverByName(strings.TrimSpace(driverName))
		if !ok {
			return models.Validationf("unknown driver %q", driverName)
		}
		v, _, ok := tx.Vehicle(strings.ToUpper(strings.TrimSpace(plate)))
		if !ok {
			return models.Validationf("unknown vehicle %q", plate)
		}
		b, ok = tx.Booking(confirmationNumber)
		if !ok {
			return models.NotFoundf("booking %s", confirmationNumber)
		}
		if !b.BookingStatus.CanTransitionTo(models.BookingAssigned) {
			return models.Conflictf("booking %s is %s", b.ConfirmationNumber, b.BookingStatus)
		}
		if d.Status != models.DriverOnline {
			return models.Conflictf("driver %s is offline", d.Name)
		}

		all := tx.Bookings()
		if c := schedule.Conflicts(b, all, heldByDriver(d.Name)); len(c) > 0 {
			return models.Conflictf("driver %s is booked %s (%s)", d.Name, schedule.Label(c[0]), c[0].ConfirmationNumber)
		}
		if c := schedule.Conflicts(b, all, heldByVehicle(v.Plate)); len(c) > 0 {
			return models.Conflictf("vehicle %s is booked %s (%s)", v.Plate, schedule.Label(c[0]), c[0].ConfirmationNumber)
		}

		prev = b
		same := sameAssignment(prev, d.Name, v.Plate)
		b.DriverName = d.Name
		b.DriverPhone = d.Phone
		b.AssignedVehicle = v.Plate
		b.BookingStatus = models.BookingAssigned
		if !same || b.DriverStatus != models.DriverArrived {
			b.DriverStatus = d.Status
		}
		if !same {
			b.DriverPosition = nil
			b.ETA = ""
		}
		tx.PutBooking(b)
		b, _ = tx.Booking(confirmationNumber)
		return nil
	})
	if err != nil {
		observability.Assignments.WithLabelValues(resultLabel(err)).Inc()
		s.Logger.Info("assignment rejected", "confirmation_number", confirmationNumber, "driver_name", driverName, "plate", plate, "reason", err.Error())
		return models.Booking{}, err
	}
	observability.Assignments.WithLabelValues("assigned").Inc()

	if !sameAssignment(prev, b.DriverName, b.AssignedVehicle) {
		s.Tracker.Reset(confirmationNumber)
	}
	s.Tracker.Start(confirmationNumber)

	s.Logger.Info("booking assigned", "confirmation_number", confirmationNumber, "driver_name", b.DriverName, "plate", b.AssignedVehicle)
	if s.Events != nil {
		if err := s.Events.Publish(ctx, ingest.NewEvent(models.EventAssigned, b)); err != nil {
			s.Logger.Error("booking event publish failed", "type", models.EventAssigned, "confirmation_number", confirmationNumber, "error", err)
		}
	}
	return b, nil
}

func sameAssignment(b models.Booking, driverName, plate string) bool {
	return b.BookingStatus == models.BookingAssigned && b.DriverName == driverName && b.AssignedVehicle == plate
}

func heldByDriver(name string) func(models.Booking) bool {
	return func(o models.Booking) bool { return o.DriverName == name }
}

func heldByVehicle(plate string) func(models.Booking) bool {
	return func(o models.Booking) bool { return o.AssignedVehicle == plate }
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
