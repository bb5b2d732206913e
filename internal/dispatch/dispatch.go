package dispatch

import (
	"context"
	"log/slog"

	"github.com/example/hotel-car-service/internal/models"
)

// Notifier receives trip progress from the tracking simulator.
type Notifier interface {
	PositionChanged(ctx context.Context, b models.Booking)
	Arrived(ctx context.Context, b models.Booking)
}

// Fanout forwards every notification to each notifier in order.
type Fanout []Notifier

func (f Fanout) PositionChanged(ctx context.Context, b models.Booking) {
	for _, n := range f {
		n.PositionChanged(ctx, b)
	}
}

func (f Fanout) Arrived(ctx context.Context, b models.Booking) {
	for _, n := range f {
		n.Arrived(ctx, b)
	}
}

// LogNotifier writes arrivals to the service log. Position ticks are debug.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) PositionChanged(ctx context.Context, b models.Booking) {
	l.Logger.DebugContext(ctx, "driver position", "confirmation_number", b.ConfirmationNumber, "eta", b.ETA)
}

func (l LogNotifier) Arrived(ctx context.Context, b models.Booking) {
	l.Logger.InfoContext(ctx, "arrival notification", "confirmation_number", b.ConfirmationNumber, "guest_name", b.GuestName, "driver_name", b.DriverName)
}
