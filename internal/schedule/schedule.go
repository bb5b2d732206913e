package schedule

import (
	"time"

	"github.com/example/hotel-car-service/internal/models"
)

// TripDuration is the fixed length of every booking window.
const TripDuration = 90 * time.Minute

const layout = "2006-01-02 15:04"

// Window returns the half-open interval [start, start+TripDuration) for a
// booking's pickup date and time. ok is false when they do not parse.
func Window(date, clock string) (start, end time.Time, ok bool) {
	start, err := time.ParseInLocation(layout, date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, start.Add(TripDuration), true
}

// Overlaps reports whether two bookings' windows intersect. Touching
// endpoints do not conflict. A booking with an unparseable date or time
// never conflicts with anything.
func Overlaps(a, b models.Booking) bool {
	as, ae, ok := Window(a.Date, a.Time)
	if !ok {
		return false
	}
	bs, be, ok := Window(b.Date, b.Time)
	if !ok {
		return false
	}
	return as.Before(be) && ae.After(bs)
}

// Label renders a window as "HH:MM–HH:MM".
func Label(b models.Booking) string {
	start, end, ok := Window(b.Date, b.Time)
	if !ok {
		return b.Date + " " + b.Time
	}
	return start.Format("15:04") + "–" + end.Format("15:04")
}

// Conflicts returns the bookings in others that hold the same resource as
// target would and overlap it. target itself and cancelled bookings are
// skipped; holds decides whether a booking holds the resource.
func Conflicts(target models.Booking, others []models.Booking, holds func(models.Booking) bool) []models.Booking {
	var out []models.Booking
	for _, o := range others {
		if o.ConfirmationNumber == target.ConfirmationNumber || !o.Active() || !holds(o) {
			continue
		}
		if Overlaps(target, o) {
			out = append(out, o)
		}
	}
	return out
}
