package assign

import (
	"strings"

	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/schedule"
	"github.com/example/hotel-car-service/internal/storage"
)

type State string

const (
	Available   State = "available"
	Offline     State = "offline"
	Conflicting State = "conflicting"
)

// Option is one driver or vehicle as offered for a booking.
type Option struct {
	ID          string `json:"id"` // driver name or plate
	Label       string `json:"label"`
	VehicleType string `json:"vehicle_type,omitempty"`
	State       State  `json:"state"`
	Reason      string `json:"reason,omitempty"`
}

type Availability struct {
	ConfirmationNumber string   `json:"confirmation_number"`
	Window             string   `json:"window"`
	Drivers            []Option `json:"drivers"`
	Vehicles           []Option `json:"vehicles"`
}

// Availability derives, for one booking, which drivers and vehicles could be
// assigned to it right now and why the others cannot.
func (s *Service) Availability(confirmationNumber string) (Availability, error) {
	var out Availability
	err := s.Store.View(func(tx *storage.Tx) error {
		b, ok := tx.Booking(confirmationNumber)
		if !ok {
			return models.NotFoundf("booking %s", confirmationNumber)
		}
		all := tx.Bookings()
		out = Availability{ConfirmationNumber: b.ConfirmationNumber, Window: schedule.Label(b)}

		for _, d := range tx.Drivers() {
			o := Option{ID: d.Name, Label: d.Name + " (" + d.Phone + ")", State: Available}
			if d.Status != models.DriverOnline {
				o.State, o.Reason = Offline, "offline"
			} else if c := schedule.Conflicts(b, all, heldByDriver(d.Name)); len(c) > 0 {
				o.State, o.Reason = Conflicting, reason(c)
			}
			out.Drivers = append(out.Drivers, o)
		}
		for _, vt := range tx.VehicleTypes() {
			for _, v := range vt.Vehicles {
				o := Option{ID: v.Plate, Label: v.Model + " " + v.Plate, VehicleType: vt.Name, State: Available}
				if c := schedule.Conflicts(b, all, heldByVehicle(v.Plate)); len(c) > 0 {
					o.State, o.Reason = Conflicting, reason(c)
				}
				out.Vehicles = append(out.Vehicles, o)
			}
		}
		return nil
	})
	return out, err
}

func reason(conflicts []models.Booking) string {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, "booked "+schedule.Label(c))
	}
	return strings.Join(parts, ", ")
}
