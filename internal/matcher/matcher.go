package matcher

import (
	"context"
	"math"
	"sort"

	"github.com/example/hotel-car-service/internal/assign"
	"github.com/example/hotel-car-service/internal/eta"
	"github.com/example/hotel-car-service/internal/geo"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/storage"
)

// Availability is the assignment view the matcher ranks.
type Availability interface {
	Availability(confirmationNumber string) (assign.Availability, error)
}

type Service struct {
	Assign          Availability
	Geo             geo.Geo
	Store           *storage.MemoryStore
	DefaultSpeedMps float64
	TopN            int
}

// Candidate is a driver that could take the booking right now.
type Candidate struct {
	DriverName string  `json:"driver_name"`
	Username   string  `json:"username"`
	Meters     float64 `json:"meters"`
	ETAMinutes int     `json:"eta_minutes"`
	Cost       float64 `json:"cost"`
}

// Recommendation pairs the closest free drivers with a free vehicle of the
// booked type. Vehicle is empty when every vehicle of that type is taken.
type Recommendation struct {
	ConfirmationNumber string      `json:"confirmation_number"`
	Vehicle            string      `json:"vehicle,omitempty"`
	Candidates         []Candidate `json:"candidates"`
}

// Recommend ranks online, conflict-free drivers by travel time from origin.
// It only reads; the desk still confirms through Assign.
func (s *Service) Recommend(ctx context.Context, confirmationNumber string, origin models.Coord) (Recommendation, error) {
	b, ok := s.Store.Booking(confirmationNumber)
	if !ok {
		return Recommendation{}, models.NotFoundf("booking %s", confirmationNumber)
	}
	av, err := s.Assign.Availability(confirmationNumber)
	if err != nil {
		return Recommendation{}, err
	}
	rec := Recommendation{ConfirmationNumber: confirmationNumber, Candidates: []Candidate{}}

	for _, v := range av.Vehicles {
		if v.State == assign.Available && v.VehicleType == b.VehicleType {
			rec.Vehicle = v.ID
			break
		}
	}

	free := make(map[string]bool, len(av.Drivers))
	for _, d := range av.Drivers {
		if d.State == assign.Available {
			free[d.ID] = true
		}
	}
	names := make(map[string]string)
	for _, d := range s.Store.Drivers() {
		names[d.Username] = d.Name
	}

	near, err := s.Geo.Nearby(ctx, origin, 0)
	if err != nil {
		return Recommendation{}, err
	}
	speed := s.DefaultSpeedMps
	if speed <= 0 {
		speed = 10
	}
	for _, n := range near {
		name, ok := names[n.Username]
		if !ok || !free[name] {
			continue
		}
		etaSec := eta.TravelSeconds(n.Meters, speed)
		rec.Candidates = append(rec.Candidates, Candidate{
			DriverName: name,
			Username:   n.Username,
			Meters:     math.Round(n.Meters),
			ETAMinutes: int(math.Ceil(etaSec / 60)),
			Cost:       etaSec,
		})
	}
	sort.SliceStable(rec.Candidates, func(i, j int) bool {
		if rec.Candidates[i].Cost == rec.Candidates[j].Cost {
			return rec.Candidates[i].DriverName < rec.Candidates[j].DriverName
		}
		return rec.Candidates[i].Cost < rec.Candidates[j].Cost
	})
	if s.TopN > 0 && len(rec.Candidates) > s.TopN {
		rec.Candidates = rec.Candidates[:s.TopN]
	}
	return rec, nil
}
