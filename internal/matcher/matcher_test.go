package matcher

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/example/hotel-car-service/internal/assign"
	"github.com/example/hotel-car-service/internal/geo"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/storage"
)

type nopTracker struct{}

func (nopTracker) Start(string) bool { return true }
func (nopTracker) Reset(string)      {}

var hotel = models.Coord{Lat: 23.1815, Lng: 79.9864}

func setup(t *testing.T) (*Service, *assign.Service) {
	t.Helper()
	store := storage.NewMemoryStore(nil, nil)
	_ = store.Update(context.Background(), func(tx *storage.Tx) error {
		tx.PutDriver(models.Driver{Name: "Ravi", Username: "ravi", Status: models.DriverOnline})
		tx.PutDriver(models.Driver{Name: "Arjun", Username: "arjun", Status: models.DriverOnline})
		tx.PutDriver(models.Driver{Name: "Meena", Username: "meena", Status: models.DriverOffline})
		tx.PutVehicleType(models.VehicleType{Name: "Standard", Capacity: 4, Vehicles: []models.Vehicle{{Plate: "CAR-1"}}})
		tx.PutVehicleType(models.VehicleType{Name: "SUV", Capacity: 6, Vehicles: []models.Vehicle{{Plate: "SUV-1"}, {Plate: "SUV-2"}}})
		for _, id := range []string{"HCS-A", "HCS-B"} {
			tx.PutBooking(models.Booking{ConfirmationNumber: id, Date: "2024-06-01", Time: "10:00", VehicleType: "SUV", BookingStatus: models.BookingConfirmed})
		}
		return nil
	})
	g := geo.NewIndex()
	ctx := context.Background()
	_ = g.Upsert(ctx, "ravi", models.Coord{Lat: 23.20, Lng: 79.99})
	_ = g.Upsert(ctx, "arjun", models.Coord{Lat: 23.182, Lng: 79.987})
	as := &assign.Service{Store: store, Tracker: nopTracker{}, Logger: slog.Default()}
	return &Service{Assign: as, Geo: g, Store: store, DefaultSpeedMps: 10, TopN: 5}, as
}

func TestRecommendOrdersByTravelTime(t *testing.T) {
	s, _ := setup(t)
	rec, err := s.Recommend(context.Background(), "HCS-A", hotel)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(rec.Candidates) != 2 || rec.Candidates[0].DriverName != "Arjun" || rec.Candidates[1].DriverName != "Ravi" {
		t.Fatalf("unexpected ranking %+v", rec.Candidates)
	}
	if rec.Vehicle != "SUV-1" {
		t.Fatalf("expected a free SUV, got %q", rec.Vehicle)
	}
	if rec.Candidates[1].ETAMinutes < rec.Candidates[0].ETAMinutes {
		t.Fatalf("eta should grow with distance: %+v", rec.Candidates)
	}
}

func TestRecommendSkipsConflictingDriversAndVehicles(t *testing.T) {
	s, as := setup(t)
	if _, err := as.Assign(context.Background(), "HCS-A", "Arjun", "SUV-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	rec, err := s.Recommend(context.Background(), "HCS-B", hotel)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(rec.Candidates) != 1 || rec.Candidates[0].DriverName != "Ravi" {
		t.Fatalf("busy driver should be skipped: %+v", rec.Candidates)
	}
	if rec.Vehicle != "SUV-2" {
		t.Fatalf("busy vehicle should be skipped, got %q", rec.Vehicle)
	}
}

func TestRecommendUnknownBooking(t *testing.T) {
	s, _ := setup(t)
	if _, err := s.Recommend(context.Background(), "HCS-Z", hotel); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
