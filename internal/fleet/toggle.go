package fleet

import (
	"context"

	"github.com/example/hotel-car-service/internal/geo"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/observability"
	"github.com/example/hotel-car-service/internal/storage"
)

// GoOnline records the driver's position and resumes the trip simulation of
// every active booking of theirs that has not arrived yet.
func (s *Service) GoOnline(ctx context.Context, username string, pos models.Coord) (models.Driver, error) {
	var (
		d       models.Driver
		was     models.DriverStatus
		resumed []string
	)
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		var ok bool
		d, ok = tx.Driver(username)
		if !ok {
			return models.NotFoundf("driver %q", username)
		}
		was = d.Status
		p := pos
		d.Status = models.DriverOnline
		d.Position = &p
		tx.PutDriver(d)

		for _, b := range tx.Bookings() {
			if b.DriverName != d.Name || !b.Active() || b.DriverStatus == models.DriverArrived {
				continue
			}
			b.DriverStatus = models.DriverOnline
			tx.PutBooking(b)
			resumed = append(resumed, b.ConfirmationNumber)
		}
		return nil
	})
	if err != nil {
		return models.Driver{}, err
	}

	if was != models.DriverOnline {
		observability.DriversOnline.Inc()
	}
	if err := s.Geo.Upsert(ctx, d.Username, pos); err != nil {
		s.Logger.Error("driver position index failed", "username", d.Username, "error", err)
	}
	for _, id := range resumed {
		s.Tracker.Start(id)
	}
	s.Logger.Info("driver online", "username", d.Username, "resumed_trips", len(resumed))
	return d, nil
}

// GoOffline stops the driver's trip simulations, then clears their position
// and marks their unfinished bookings offline.
func (s *Service) GoOffline(ctx context.Context, username string) (models.Driver, error) {
	d, ok := s.Store.Driver(username)
	if !ok {
		return models.Driver{}, models.NotFoundf("driver %q", username)
	}
	for _, b := range s.Store.Bookings() {
		if b.DriverName == d.Name {
			s.Tracker.Stop(b.ConfirmationNumber)
		}
	}

	var was models.DriverStatus
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		d, ok = tx.Driver(username)
		if !ok {
			return models.NotFoundf("driver %q", username)
		}
		was = d.Status
		d.Status = models.DriverOffline
		d.Position = nil
		tx.PutDriver(d)

		for _, b := range tx.Bookings() {
			if b.DriverName != d.Name || !b.Active() || b.DriverStatus != models.DriverOnline {
				continue
			}
			b.DriverStatus = models.DriverOffline
			tx.PutBooking(b)
		}
		return nil
	})
	if err != nil {
		return models.Driver{}, err
	}

	if was == models.DriverOnline {
		observability.DriversOnline.Dec()
	}
	if err := s.Geo.Remove(ctx, d.Username); err != nil {
		s.Logger.Error("driver position removal failed", "username", d.Username, "error", err)
	}
	s.Logger.Info("driver offline", "username", d.Username)
	return d, nil
}

// Nearby lists online drivers closest to pos.
func (s *Service) Nearby(ctx context.Context, pos models.Coord, limit int) ([]geo.Nearby, error) {
	return s.Geo.Nearby(ctx, pos, limit)
}
