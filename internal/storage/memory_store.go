package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/example/hotel-car-service/internal/models"
)

// Mirror receives committed bookings. It is write-only: the memory store stays
// the source of truth.
type Mirror interface {
	SaveBooking(ctx context.Context, b models.Booking) error
}

// MemoryStore is the single owner of bookings, drivers and vehicle types.
// Reads return copies; writes go through Update.
type MemoryStore struct {
	mu sync.RWMutex

	bookings     map[string]models.Booking
	bookingOrder []string
	drivers      map[string]models.Driver
	driverOrder  []string
	types        map[string]models.VehicleType
	typeOrder    []string

	mirror Mirror
	logger *slog.Logger
}

func NewMemoryStore(mirror Mirror, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		bookings: make(map[string]models.Booking),
		drivers:  make(map[string]models.Driver),
		types:    make(map[string]models.VehicleType),
		mirror:   mirror,
		logger:   logger,
	}
}

// Update runs fn with exclusive access to the store. Changes staged on tx are
// applied only if fn returns nil, so a rejected operation leaves no trace.
func (m *MemoryStore) Update(ctx context.Context, fn func(tx *Tx) error) error {
	changed, err := m.apply(fn)
	if err != nil {
		return err
	}
	if m.mirror != nil {
		for _, b := range changed {
			if err := m.mirror.SaveBooking(ctx, b); err != nil {
				m.logger.Error("booking mirror write failed", "confirmation_number", b.ConfirmationNumber, "error", err)
			}
		}
	}
	return nil
}

// apply holds the write lock only for fn and the commit. The mirror is
// written after it is released.
func (m *MemoryStore) apply(fn func(tx *Tx) error) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m)
	if err := fn(tx); err != nil {
		return nil, err
	}
	return tx.commit(), nil
}

// View runs fn against a consistent snapshot. Anything staged on tx is dropped.
func (m *MemoryStore) View(fn func(tx *Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m))
}

func (m *MemoryStore) Booking(id string) (models.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	return b.Clone(), ok
}

// Bookings returns every booking in creation order, cancelled ones included.
func (m *MemoryStore) Bookings() []models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0, len(m.bookingOrder))
	for _, id := range m.bookingOrder {
		out = append(out, m.bookings[id].Clone())
	}
	return out
}

func (m *MemoryStore) Driver(username string) (models.Driver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[username]
	return d.Clone(), ok
}

func (m *MemoryStore) Drivers() []models.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.driverOrder))
	for _, u := range m.driverOrder {
		out = append(out, m.drivers[u].Clone())
	}
	return out
}

func (m *MemoryStore) VehicleTypes() []models.VehicleType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.VehicleType, 0, len(m.typeOrder))
	for _, n := range m.typeOrder {
		out = append(out, m.types[n].Clone())
	}
	return out
}
