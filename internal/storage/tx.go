package storage

import (
	"strings"
	"time"

	"github.com/example/hotel-car-service/internal/models"
)

// Tx is a staging area over the store. It is only valid inside the Update or
// View callback that created it.
type Tx struct {
	s *MemoryStore

	bookings    map[string]models.Booking
	newBookings []string
	drivers     map[string]models.Driver
	newDrivers  []string
	types       map[string]models.VehicleType
	newTypes    []string
}

func newTx(s *MemoryStore) *Tx {
	return &Tx{
		s:        s,
		bookings: make(map[string]models.Booking),
		drivers:  make(map[string]models.Driver),
		types:    make(map[string]models.VehicleType),
	}
}

func (tx *Tx) Booking(id string) (models.Booking, bool) {
	if b, ok := tx.bookings[id]; ok {
		return b.Clone(), true
	}
	b, ok := tx.s.bookings[id]
	return b.Clone(), ok
}

// HasBooking reports whether id was ever used, including staged bookings.
func (tx *Tx) HasBooking(id string) bool {
	_, ok := tx.Booking(id)
	return ok
}

func (tx *Tx) Bookings() []models.Booking {
	out := make([]models.Booking, 0, len(tx.s.bookingOrder)+len(tx.newBookings))
	for _, id := range tx.s.bookingOrder {
		b, _ := tx.Booking(id)
		out = append(out, b)
	}
	for _, id := range tx.newBookings {
		out = append(out, tx.bookings[id].Clone())
	}
	return out
}

// PutBooking stages b, stamping UpdatedAt.
func (tx *Tx) PutBooking(b models.Booking) {
	if !tx.HasBooking(b.ConfirmationNumber) {
		tx.newBookings = append(tx.newBookings, b.ConfirmationNumber)
	}
	b.UpdatedAt = time.Now().UTC()
	tx.bookings[b.ConfirmationNumber] = b.Clone()
}

func (tx *Tx) Driver(username string) (models.Driver, bool) {
	if d, ok := tx.drivers[username]; ok {
		return d.Clone(), true
	}
	d, ok := tx.s.drivers[username]
	return d.Clone(), ok
}

// DriverByName resolves a driver by display name, which the booking records.
func (tx *Tx) DriverByName(name string) (models.Driver, bool) {
	for _, d := range tx.Drivers() {
		if d.Name == name {
			return d, true
		}
	}
	return models.Driver{}, false
}

func (tx *Tx) Drivers() []models.Driver {
	out := make([]models.Driver, 0, len(tx.s.driverOrder)+len(tx.newDrivers))
	for _, u := range tx.s.driverOrder {
		d, _ := tx.Driver(u)
		out = append(out, d)
	}
	for _, u := range tx.newDrivers {
		out = append(out, tx.drivers[u].Clone())
	}
	return out
}

func (tx *Tx) PutDriver(d models.Driver) {
	if _, ok := tx.Driver(d.Username); !ok {
		tx.newDrivers = append(tx.newDrivers, d.Username)
	}
	tx.drivers[d.Username] = d.Clone()
}

// VehicleType looks a type up case-insensitively.
func (tx *Tx) VehicleType(name string) (models.VehicleType, bool) {
	for _, vt := range tx.VehicleTypes() {
		if strings.EqualFold(vt.Name, strings.TrimSpace(name)) {
			return vt, true
		}
	}
	return models.VehicleType{}, false
}

func (tx *Tx) VehicleTypes() []models.VehicleType {
	out := make([]models.VehicleType, 0, len(tx.s.typeOrder)+len(tx.newTypes))
	for _, n := range tx.s.typeOrder {
		if vt, ok := tx.types[n]; ok {
			out = append(out, vt.Clone())
			continue
		}
		out = append(out, tx.s.types[n].Clone())
	}
	for _, n := range tx.newTypes {
		out = append(out, tx.types[n].Clone())
	}
	return out
}

func (tx *Tx) PutVehicleType(vt models.VehicleType) {
	_, staged := tx.types[vt.Name]
	_, stored := tx.s.types[vt.Name]
	if !staged && !stored {
		tx.newTypes = append(tx.newTypes, vt.Name)
	}
	tx.types[vt.Name] = vt.Clone()
}

// Vehicle finds a vehicle by plate and returns the name of the type owning it.
func (tx *Tx) Vehicle(plate string) (models.Vehicle, string, bool) {
	for _, vt := range tx.VehicleTypes() {
		for _, v := range vt.Vehicles {
			if v.Plate == plate {
				return v, vt.Name, true
			}
		}
	}
	return models.Vehicle{}, "", false
}

func (tx *Tx) commit() []models.Booking {
	s := tx.s
	changed := make([]models.Booking, 0, len(tx.bookings))
	for id, b := range tx.bookings {
		s.bookings[id] = b
		changed = append(changed, b.Clone())
	}
	s.bookingOrder = append(s.bookingOrder, tx.newBookings...)
	for u, d := range tx.drivers {
		s.drivers[u] = d
	}
	s.driverOrder = append(s.driverOrder, tx.newDrivers...)
	for n, vt := range tx.types {
		s.types[n] = vt
	}
	s.typeOrder = append(s.typeOrder, tx.newTypes...)
	return changed
}
