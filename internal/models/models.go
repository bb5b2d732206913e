package models

import "time"

// Coord is a geographic position reported by the driver app.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point is a position on the tracking map, in percent of its width/height.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Vehicle struct {
	Plate string `json:"plate"`
	Model string `json:"model"`
}

type VehicleType struct {
	Name     string    `json:"name"`
	Capacity int       `json:"capacity"`
	Vehicles []Vehicle `json:"vehicles"`
}

type Driver struct {
	Name           string       `json:"name"`
	Phone          string       `json:"phone"`
	Username       string       `json:"username"`
	CredentialHash []byte       `json:"-"`
	Status         DriverStatus `json:"status"` // online or offline only
	Position       *Coord       `json:"position,omitempty"`
}

// CreateRequest is what the guest form submits.
type CreateRequest struct {
	GuestName   string `json:"guest_name" validate:"required"`
	GuestPhone  string `json:"guest_phone" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
	ServiceType string `json:"service_type" validate:"required"`
	VehicleType string `json:"vehicle_type" validate:"required"`
}

type Booking struct {
	ConfirmationNumber string `json:"confirmation_number"`

	GuestName     string `json:"guest_name"`
	GuestPhone    string `json:"guest_phone"`
	Location      string `json:"location"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ServiceType   string `json:"service_type"`
	VehicleType   string `json:"vehicle_type"`
	EstimatedFare int    `json:"estimated_fare"`

	DriverName      string `json:"driver_name,omitempty"`
	DriverPhone     string `json:"driver_phone,omitempty"`
	AssignedVehicle string `json:"assigned_vehicle,omitempty"`

	BookingStatus  BookingStatus `json:"booking_status"`
	DriverStatus   DriverStatus  `json:"driver_status"`
	DriverPosition *Point        `json:"driver_position,omitempty"`
	ETA            string        `json:"eta,omitempty"`

	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentID     string        `json:"payment_id,omitempty"`

	ConfirmationMessage   string `json:"confirmation_message,omitempty"`
	EstimatedTripDuration string `json:"estimated_trip_duration,omitempty"`
	EstimatedArrivalTime  string `json:"estimated_arrival_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the booking still holds its driver and vehicle.
func (b Booking) Active() bool {
	return b.BookingStatus != BookingCancelled
}

// Clone returns a copy that shares no pointers with b.
func (b Booking) Clone() Booking {
	if b.DriverPosition != nil {
		p := *b.DriverPosition
		b.DriverPosition = &p
	}
	return b
}

// Clone returns a copy that shares no pointers or slices with d.
func (d Driver) Clone() Driver {
	if d.Position != nil {
		p := *d.Position
		d.Position = &p
	}
	if d.CredentialHash != nil {
		d.CredentialHash = append([]byte(nil), d.CredentialHash...)
	}
	return d
}

func (vt VehicleType) Clone() VehicleType {
	vt.Vehicles = append([]Vehicle(nil), vt.Vehicles...)
	return vt
}

// Event is a booking lifecycle event published to the event log.
type Event struct {
	ID                 string        `json:"id"`
	Type               string        `json:"type"`
	ConfirmationNumber string        `json:"confirmation_number"`
	BookingStatus      BookingStatus `json:"booking_status"`
	DriverStatus       DriverStatus  `json:"driver_status"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	DriverName         string        `json:"driver_name,omitempty"`
	AssignedVehicle    string        `json:"assigned_vehicle,omitempty"`
	OccurredAt         time.Time     `json:"occurred_at"`
}

const (
	EventCreated   = "booking.created"
	EventAssigned  = "booking.assigned"
	EventCancelled = "booking.cancelled"
	EventPaid      = "booking.paid"
	EventArrived   = "booking.arrived"
)
