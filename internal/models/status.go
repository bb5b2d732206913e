package models

import (
	"errors"
	"strings"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingAssigned  BookingStatus = "assigned"
	BookingCancelled BookingStatus = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid status")

func ParseBookingStatus(in string) (BookingStatus, error) {
	s := BookingStatus(strings.ToLower(strings.TrimSpace(in)))
	switch s {
	case BookingConfirmed, BookingAssigned, BookingCancelled:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// CanTransitionTo reports whether the booking state machine allows next.
// Re-assignment (assigned -> assigned) is allowed; cancelled is terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingConfirmed:
		return next == BookingAssigned || next == BookingCancelled
	case BookingAssigned:
		return next == BookingAssigned || next == BookingCancelled
	default:
		return false
	}
}

func (s BookingStatus) Terminal() bool { return s == BookingCancelled }

func (s BookingStatus) String() string { return string(s) }

// DriverStatus is shared by the driver toggle (online/offline) and the trip
// simulation on a booking (offline -> online -> arrived).
type DriverStatus string

const (
	DriverOffline DriverStatus = "offline"
	DriverOnline  DriverStatus = "online"
	DriverArrived DriverStatus = "arrived"
)

func (s DriverStatus) String() string { return string(s) }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) String() string { return string(s) }
