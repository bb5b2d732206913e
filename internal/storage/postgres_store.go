package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/hotel-car-service/internal/models"
)

// PostgresStore mirrors committed bookings into the bookings table for the
// history and audit views.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// SaveBooking upserts b. Older snapshots never overwrite newer ones, so
// writes from concurrent commits may arrive in any order.
func (p *PostgresStore) SaveBooking(ctx context.Context, b models.Booking) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO bookings(
		confirmation_number, guest_name, guest_phone, location, pickup_date, pickup_time,
		service_type, vehicle_type, estimated_fare, driver_name, driver_phone, assigned_vehicle,
		booking_status, driver_status, eta, payment_status, payment_id, created_at, updated_at)
	VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	ON CONFLICT (confirmation_number) DO UPDATE SET
		driver_name=EXCLUDED.driver_name, driver_phone=EXCLUDED.driver_phone,
		assigned_vehicle=EXCLUDED.assigned_vehicle, booking_status=EXCLUDED.booking_status,
		driver_status=EXCLUDED.driver_status, eta=EXCLUDED.eta,
		payment_status=EXCLUDED.payment_status, payment_id=EXCLUDED.payment_id,
		updated_at=EXCLUDED.updated_at
	WHERE bookings.updated_at <= EXCLUDED.updated_at`,
		b.ConfirmationNumber, b.GuestName, b.GuestPhone, b.Location, b.Date, b.Time,
		b.ServiceType, b.VehicleType, b.EstimatedFare, nullable(b.DriverName), nullable(b.DriverPhone), nullable(b.AssignedVehicle),
		string(b.BookingStatus), string(b.DriverStatus), b.ETA, string(b.PaymentStatus), nullable(b.PaymentID), b.CreatedAt, b.UpdatedAt)
	return err
}

// Migrate applies a schema script.
func (p *PostgresStore) Migrate(ctx context.Context, script string) error {
	_, err := p.db.ExecContext(ctx, script)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
