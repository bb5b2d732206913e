package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/hotel-car-service/internal/geo"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/storage"
)

// Tracker starts and stops trip simulations.
type Tracker interface {
	Start(confirmationNumber string) bool
	Stop(confirmationNumber string)
}

var validate = validator.New()

// Service manages drivers and the vehicle catalogue.
type Service struct {
	Store   *storage.MemoryStore
	Geo     geo.Geo
	Tracker Tracker
	Logger  *slog.Logger
}

// DefaultCatalogue is the hotel's fleet at startup.
func DefaultCatalogue() []models.VehicleType {
	return []models.VehicleType{
		{Name: "Standard", Capacity: 4, Vehicles: []models.Vehicle{
			{Plate: "MP20-CA-1101", Model: "Maruti Dzire"},
			{Plate: "MP20-CA-1102", Model: "Honda Amaze"},
		}},
		{Name: "SUV", Capacity: 6, Vehicles: []models.Vehicle{
			{Plate: "MP20-CB-2201", Model: "Toyota Innova Crysta"},
			{Plate: "MP20-CB-2202", Model: "Mahindra XUV700"},
		}},
	}
}

// AddVehicleType registers an empty type.
func (s *Service) AddVehicleType(ctx context.Context, name string, capacity int) (models.VehicleType, error) {
	name = strings.TrimSpace(name)
	if name == "" || capacity <= 0 {
		return models.VehicleType{}, models.Validationf("vehicle type needs a name and a positive capacity")
	}
	vt := models.VehicleType{Name: name, Capacity: capacity}
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		if _, ok := tx.VehicleType(name); ok {
			return models.Validationf("vehicle type %q already exists", name)
		}
		tx.PutVehicleType(vt)
		return nil
	})
	return vt, err
}

// AddVehicle adds a vehicle to a type. Plates are unique across all types.
func (s *Service) AddVehicle(ctx context.Context, typeName, plate, model string) (models.Vehicle, error) {
	v := models.Vehicle{Plate: strings.ToUpper(strings.TrimSpace(plate)), Model: strings.TrimSpace(model)}
	if v.Plate == "" {
		return models.Vehicle{}, models.Validationf("plate is required")
	}
	err := s.Store.Update(ctx, func(tx *storage.Tx) error {
		vt, ok := tx.VehicleType(typeName)
		if !ok {
			return models.Validationf("unknown vehicle type %q", typeName)
		}
		if _, owner, ok := tx.Vehicle(v.Plate); ok {
			return models.Validationf("plate %s already belongs to %s", v.Plate, owner)
		}
		vt.Vehicles = append(vt.Vehicles, v)
		tx.PutVehicleType(vt)
		return nil
	})
	return v, err
}

// Seed loads a catalogue, skipping types that already exist. Any other
// rejected entry fails the seed.
func (s *Service) Seed(ctx context.Context, catalogue []models.VehicleType) error {
	for _, vt := range catalogue {
		exists := false
		_ = s.Store.View(func(tx *storage.Tx) error {
			_, exists = tx.VehicleType(strings.TrimSpace(vt.Name))
			return nil
		})
		if exists {
			s.Logger.Debug("vehicle type already present, skipping seed", "vehicle_type", vt.Name)
			continue
		}
		if _, err := s.AddVehicleType(ctx, vt.Name, vt.Capacity); err != nil {
			return fmt.Errorf("seed vehicle type %q: %w", vt.Name, err)
		}
		for _, v := range vt.Vehicles {
			if _, err := s.AddVehicle(ctx, vt.Name, v.Plate, v.Model); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) VehicleTypes() []models.VehicleType { return s.Store.VehicleTypes() }

func (s *Service) Drivers() []models.Driver { return s.Store.Drivers() }

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Username string `json:"username" validate:"required"`
	Secret   string `json:"secret" validate:"required,min=4"`
}

// RegisterDriver adds an offline driver. Names and usernames are unique:
// bookings refer to drivers by name.
func (s *Service) RegisterDriver(ctx context.Context, req RegisterRequest) (models.Driver, error) {
	if err := validate.Struct(req); err != nil {
		return models.Driver{}, models.Validationf("%v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		return models.Driver{}, err
	}
	d := models.Driver{
		Name:           strings.TrimSpace(req.Name),
		Phone:          strings.TrimSpace(req.Phone),
		Username:       strings.TrimSpace(req.Username),
		CredentialHash: hash,
		Status:         models.DriverOffline,
	}
	err = s.Store.Update(ctx, func(tx *storage.Tx) error {
		if _, ok := tx.Driver(d.Username); ok {
			return models.Validationf("username %q is taken", d.Username)
		}
		if _, ok := tx.DriverByName(d.Name); ok {
			return models.Validationf("a driver named %q already exists", d.Name)
		}
		tx.PutDriver(d)
		return nil
	})
	if err != nil {
		return models.Driver{}, err
	}
	s.Logger.Info("driver registered", "username", d.Username)
	return d, nil
}

// Authenticate checks a driver's credential secret.
func (s *Service) Authenticate(username, secret string) (models.Driver, error) {
	d, ok := s.Store.Driver(username)
	if !ok {
		return models.Driver{}, models.NotFoundf("driver %q", username)
	}
	if err := bcrypt.CompareHashAndPassword(d.CredentialHash, []byte(secret)); err != nil {
		return models.Driver{}, models.Validationf("invalid credentials for %q", username)
	}
	return d, nil
}
