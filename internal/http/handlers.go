package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/hotel-car-service/internal/assign"
	"github.com/example/hotel-car-service/internal/booking"
	"github.com/example/hotel-car-service/internal/dispatch"
	"github.com/example/hotel-car-service/internal/fare"
	"github.com/example/hotel-car-service/internal/fleet"
	"github.com/example/hotel-car-service/internal/matcher"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/payments"
)

// TripStatus reports whether a booking has a live trip simulation.
type TripStatus interface {
	Running(confirmationNumber string) bool
}

// Deps are the services the API exposes. Matcher, Payments, Trips and Ready
// are optional.
type Deps struct {
	Bookings *booking.Service
	Assign   *assign.Service
	Fleet    *fleet.Service
	Matcher  *matcher.Service
	Origin   models.Coord // default pickup point for recommendations
	Payments payments.Gateway
	WSReg    *dispatch.WSRegistry
	Trips    TripStatus
	Ready    func(ctx context.Context) error
	Logger   *slog.Logger
}

type Server struct {
	bookings *booking.Service
	assign   *assign.Service
	fleet    *fleet.Service
	matcher  *matcher.Service
	origin   models.Coord
	payments payments.Gateway
	wsreg    *dispatch.WSRegistry
	trips    TripStatus
	ready    func(ctx context.Context) error
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		bookings: d.Bookings,
		assign:   d.Assign,
		fleet:    d.Fleet,
		matcher:  d.Matcher,
		origin:   d.Origin,
		payments: d.Payments,
		wsreg:    d.WSReg,
		trips:    d.Trips,
		ready:    d.Ready,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/bookings", s.handleCreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings", s.handleListBookings).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", s.handleGetBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/assign", s.handleAssign).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/availability", s.handleAvailability).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/tracking", s.handleTracking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/recommendation", s.handleRecommend).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/payment-intent", s.handlePaymentIntent).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/payment", s.handleMarkPaid).Methods(http.MethodPost)
	api.HandleFunc("/fare", s.handleFare).Methods(http.MethodGet)

	api.HandleFunc("/vehicle-types", s.handleListVehicleTypes).Methods(http.MethodGet)
	api.HandleFunc("/vehicle-types", s.handleAddVehicleType).Methods(http.MethodPost)
	api.HandleFunc("/vehicle-types/{name}/vehicles", s.handleAddVehicle).Methods(http.MethodPost)

	api.HandleFunc("/drivers", s.handleListDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers", s.handleRegisterDriver).Methods(http.MethodPost)
	api.HandleFunc("/drivers/nearby", s.handleNearby).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{username}/online", s.handleGoOnline).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{username}/offline", s.handleGoOffline).Methods(http.MethodPost)

	s.mux.HandleFunc("/ws/bookings/{id}", s.handleTrackingWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	b, err := s.bookings.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var list []models.Booking
	if driver := strings.TrimSpace(q.Get("driver")); driver != "" {
		list = s.bookings.ListByDriver(driver)
	} else {
		list = s.bookings.List()
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseBookingStatus(raw)
		if err != nil {
			s.writeError(w, r, models.Validationf("%v %q", err, raw))
			return
		}
		filtered := list[:0]
		for _, b := range list {
			if b.BookingStatus == status {
				filtered = append(filtered, b)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

type trackingResponse struct {
	ConfirmationNumber string              `json:"confirmation_number"`
	Running            bool                `json:"running"`
	DriverStatus       models.DriverStatus `json:"driver_status"`
	DriverPosition     *models.Point       `json:"driver_position,omitempty"`
	ETA                string              `json:"eta,omitempty"`
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := trackingResponse{
		ConfirmationNumber: b.ConfirmationNumber,
		DriverStatus:       b.DriverStatus,
		DriverPosition:     b.DriverPosition,
		ETA:                b.ETA,
	}
	if s.trips != nil {
		resp.Running = s.trips.Running(b.ConfirmationNumber)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type assignRequest struct {
	DriverName   string `json:"driver_name"`
	VehiclePlate string `json:"vehicle_plate"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !s.decode(w, r, &req) {
		return
	}
	b, err := s.assign.Assign(r.Context(), mux.Vars(r)["id"], req.DriverName, req.VehiclePlate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	av, err := s.assign.Availability(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

// handleRecommend ranks free drivers for a booking. lat/lng override the
// configured pickup origin.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if s.matcher == nil {
		http.Error(w, "recommendations not configured", http.StatusServiceUnavailable)
		return
	}
	origin := s.origin
	q := r.URL.Query()
	if q.Get("lat") != "" || q.Get("lng") != "" {
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
		if err1 != nil || err2 != nil {
			s.writeError(w, r, models.Validationf("lat and lng must both be numbers"))
			return
		}
		origin = models.Coord{Lat: lat, Lng: lng}
	}
	rec, err := s.matcher.Recommend(r.Context(), mux.Vars(r)["id"], origin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePaymentIntent(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		http.Error(w, "payments not configured", http.StatusServiceUnavailable)
		return
	}
	b, err := s.bookings.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if b.PaymentStatus == models.PaymentPaid {
		s.writeError(w, r, models.Conflictf("booking %s is already paid", b.ConfirmationNumber))
		return
	}
	intent, err := s.payments.CreateIntent(r.Context(), b.ConfirmationNumber, b.EstimatedFare)
	if err != nil {
		s.logger.Error("payment intent failed", "confirmation_number", b.ConfirmationNumber, "error", err)
		http.Error(w, "payment provider unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

type paymentRequest struct {
	PaymentID string `json:"payment_id"`
}

// handleMarkPaid records a payment. With a gateway configured the payment id
// must refer to a completed payment.
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	if s.payments != nil && strings.TrimSpace(req.PaymentID) != "" {
		ok, err := s.payments.Succeeded(r.Context(), req.PaymentID)
		if err != nil {
			s.logger.Error("payment lookup failed", "confirmation_number", id, "payment_id", req.PaymentID, "error", err)
			http.Error(w, "payment provider unavailable", http.StatusBadGateway)
			return
		}
		if !ok {
			s.writeError(w, r, models.Conflictf("payment %s has not succeeded", req.PaymentID))
			return
		}
	}
	b, err := s.bookings.MarkPaid(r.Context(), id, req.PaymentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleFare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, fare.Explain(q.Get("location"), q.Get("vehicle_type")))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(200)
	w.Write([]byte("ready"))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps error kinds to status codes. Anything unclassified is a
// server fault and gets logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	default:
		s.logger.Error("request failed", "route", routeTemplate(r), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
