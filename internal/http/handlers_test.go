package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/hotel-car-service/internal/assign"
	"github.com/example/hotel-car-service/internal/booking"
	"github.com/example/hotel-car-service/internal/dispatch"
	"github.com/example/hotel-car-service/internal/fleet"
	"github.com/example/hotel-car-service/internal/geo"
	"github.com/example/hotel-car-service/internal/matcher"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/payments"
	"github.com/example/hotel-car-service/internal/storage"
)

type noopTracker struct{}

func (noopTracker) Start(string) bool   { return true }
func (noopTracker) Stop(string)         {}
func (noopTracker) Reset(string)        {}
func (noopTracker) Running(string) bool { return false }

type fakeGateway struct {
	succeeded map[string]bool
}

func (f *fakeGateway) CreateIntent(_ context.Context, confirmationNumber string, fare int) (payments.Intent, error) {
	return payments.Intent{ID: "pi_" + confirmationNumber, ClientSecret: "secret", Amount: int64(fare) * 100, Currency: "inr"}, nil
}

func (f *fakeGateway) Succeeded(_ context.Context, paymentID string) (bool, error) {
	return f.succeeded[paymentID], nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithLogger(t, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServerWithLogger(t *testing.T, logger *slog.Logger) *Server {
	t.Helper()
	store := storage.NewMemoryStore(nil, logger)
	positions := geo.NewIndex()
	fl := &fleet.Service{Store: store, Geo: positions, Tracker: noopTracker{}, Logger: logger}
	if err := fl.Seed(context.Background(), fleet.DefaultCatalogue()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	as := &assign.Service{Store: store, Tracker: noopTracker{}, Logger: logger}
	wsreg := dispatch.NewWSRegistry()
	return NewServer(Deps{
		Bookings: &booking.Service{Store: store, Tracker: noopTracker{}, Watchers: wsreg, Logger: logger},
		Assign:   as,
		Fleet:    fl,
		Matcher:  &matcher.Service{Assign: as, Geo: positions, Store: store, DefaultSpeedMps: 10, TopN: 5},
		Origin:   models.Coord{Lat: 23.1815, Lng: 79.9864},
		Payments: &fakeGateway{succeeded: map[string]bool{"pi_ok": true}},
		WSReg:    wsreg,
		Trips:    noopTracker{},
		Logger:   logger,
	})
}

func call(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(v)
	default:
		b, _ := json.Marshal(v)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decodeBooking(t *testing.T, rr *httptest.ResponseRecorder) models.Booking {
	t.Helper()
	var b models.Booking
	if err := json.NewDecoder(rr.Body).Decode(&b); err != nil {
		t.Fatalf("decode booking: %v", err)
	}
	return b
}

func createBooking(t *testing.T, s *Server, clock string) models.Booking {
	t.Helper()
	rr := call(t, s, http.MethodPost, "/api/v1/bookings", models.CreateRequest{
		GuestName: "Asha Rao", GuestPhone: "9876543210", Location: "Jabalpur Airport",
		Date: "2024-06-01", Time: clock, ServiceType: "Pickup", VehicleType: "SUV",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	return decodeBooking(t, rr)
}

func onlineDriver(t *testing.T, s *Server, name, username string) {
	t.Helper()
	rr := call(t, s, http.MethodPost, "/api/v1/drivers", fleet.RegisterRequest{Name: name, Phone: "9000000000", Username: username, Secret: "s3cret"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = call(t, s, http.MethodPost, "/api/v1/drivers/"+username+"/online", map[string]any{"secret": "s3cret", "lat": 23.18, "lng": 79.95})
	if rr.Code != http.StatusOK {
		t.Fatalf("online: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBookingAssignmentFlow(t *testing.T) {
	s := newTestServer(t)
	first := createBooking(t, s, "10:00")
	second := createBooking(t, s, "10:30")
	if first.EstimatedFare != 885 {
		t.Fatalf("expected fare 885, got %d", first.EstimatedFare)
	}
	onlineDriver(t, s, "Ravi", "ravi")

	rr := call(t, s, http.MethodPost, "/api/v1/bookings/"+first.ConfirmationNumber+"/assign", assignRequest{DriverName: "Ravi", VehiclePlate: "MP20-CB-2201"})
	if rr.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if b := decodeBooking(t, rr); b.BookingStatus != models.BookingAssigned || b.DriverName != "Ravi" {
		t.Fatalf("unexpected booking %+v", b)
	}

	rr = call(t, s, http.MethodPost, "/api/v1/bookings/"+second.ConfirmationNumber+"/assign", assignRequest{DriverName: "Ravi", VehiclePlate: "MP20-CB-2202"})
	if rr.Code != http.StatusConflict || !strings.Contains(rr.Body.String(), "10:00–11:30") {
		t.Fatalf("expected 409 naming the window, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = call(t, s, http.MethodGet, "/api/v1/bookings/"+second.ConfirmationNumber+"/availability", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("availability: expected 200, got %d", rr.Code)
	}
	var av assign.Availability
	_ = json.NewDecoder(rr.Body).Decode(&av)
	if len(av.Drivers) != 1 || av.Drivers[0].State != assign.Conflicting {
		t.Fatalf("unexpected availability %+v", av)
	}

	rr = call(t, s, http.MethodPost, "/api/v1/bookings/"+first.ConfirmationNumber+"/cancel", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}
	rr = call(t, s, http.MethodPost, "/api/v1/bookings/"+second.ConfirmationNumber+"/assign", assignRequest{DriverName: "Ravi", VehiclePlate: "MP20-CB-2201"})
	if rr.Code != http.StatusOK {
		t.Fatalf("assign after cancel: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = call(t, s, http.MethodGet, "/api/v1/bookings?driver=Ravi", nil)
	var list []models.Booking
	_ = json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 || list[0].ConfirmationNumber != second.ConfirmationNumber {
		t.Fatalf("unexpected driver bookings %+v", list)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	b := createBooking(t, s, "10:00")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown booking", http.MethodGet, "/api/v1/bookings/HCS-NOPE00", nil, http.StatusNotFound},
		{"bad json", http.MethodPost, "/api/v1/bookings", "{", http.StatusBadRequest},
		{"missing fields", http.MethodPost, "/api/v1/bookings", models.CreateRequest{GuestName: "Asha"}, http.StatusBadRequest},
		{"unknown driver", http.MethodPost, "/api/v1/bookings/" + b.ConfirmationNumber + "/assign", assignRequest{DriverName: "Nobody", VehiclePlate: "MP20-CB-2201"}, http.StatusBadRequest},
		{"cancel unknown", http.MethodPost, "/api/v1/bookings/HCS-NOPE00/cancel", nil, http.StatusNotFound},
		{"empty payment id", http.MethodPost, "/api/v1/bookings/" + b.ConfirmationNumber + "/payment", paymentRequest{}, http.StatusBadRequest},
		{"bad nearby", http.MethodGet, "/api/v1/drivers/nearby?lat=x", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := call(t, s, tc.method, tc.path, tc.body)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	b := createBooking(t, s, "10:00")
	base := "/api/v1/bookings/" + b.ConfirmationNumber

	rr := call(t, s, http.MethodPost, base+"/payment-intent", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("intent: expected 201, got %d", rr.Code)
	}
	var intent payments.Intent
	_ = json.NewDecoder(rr.Body).Decode(&intent)
	if intent.Amount != 88500 {
		t.Fatalf("expected amount in minor units, got %d", intent.Amount)
	}

	if rr = call(t, s, http.MethodPost, base+"/payment", paymentRequest{PaymentID: "pi_pending"}); rr.Code != http.StatusConflict {
		t.Fatalf("unpaid intent: expected 409, got %d", rr.Code)
	}
	rr = call(t, s, http.MethodPost, base+"/payment", paymentRequest{PaymentID: "pi_ok"})
	if rr.Code != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if paid := decodeBooking(t, rr); paid.PaymentStatus != models.PaymentPaid || paid.PaymentID != "pi_ok" {
		t.Fatalf("payment not recorded: %+v", paid)
	}
	if rr = call(t, s, http.MethodPost, base+"/payment-intent", nil); rr.Code != http.StatusConflict {
		t.Fatalf("intent for paid booking: expected 409, got %d", rr.Code)
	}
}

func TestDriverToggleRequiresSecret(t *testing.T) {
	s := newTestServer(t)
	onlineDriver(t, s, "Ravi", "ravi")

	rr := call(t, s, http.MethodPost, "/api/v1/drivers/ravi/offline", map[string]string{"secret": "wrong"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad secret, got %d", rr.Code)
	}
	rr = call(t, s, http.MethodGet, "/api/v1/drivers/nearby?lat=23.18&lng=79.95", nil)
	var near []geo.Nearby
	_ = json.NewDecoder(rr.Body).Decode(&near)
	if len(near) != 1 {
		t.Fatalf("expected online driver nearby, got %+v", near)
	}

	rr = call(t, s, http.MethodPost, "/api/v1/drivers/ravi/offline", map[string]string{"secret": "s3cret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("offline: expected 200, got %d", rr.Code)
	}
	var d models.Driver
	_ = json.NewDecoder(rr.Body).Decode(&d)
	if d.Status != models.DriverOffline || d.Position != nil {
		t.Fatalf("unexpected driver %+v", d)
	}
	if strings.Contains(rr.Body.String(), "s3cret") {
		t.Fatalf("credential leaked in response")
	}
}

func TestRecommendation(t *testing.T) {
	s := newTestServer(t)
	b := createBooking(t, s, "10:00")
	onlineDriver(t, s, "Ravi", "ravi")

	rr := call(t, s, http.MethodGet, "/api/v1/bookings/"+b.ConfirmationNumber+"/recommendation", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var rec matcher.Recommendation
	_ = json.NewDecoder(rr.Body).Decode(&rec)
	if len(rec.Candidates) != 1 || rec.Candidates[0].DriverName != "Ravi" || rec.Vehicle != "MP20-CB-2201" {
		t.Fatalf("unexpected recommendation %+v", rec)
	}

	rr = call(t, s, http.MethodGet, "/api/v1/bookings/"+b.ConfirmationNumber+"/recommendation?lat=abc&lng=1", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad origin, got %d", rr.Code)
	}
}

func TestFareEndpoint(t *testing.T) {
	s := newTestServer(t)
	rr := call(t, s, http.MethodGet, "/api/v1/fare?location=Railway+Station&vehicle_type=Standard", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out struct {
		Tier  string `json:"tier"`
		Total int    `json:"total"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&out)
	if out.Tier != "station" || out.Total != 295 {
		t.Fatalf("unexpected fare %+v", out)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rr := call(t, s, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestCancelIsPushedToTrackingScreens(t *testing.T) {
	s := newTestServer(t)
	b := createBooking(t, s, "10:00")
	onlineDriver(t, s, "Ravi", "ravi")
	rr := call(t, s, http.MethodPost, "/api/v1/bookings/"+b.ConfirmationNumber+"/assign", assignRequest{DriverName: "Ravi", VehiclePlate: "MP20-CB-2201"})
	if rr.Code != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	srv := httptest.NewServer(s)
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/bookings/"+b.ConfirmationNumber, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg dispatch.Message
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "snapshot" {
		t.Fatalf("expected snapshot, got %+v (%v)", msg, err)
	}
	if msg.Booking.DriverName != "Ravi" {
		t.Fatalf("snapshot should carry the assignment, got %+v", msg.Booking)
	}

	rr = call(t, s, http.MethodPost, "/api/v1/bookings/"+b.ConfirmationNumber+"/cancel", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}
	msg = dispatch.Message{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read after cancel: %v", err)
	}
	if msg.Type != "cancelled" || msg.Booking.BookingStatus != models.BookingCancelled {
		t.Fatalf("expected cancelled push, got %+v", msg)
	}
	if msg.Booking.DriverPosition != nil || msg.Booking.ETA != "" || msg.Booking.DriverName != "" {
		t.Fatalf("cancelled push still carries trip data: %+v", msg.Booking)
	}
}

func TestListBookingsByStatus(t *testing.T) {
	s := newTestServer(t)
	kept := createBooking(t, s, "10:00")
	dropped := createBooking(t, s, "12:00")
	if rr := call(t, s, http.MethodPost, "/api/v1/bookings/"+dropped.ConfirmationNumber+"/cancel", nil); rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}

	rr := call(t, s, http.MethodGet, "/api/v1/bookings?status=%20Cancelled", nil)
	var list []models.Booking
	_ = json.NewDecoder(rr.Body).Decode(&list)
	if rr.Code != http.StatusOK || len(list) != 1 || list[0].ConfirmationNumber != dropped.ConfirmationNumber {
		t.Fatalf("unexpected cancelled list %d %+v", rr.Code, list)
	}

	rr = call(t, s, http.MethodGet, "/api/v1/bookings?status=confirmed", nil)
	list = nil
	_ = json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 || list[0].ConfirmationNumber != kept.ConfirmationNumber {
		t.Fatalf("unexpected confirmed list %+v", list)
	}

	if rr := call(t, s, http.MethodGet, "/api/v1/bookings?status=parked", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestTrackingState(t *testing.T) {
	s := newTestServer(t)
	b := createBooking(t, s, "10:00")

	rr := call(t, s, http.MethodGet, "/api/v1/bookings/"+b.ConfirmationNumber+"/tracking", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("tracking: expected 200, got %d", rr.Code)
	}
	var got trackingResponse
	_ = json.NewDecoder(rr.Body).Decode(&got)
	if got.ConfirmationNumber != b.ConfirmationNumber || got.Running || got.DriverPosition != nil {
		t.Fatalf("unexpected tracking state %+v", got)
	}
	if rr := call(t, s, http.MethodGet, "/api/v1/bookings/HCS-NOPE00/tracking", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
