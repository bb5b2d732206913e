package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/example/hotel-car-service/internal/logging"
)

func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("log line is not json: %q", sc.Text())
		}
		if rec["msg"] == "http request" {
			out = append(out, rec)
		}
	}
	return out
}

func TestAccessLogNamesBookingAndLevel(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServerWithLogger(t, logging.New(&buf, "booking-api", "debug"))
	b := createBooking(t, s, "10:00")
	call(t, s, http.MethodGet, "/api/v1/bookings/"+b.ConfirmationNumber, nil)
	call(t, s, http.MethodGet, "/api/v1/bookings/HCS-NOPE00", nil)

	lines := accessLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 access lines, got %d", len(lines))
	}
	created, found, missing := lines[0], lines[1], lines[2]
	if created["level"] != "INFO" || created["route"] != "/api/v1/bookings" || created["status"] != float64(http.StatusCreated) {
		t.Fatalf("unexpected create line %v", created)
	}
	if _, ok := created["confirmation_number"]; ok {
		t.Fatalf("create route has no booking id to log: %v", created)
	}
	if found["confirmation_number"] != b.ConfirmationNumber || found["level"] != "INFO" {
		t.Fatalf("unexpected lookup line %v", found)
	}
	if missing["confirmation_number"] != "HCS-NOPE00" || missing["level"] != "WARN" || missing["route"] != "/api/v1/bookings/{id}" {
		t.Fatalf("unexpected not-found line %v", missing)
	}
	if missing["request_id"] == "" || missing["service"] != "booking-api" {
		t.Fatalf("access line lacks request id or service: %v", missing)
	}
}

func TestAccessLogTagsDriver(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServerWithLogger(t, logging.New(&buf, "booking-api", "info"))
	call(t, s, http.MethodPost, "/api/v1/drivers/ghost/online", map[string]any{"secret": "x", "lat": 1, "lng": 1})

	lines := accessLines(t, &buf)
	if len(lines) != 1 || lines[0]["username"] != "ghost" || lines[0]["level"] != "WARN" {
		t.Fatalf("unexpected driver access line %v", lines)
	}
}

func TestRecoverWritesJSONError(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServerWithLogger(t, logging.New(&buf, "booking-api", "info"))
	s.mux.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := call(t, s, http.MethodGet, "/boom", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body["error"] != "internal error" {
		t.Fatalf("unexpected panic body %v (%v)", body, err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"panic recovered"`)) {
		t.Fatalf("panic was not logged: %s", buf.String())
	}
}
