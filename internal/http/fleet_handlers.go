package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/hotel-car-service/internal/fleet"
	"github.com/example/hotel-car-service/internal/models"
)

func (s *Server) handleListVehicleTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.fleet.VehicleTypes()))
}

type vehicleTypeRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func (s *Server) handleAddVehicleType(w http.ResponseWriter, r *http.Request) {
	var req vehicleTypeRequest
	if !s.decode(w, r, &req) {
		return
	}
	vt, err := s.fleet.AddVehicleType(r.Context(), req.Name, req.Capacity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vt)
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	var req models.Vehicle
	if !s.decode(w, r, &req) {
		return
	}
	v, err := s.fleet.AddVehicle(r.Context(), mux.Vars(r)["name"], req.Plate, req.Model)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(s.fleet.Drivers()))
}

func (s *Server) handleRegisterDriver(w http.ResponseWriter, r *http.Request) {
	var req fleet.RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.fleet.RegisterDriver(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

type toggleRequest struct {
	Secret string  `json:"secret"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

func (s *Server) handleGoOnline(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !s.decode(w, r, &req) {
		return
	}
	username := mux.Vars(r)["username"]
	if _, err := s.fleet.Authenticate(username, req.Secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.fleet.GoOnline(r.Context(), username, models.Coord{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGoOffline(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !s.decode(w, r, &req) {
		return
	}
	username := mux.Vars(r)["username"]
	if _, err := s.fleet.Authenticate(username, req.Secret); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.fleet.GoOffline(r.Context(), username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil {
		s.writeError(w, r, models.Validationf("lat and lng are required numbers"))
		return
	}
	limit := 5
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, models.Validationf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	out, err := s.fleet.Nearby(r.Context(), models.Coord{Lat: lat, Lng: lng}, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}
