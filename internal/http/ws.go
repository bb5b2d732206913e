package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/hotel-car-service/internal/dispatch"
)

var upgrader = websocket.Upgrader{}

// handleTrackingWS streams position, arrival and cancellation pushes for one
// booking. The current snapshot is sent first so a late subscriber sees the
// latest state.
func (s *Server) handleTrackingWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b, err := s.bookings.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "confirmation_number", id, "error", err)
		return
	}
	sess := s.wsreg.Add(id, conn)
	defer func() {
		s.wsreg.Remove(id, sess)
		sess.Close()
	}()
	if err := sess.Send(dispatch.Message{Type: "snapshot", Booking: b}); err != nil {
		return
	}
	// reads only detect the guest going away; the session writer owns writes
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
