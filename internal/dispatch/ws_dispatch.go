package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/hotel-car-service/internal/models"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 16
)

var (
	ErrSessionClosed = errors.New("ws session closed")
	ErrSlowSession   = errors.New("ws session not keeping up")
)

// Message is pushed to guests following a booking.
type Message struct {
	Type    string         `json:"type"` // snapshot, position, arrived, cancelled
	Booking models.Booking `json:"booking"`
}

// WSSession is a connected guest tracking screen. Writes happen on the
// session's own goroutine; Send only queues.
type WSSession struct {
	conn      *websocket.Conn
	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSession(conn *websocket.Conn) *WSSession {
	s := &WSSession{conn: conn, send: make(chan Message, wsSendBuffer), done: make(chan struct{})}
	go s.writeLoop()
	return s
}

// Send queues msg without blocking. A session whose queue is full is too slow
// to follow the trip and gets ErrSlowSession.
func (s *WSSession) Send(msg Message) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSlowSession
	}
}

// Done is closed once the session stops writing.
func (s *WSSession) Done() <-chan struct{} { return s.done }

func (s *WSSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *WSSession) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.Close()
				return
			}
		}
	}
}

// WSRegistry holds tracking sessions keyed by confirmation number.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string][]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string][]*WSSession)} }

func (r *WSRegistry) Add(confirmationNumber string, conn *websocket.Conn) *WSSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := newWSSession(conn)
	r.sessions[confirmationNumber] = append(r.sessions[confirmationNumber], s)
	return s
}

func (r *WSRegistry) Remove(confirmationNumber string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.sessions[confirmationNumber]
	for i, cur := range list {
		if cur == s {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.sessions, confirmationNumber)
		return
	}
	r.sessions[confirmationNumber] = list
}

// Broadcast queues msg on every session of the booking. Sessions that are
// closed or too slow are closed and dropped. It never blocks on the network.
func (r *WSRegistry) Broadcast(confirmationNumber string, msg Message) error {
	r.mu.RLock()
	list := append([]*WSSession(nil), r.sessions[confirmationNumber]...)
	r.mu.RUnlock()
	if len(list) == 0 {
		return ErrNoSession
	}
	var firstErr error
	for _, s := range list {
		if err := s.Send(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.Close()
			r.Remove(confirmationNumber, s)
		}
	}
	return firstErr
}

func (r *WSRegistry) PositionChanged(ctx context.Context, b models.Booking) {
	_ = r.Broadcast(b.ConfirmationNumber, Message{Type: "position", Booking: b})
}

func (r *WSRegistry) Arrived(ctx context.Context, b models.Booking) {
	_ = r.Broadcast(b.ConfirmationNumber, Message{Type: "arrived", Booking: b})
}

// Cancelled tells guests the trip is off so they drop the last position.
func (r *WSRegistry) Cancelled(ctx context.Context, b models.Booking) {
	_ = r.Broadcast(b.ConfirmationNumber, Message{Type: "cancelled", Booking: b})
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
