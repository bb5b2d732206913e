package tracking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/hotel-car-service/internal/eta"
	"github.com/example/hotel-car-service/internal/models"
	"github.com/example/hotel-car-service/internal/observability"
	"github.com/example/hotel-car-service/internal/storage"
)

const (
	DefaultTick     = time.Second
	DefaultDuration = 20 * time.Second
)

// Store is the part of the entity store the simulator writes through.
type Store interface {
	Update(ctx context.Context, fn func(tx *storage.Tx) error) error
}

// Notifier is told about every position change and, once per trip, about
// the arrival.
type Notifier interface {
	PositionChanged(ctx context.Context, b models.Booking)
	Arrived(ctx context.Context, b models.Booking)
}

type Options struct {
	Tick     time.Duration
	Duration time.Duration
	Path     Path
	Now      func() time.Time
}

// Simulator runs one periodic task per booking in a trip simulation.
type Simulator struct {
	store    Store
	notify   Notifier
	logger   *slog.Logger
	tick     time.Duration
	duration time.Duration
	path     Path
	now      func() time.Time

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	tasks    map[string]*task
	progress map[string]float64
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

var errIneligible = errors.New("booking not eligible for tracking")

func NewSimulator(store Store, notify Notifier, logger *slog.Logger, opts Options) *Simulator {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Path == nil {
		opts.Path = DefaultPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Simulator{
		store:    store,
		notify:   notify,
		logger:   logger,
		tick:     opts.Tick,
		duration: opts.Duration,
		path:     opts.Path,
		now:      opts.Now,
		base:     base,
		cancel:   cancel,
		tasks:    make(map[string]*task),
		progress: make(map[string]float64),
	}
}

// Start begins the trip simulation for a booking. A second Start while a task
// is running is ignored. A stopped trip resumes from its last progress.
func (s *Simulator) Start(confirmationNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[confirmationNumber]; ok || s.base.Err() != nil {
		return false
	}
	ctx, cancel := context.WithCancel(s.base)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.tasks[confirmationNumber] = t
	started := s.now().Add(-time.Duration(s.progress[confirmationNumber] * float64(s.duration)))
	observability.TrackingTasksActive.Inc()
	go s.run(ctx, confirmationNumber, started, t)
	return true
}

// Stop ends the task for a booking and returns once it has exited. After
// Stop returns no further tick is applied to the booking.
func (s *Simulator) Stop(confirmationNumber string) {
	s.mu.Lock()
	t := s.tasks[confirmationNumber]
	delete(s.tasks, confirmationNumber)
	s.mu.Unlock()
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Reset stops the task and forgets the trip's progress, so the next Start
// begins a new trip.
func (s *Simulator) Reset(confirmationNumber string) {
	s.Stop(confirmationNumber)
	s.mu.Lock()
	delete(s.progress, confirmationNumber)
	s.mu.Unlock()
}

// Running reports whether a task exists for the booking.
func (s *Simulator) Running(confirmationNumber string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[confirmationNumber]
	return ok
}

// Active returns the number of running tasks.
func (s *Simulator) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Shutdown stops every task and refuses new ones.
func (s *Simulator) Shutdown() {
	s.cancel()
	s.mu.Lock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Stop(id)
	}
}

func (s *Simulator) run(ctx context.Context, id string, started time.Time, t *task) {
	defer close(t.done)
	defer s.forget(id, t)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	if s.advance(ctx, id, started) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.advance(ctx, id, started) {
				return
			}
		}
	}
}

func (s *Simulator) forget(id string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[id] == t {
		delete(s.tasks, id)
	}
	observability.TrackingTasksActive.Dec()
}

// advance applies one tick and reports whether the task should end.
func (s *Simulator) advance(ctx context.Context, id string, started time.Time) bool {
	p := eta.Progress(s.now().Sub(started), s.duration)

	var updated models.Booking
	arrived := false
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, ok := tx.Booking(id)
		if !ok || !Eligible(tx, b) {
			return errIneligible
		}
		pos := s.path.At(p)
		b.DriverPosition = &pos
		b.ETA = eta.Describe(p)
		if p >= 1 {
			b.DriverStatus = models.DriverArrived
			arrived = true
		}
		tx.PutBooking(b)
		updated = b
		return nil
	})
	if err != nil {
		if errors.Is(err, errIneligible) {
			s.logger.Debug("tracking task ended", "confirmation_number", id, "reason", err.Error())
		}
		return true
	}

	s.mu.Lock()
	if p > s.progress[id] {
		s.progress[id] = p
	}
	s.mu.Unlock()

	if s.notify != nil {
		s.notify.PositionChanged(ctx, updated)
	}
	if arrived {
		observability.ArrivalsTotal.Inc()
		s.logger.Info("driver arrived", "confirmation_number", id, "driver_name", updated.DriverName)
		if s.notify != nil {
			s.notify.Arrived(ctx, updated)
		}
		return true
	}
	return false
}

// Eligible reports whether a booking may have a running trip simulation:
// it is active, its trip has started but not arrived, and its driver is
// online.
func Eligible(tx *storage.Tx, b models.Booking) bool {
	if !b.Active() || b.DriverName == "" || b.DriverStatus != models.DriverOnline {
		return false
	}
	d, ok := tx.DriverByName(b.DriverName)
	return ok && d.Status == models.DriverOnline
}
