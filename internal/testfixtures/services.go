package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/events"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/roomlock"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// Backend is a store implementing every persistence contract.
type Backend interface {
	persistence.BranchRepository
	persistence.RoomRepository
	persistence.ScheduleStore
}

// ServicesConfig overrides collaborators of the wired services. Zero fields
// fall back to an in-memory store, a process-local lock, a recording
// publisher and no listing cache.
type ServicesConfig struct {
	Store       Backend
	Locks       application.RoomLocker
	Events      events.Publisher
	Cache       *application.ListingCache
	Metrics     application.Metrics
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Services bundles the application services wired by NewServices.
type Services struct {
	Store    Backend
	Events   *RecordingPublisher
	Cache    *application.ListingCache
	Bookings *application.BookingService
	Queries  *application.QueryService
	Rooms    *application.RoomService
}

// NewServices wires the booking, query and room services over one store.
func (f *ServiceFactory) NewServices(cfg ServicesConfig) *Services {
	store := cfg.Store
	if store == nil {
		store = memory.New()
	}
	locks := cfg.Locks
	if locks == nil {
		locks = roomlock.NewLocal()
	}
	recorder := &RecordingPublisher{}
	publisher := cfg.Events
	if publisher == nil {
		publisher = recorder
	}

	return &Services{
		Store:  store,
		Events: recorder,
		Cache:  cfg.Cache,
		Bookings: application.NewBookingService(application.BookingServiceDeps{
			Rooms:       store,
			Schedules:   store,
			Locks:       locks,
			Events:      publisher,
			Cache:       cfg.Cache,
			Metrics:     cfg.Metrics,
			IDGenerator: f.IDGenerator.NextFunc(),
			Now:         f.Clock.NowFunc(),
			LockTimeout: cfg.LockTimeout,
			Logger:      cfg.Logger,
		}),
		Queries: application.NewQueryService(store, store, cfg.Cache, cfg.Logger),
		Rooms:   application.NewRoomServiceWithLogger(store, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), cfg.Logger),
	}
}

// RecordingPublisher captures published events. Setting Err makes Publish fail
// after recording the attempt.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.BookingEvent
	Err    error
}

// Publish implements events.Publisher.
func (p *RecordingPublisher) Publish(_ context.Context, event events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Events returns a copy of the recorded events in publish order.
func (p *RecordingPublisher) Events() []events.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.BookingEvent, len(p.events))
	copy(out, p.events)
	return out
}

// SetErr changes the error returned by subsequent Publish calls.
func (p *RecordingPublisher) SetErr(err error) {
	p.mu.Lock()
	p.Err = err
	p.mu.Unlock()
}
