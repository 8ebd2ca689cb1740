// Package location obtains a device position behind a permission handshake and
// optionally checks it against an area predicate before reporting success.
package location

import (
	"context"
	"sync"
	"sync/atomic"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/geo"
)

// Accuracy requested from the provider.
type Accuracy int

const (
	AccuracyLow Accuracy = iota
	AccuracyBalanced
	AccuracyHigh
)

// State of the acquisition state machine.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting-permission"
	StatePermissionGranted    State = "permission-granted"
	StatePermissionDenied     State = "permission-denied"
	StateLocating             State = "locating"
	StateLocated              State = "located"
	StateLocationError        State = "location-error"
)

// Permission is the cached outcome of the permission handshake.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

// Default user-facing messages.
const (
	DefaultOutsideAreaMessage = "Location is outside the allowed area"
	MsgPermissionDenied       = "Location permission was denied"
	MsgPermissionRequest      = "Unable to request location permission"
	MsgDeviceError            = "Unable to get your current location"
	MsgInvalidData            = "Received invalid location data"
)

// Provider is the device capability behind the service.
type Provider interface {
	RequestPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context, accuracy Accuracy) (geo.Point, error)
}

// Config holds callbacks and messages for a Service.
type Config struct {
	OutsideAreaMessage string
	OnSuccess          func(geo.Point)
	OnError            func(error)
}

// Service acquires the current position. At most one request is in flight;
// concurrent callers are turned away rather than queued.
type Service struct {
	provider Provider
	cfg      Config
	inFlight atomic.Bool

	mu         sync.Mutex
	permission Permission
	state      State
	last       *geo.Point
}

// NewService creates a location service over provider.
func NewService(provider Provider, cfg Config) *Service {
	if cfg.OutsideAreaMessage == "" {
		cfg.OutsideAreaMessage = DefaultOutsideAreaMessage
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		state:    StateIdle,
	}
}

// State returns the current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Permission returns the cached permission.
func (s *Service) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// LastLocation returns the last successfully obtained position, if any.
func (s *Service) LastLocation() *geo.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	p := *s.last
	return &p
}

// InFlight reports whether a location request is running.
func (s *Service) InFlight() bool {
	return s.inFlight.Load()
}

// RequestPermission asks for foreground location permission and caches the answer.
func (s *Service) RequestPermission(ctx context.Context) (bool, error) {
	s.setState(StateRequestingPermission)

	granted, err := s.provider.RequestPermission(ctx)
	if err != nil {
		s.setState(StateLocationError)
		return false, apperr.Wrap(apperr.KindDeviceError, MsgPermissionRequest, err)
	}

	s.mu.Lock()
	if granted {
		s.permission = PermissionGranted
		s.state = StatePermissionGranted
	} else {
		s.permission = PermissionDenied
		s.state = StatePermissionDenied
	}
	s.mu.Unlock()

	return granted, nil
}

// CurrentLocation fetches one balanced-accuracy position. When within is set,
// a position failing it is reported as out of bounds and OnSuccess is withheld.
//
// Returns (nil, nil) without touching any callback when another request is
// already in flight.
func (s *Service) CurrentLocation(ctx context.Context, within geo.Predicate) (*geo.Point, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, nil
	}
	defer s.inFlight.Store(false)

	if s.Permission() == PermissionUnknown {
		if _, err := s.RequestPermission(ctx); err != nil {
			return nil, s.fail(err)
		}
	}
	if s.Permission() == PermissionDenied {
		s.setState(StatePermissionDenied)
		return nil, s.fail(apperr.New(apperr.KindPermissionDenied, MsgPermissionDenied))
	}

	s.setState(StateLocating)
	p, err := s.provider.CurrentPosition(ctx, AccuracyBalanced)
	if err != nil {
		s.setState(StateLocationError)
		return nil, s.fail(apperr.Wrap(apperr.KindDeviceError, MsgDeviceError, err))
	}
	if err := p.Validate(); err != nil {
		s.setState(StateLocationError)
		return nil, s.fail(apperr.Wrap(apperr.KindInvalidData, MsgInvalidData, err))
	}
	if within != nil && !within(p) {
		s.setState(StateLocationError)
		return nil, s.fail(apperr.OutOfBounds(s.cfg.OutsideAreaMessage))
	}

	s.mu.Lock()
	s.state = StateLocated
	s.last = &p
	s.mu.Unlock()

	if s.cfg.OnSuccess != nil {
		s.cfg.OnSuccess(p)
	}
	return &p, nil
}

func (s *Service) fail(err error) error {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
	return err
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
