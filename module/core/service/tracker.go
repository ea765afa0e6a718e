package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Timiochukwu/iothub-geofence/module/core/domain"
	"github.com/Timiochukwu/iothub-geofence/module/core/geo"
	"github.com/Timiochukwu/iothub-geofence/module/core/internal/repository/database"
)

type applicableLister interface {
	ListApplicable(ctx context.Context, deviceID, userID string) ([]domain.Geofence, error)
}

type eventLog interface {
	Append(ctx context.Context, e *domain.GeofenceEvent) error
	Latest(ctx context.Context, deviceID, geofenceID string) (*domain.GeofenceEvent, error)
}

type transitionNotifier interface {
	NotifyTransition(ctx context.Context, e *domain.GeofenceEvent, g *domain.Geofence)
}

// TrackerService runs the containment state machine: one {Outside, Inside}
// pair of states per (device, geofence). The cache is derived from the
// event log and lives only for the process lifetime; on a cold pair it is
// rebuilt from the most recent persisted event, defaulting to Outside when
// none exists.
type TrackerService struct {
	geofences applicableLister
	events    eventLog
	devices   database.DeviceDirectory
	notifier  transitionNotifier

	mu     sync.Mutex
	states map[stateKey]bool

	lockMu      sync.Mutex
	deviceLocks map[string]*sync.Mutex
}

type stateKey struct {
	deviceID   string
	geofenceID string
}

func NewTrackerService(geofences applicableLister, events eventLog, devices database.DeviceDirectory, notifier transitionNotifier) *TrackerService {
	return &TrackerService{
		geofences:   geofences,
		events:      events,
		devices:     devices,
		notifier:    notifier,
		states:      make(map[stateKey]bool),
		deviceLocks: make(map[string]*sync.Mutex),
	}
}

// ProcessUpdate evaluates one position update against every applicable
// geofence. Updates for the same device are serialized; edge detection
// breaks if two samples for one device interleave. Different devices run
// concurrently.
func (t *TrackerService) ProcessUpdate(ctx context.Context, pos *domain.PositionUpdate) error {
	lock := t.deviceLock(pos.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	userID, err := t.devices.OwnerUserID(ctx, pos.DeviceID)
	if err != nil {
		return fmt.Errorf("resolve device %s: %w", pos.DeviceID, err)
	}

	geofences, err := t.geofences.ListApplicable(ctx, pos.DeviceID, userID)
	if err != nil {
		return fmt.Errorf("list applicable geofences: %w", err)
	}

	var firstErr error
	seen := make(map[string]struct{}, len(geofences))
	for i := range geofences {
		gf := &geofences[i]
		if _, dup := seen[gf.ID]; dup {
			continue
		}
		seen[gf.ID] = struct{}{}

		if err := t.evaluate(ctx, pos, gf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *TrackerService) evaluate(ctx context.Context, pos *domain.PositionUpdate, gf *domain.Geofence) error {
	nowInside := geo.Contains(gf, pos.Lat, pos.Lng)

	key := stateKey{deviceID: pos.DeviceID, geofenceID: gf.ID}
	wasInside, err := t.currentState(ctx, key)
	if err != nil {
		return fmt.Errorf("restore state %s/%s: %w", pos.DeviceID, gf.ID, err)
	}

	var transition domain.TransitionType
	var alert bool
	switch {
	case nowInside && !wasInside:
		transition = domain.TransitionEntry
		alert = gf.AlertOnEntry
	case !nowInside && wasInside:
		transition = domain.TransitionExit
		alert = gf.AlertOnExit
	default:
		return nil
	}

	// The cache moves on every crossing, alert flag or not. A disabled
	// flag suppresses the event, never the transition itself.
	t.setState(key, nowInside)

	if !alert {
		return nil
	}

	event := &domain.GeofenceEvent{
		ID:         uuid.NewString(),
		DeviceID:   pos.DeviceID,
		GeofenceID: gf.ID,
		Type:       transition,
		Lat:        pos.Lat,
		Lng:        pos.Lng,
		OccurredAt: pos.Timestamp,
	}

	// An append failure is surfaced as retryable; the in-memory transition
	// above stays applied and the cache self-heals from the log on restart.
	if err := t.events.Append(ctx, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	t.notifier.NotifyTransition(ctx, event, gf)
	return nil
}

func (t *TrackerService) currentState(ctx context.Context, key stateKey) (bool, error) {
	t.mu.Lock()
	inside, ok := t.states[key]
	t.mu.Unlock()
	if ok {
		return inside, nil
	}

	last, err := t.events.Latest(ctx, key.deviceID, key.geofenceID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		inside = false
	case err != nil:
		return false, err
	default:
		inside = last.Type == domain.TransitionEntry
	}

	t.setState(key, inside)
	return inside, nil
}

func (t *TrackerService) setState(key stateKey, inside bool) {
	t.mu.Lock()
	t.states[key] = inside
	t.mu.Unlock()
}

// ResetCache drops every cached containment state. The next update per
// pair reconstructs from the event log.
func (t *TrackerService) ResetCache() {
	t.mu.Lock()
	t.states = make(map[stateKey]bool)
	t.mu.Unlock()
}

func (t *TrackerService) deviceLock(deviceID string) *sync.Mutex {
	t.lockMu.Lock()
	defer t.lockMu.Unlock()
	lock, ok := t.deviceLocks[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		t.deviceLocks[deviceID] = lock
	}
	return lock
}
