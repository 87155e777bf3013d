package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/pkg/models"
)

// ErrNotFound is returned when a mutation targets an id the store does not
// hold.
var ErrNotFound = errors.New("order not found in store")

// LoadState tracks where the canonical list came from, or why it is absent.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StatePopulated
	StateAuthRequired
	StateDemoFallback
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	case StateAuthRequired:
		return "auth-required"
	case StateDemoFallback:
		return "demo-fallback"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type EventType string

const (
	EventReplaced EventType = "orders_replaced"
	EventCreated  EventType = "order_created"
	EventUpdated  EventType = "order_updated"
	EventDeleted  EventType = "order_deleted"
)

// Event describes a change to the canonical list. For EventDeleted only the
// OrderID is set; for EventReplaced neither order field is set.
type Event struct {
	Type     EventType     `json:"type"`
	OrderID  string        `json:"orderId,omitempty"`
	Order    *models.Order `json:"order,omitempty"`
	DemoMode bool          `json:"demoMode"`
}

// Store owns the canonical in-memory order list. Consumers derive filtered
// views and statistics from Snapshot; they never reach into the list
// directly. Change notifications go out on subscription channels.
type Store struct {
	mu       sync.RWMutex
	orders   []models.Order
	state    LoadState
	demoMode bool
	lastErr  error

	subs      map[int]chan Event
	nextSubID int
	disposed  bool

	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Store {
	return &Store{
		state:  StateIdle,
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a change listener. The returned cancel func must be
// called when the consumer goes away. Slow consumers lose events rather than
// blocking mutations.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, 32)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Dispose closes all subscription channels. The store is unusable for
// notifications afterwards; reads still work.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return
	}
	s.disposed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.logger.Info("Order store disposed")
}

// publish requires s.mu held.
func (s *Store) publish(ev Event) {
	ev.DemoMode = s.demoMode
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("Store subscriber channel full, dropping event")
		}
	}
}

// Snapshot returns a copy of the canonical list.
func (s *Store) Snapshot() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Store) Get(id string) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.orders {
		if s.orders[i].ID == id {
			return s.orders[i], true
		}
	}
	return models.Order{}, false
}

// ReplaceAll swaps in a freshly loaded list, clears any previous failure and
// settles the load state machine into Populated or DemoFallback.
func (s *Store) ReplaceAll(orders []models.Order, demo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make([]models.Order, len(orders))
	copy(s.orders, orders)
	s.demoMode = demo
	s.lastErr = nil
	if demo {
		s.state = StateDemoFallback
	} else {
		s.state = StatePopulated
	}

	s.logger.WithFields(logrus.Fields{
		"count":     len(orders),
		"demo_mode": demo,
	}).Info("Order store replaced")

	s.publish(Event{Type: EventReplaced})
}

// Upsert inserts or replaces one order by id.
func (s *Store) Upsert(order models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == order.ID {
			s.orders[i] = order
			s.publish(Event{Type: EventUpdated, OrderID: order.ID, Order: &order})
			return
		}
	}

	s.orders = append(s.orders, order)
	s.publish(Event{Type: EventCreated, OrderID: order.ID, Order: &order})
}

// ApplyPatch merges a partial JSON-style patch into an existing order and
// stamps UpdatedAt. Used for local-only mutation of fallback orders.
func (s *Store) ApplyPatch(id string, patch map[string]any) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID != id {
			continue
		}

		merged, err := mergePatch(s.orders[i], patch)
		if err != nil {
			return models.Order{}, err
		}

		merged.ID = id // the id is not patchable
		now := time.Now()
		merged.UpdatedAt = &now

		s.orders[i] = merged
		s.publish(Event{Type: EventUpdated, OrderID: id, Order: &merged})
		return merged, nil
	}

	return models.Order{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Remove drops an order by id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			s.publish(Event{Type: EventDeleted, OrderID: id})
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) State() LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) DemoMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.demoMode
}

func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// BeginLoading moves the state machine into Loading without touching the
// current list, so consumers keep rendering stale data during a refresh.
func (s *Store) BeginLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoading
}

// RequireAuth records an authentication failure. The list is left untouched
// and demo data is never substituted for an auth problem.
func (s *Store) RequireAuth(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthRequired
	s.lastErr = err
}

// Fail records a generic load failure.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.lastErr = err
}

// mergePatch round-trips the order through JSON so arbitrary camelCase patch
// keys land on the right fields, mirroring how the API patches records.
func mergePatch(order models.Order, patch map[string]any) (models.Order, error) {
	base, err := json.Marshal(order)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to marshal order for patch: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(base, &doc); err != nil {
		return models.Order{}, fmt.Errorf("failed to unmarshal order for patch: %w", err)
	}

	for key, value := range patch {
		doc[key] = value
	}

	remerged, err := json.Marshal(doc)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to marshal patched order: %w", err)
	}

	var merged models.Order
	if err := json.Unmarshal(remerged, &merged); err != nil {
		return models.Order{}, fmt.Errorf("failed to decode patched order: %w", err)
	}
	return merged, nil
}
