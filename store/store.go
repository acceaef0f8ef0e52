package store

import (
	"fmt"
	"sync"

	"ssiflow/internal/model"
	"ssiflow/logger"
)

// ErrReservedKey is returned when a caller tries to register the subscription
// wildcard "ALL" as a concrete business key. Configuration must enumerate
// symbols explicitly.
var ErrReservedKey = fmt.Errorf("key %q is reserved and cannot be registered", model.ReservedKeyAll)

// Result classifies the outcome of one Submit call.
type Result int

const (
	// Accepted means the event superseded the current snapshot and was
	// appended to history.
	Accepted Result = iota
	// Rejected means the event failed the channel's acceptance predicate.
	// Routine under at-least-once redelivery; nothing was mutated.
	Rejected
	// Unregistered means the event's key was never registered. Expected for
	// late data on delisted or unsubscribed symbols; nothing was mutated.
	Unregistered
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Unregistered:
		return "unregistered"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Observation is a channel event that knows its own business key.
type Observation interface {
	Key() string
}

// AcceptFunc decides whether incoming supersedes current. Channel-specific
// monotonicity rules live on the model types; the store only applies them.
type AcceptFunc[T Observation] func(incoming, current T) bool

type entry[T Observation] struct {
	mu      sync.RWMutex
	current T
	history []T
}

// Store holds, for one channel, the mapping from business key to the latest
// reconciled snapshot and the append-only history of accepted observations.
// Submit runs on the stream delivery goroutine concurrently with Current and
// History on reader goroutines; each key has its own lock so replace-and-append
// is never observed half done.
type Store[T Observation] struct {
	channel model.ChannelID
	accept  AcceptFunc[T]
	metrics *Metrics
	log     *logger.Log

	mu      sync.RWMutex
	entries map[string]*entry[T]
}

// New creates an empty store for one channel. metrics may be shared across
// stores; a nil metrics gets a private instance.
func New[T Observation](channel model.ChannelID, accept AcceptFunc[T], metrics *Metrics) *Store[T] {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Store[T]{
		channel: channel,
		accept:  accept,
		metrics: metrics,
		log:     logger.GetLogger(),
		entries: make(map[string]*entry[T]),
	}
}

// Channel returns the channel this store reconciles.
func (s *Store[T]) Channel() model.ChannelID { return s.channel }

// Metrics returns the observability counters attached to this store.
func (s *Store[T]) Metrics() *Metrics { return s.metrics }

// Register idempotently creates a zero-valued snapshot and empty history for
// key. Called once per configured symbol at startup, before any stream runs.
func (s *Store[T]) Register(key string) error {
	if key == model.ReservedKeyAll {
		return ErrReservedKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		s.entries[key] = &entry[T]{}
	}
	return nil
}

// Registered reports whether key has been registered on this store.
func (s *Store[T]) Registered(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// Keys returns the registered business keys in no particular order.
func (s *Store[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Submit applies the acceptance predicate to v against the current snapshot
// for its key. Accepted events replace the snapshot and append to history
// atomically. Rejected and unregistered events leave all state untouched.
func (s *Store[T]) Submit(v T) Result {
	key := v.Key()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		s.metrics.unregistered.Add(1)
		s.log.WithComponent("store").WithFields(logger.Fields{
			"channel": string(s.channel),
			"key":     key,
		}).Warn("event for unregistered key dropped")
		return Unregistered
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !s.accept(v, e.current) {
		s.metrics.rejected.Add(1)
		s.log.WithComponent("store").WithFields(logger.Fields{
			"channel": string(s.channel),
			"key":     key,
		}).Warn("duplicate or stale event rejected")
		return Rejected
	}
	e.current = v
	e.history = append(e.history, v)
	s.metrics.accepted.Add(1)
	return Accepted
}

// Current returns the latest accepted snapshot for key. A registered key that
// has never been updated, or an unknown key, yields the zero value: callers
// treat a zero trading timestamp as "no data yet", not as an error.
func (s *Store[T]) Current(key string) T {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// History returns a copy of the accepted sequence for key, ordered by
// acceptance. Safe to call concurrently with Submit.
func (s *Store[T]) History(key string) []T {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]T, len(e.history))
	copy(out, e.history)
	return out
}
