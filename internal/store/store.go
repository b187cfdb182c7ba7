package store

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"go-der-dashboard/internal/metrics"
	"go-der-dashboard/internal/model"
)

// Op names the kind of mutation that produced an Event
type Op string

const (
	OpUpsert  Op = "upsert"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
)

// Event is delivered to observers of a type after a mutation has been fully applied.
// For OpRemove, Entities holds the removed entities. For OpReplace it holds the new collection.
type Event struct {
	Type     model.Type     `json:"type"`
	Op       Op             `json:"op"`
	IDs      []string       `json:"ids"`
	Entities []model.Entity `json:"entities"`
}

// Observer is called synchronously for every event of the type it subscribed to.
// Observers may read the store but must not mutate it from within the callback.
type Observer func(Event)

// Store is the in-memory model store: type -> id -> entity.
//
// Entities handed to the store become owned by it and must not be modified afterwards.
// Readers get the stored values and must treat them as read-only; Snapshot returns a
// private deep copy.
type Store struct {
	mu          sync.RWMutex
	collections map[model.Type]map[string]model.Entity

	// dispatchMu is taken before mu is released so observers see events in mutation order
	dispatchMu sync.Mutex

	subMu       sync.Mutex
	subscribers map[model.Type]map[uint64]Observer
	nextSubID   uint64

	log *zap.SugaredLogger
}

// New creates an empty store
func New(log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		collections: make(map[model.Type]map[string]model.Entity),
		subscribers: make(map[model.Type]map[uint64]Observer),
		log:         log,
	}
}

func validate(e model.Entity) error {
	if e == nil {
		return fmt.Errorf("%w: nil entity", model.ErrInvalidArgument)
	}
	if rv := reflect.ValueOf(e); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return fmt.Errorf("%w: nil entity", model.ErrInvalidArgument)
	}
	if e.EntityID() == "" {
		return fmt.Errorf("%w: %s entity without id", model.ErrInvalidArgument, e.EntityType())
	}
	if e.EntityType() == "" {
		return fmt.Errorf("%w: entity %q without type", model.ErrInvalidArgument, e.EntityID())
	}
	return nil
}

// UpsertOne inserts or replaces the entity stored under its (type, id)
func (s *Store) UpsertOne(e model.Entity) error {
	return s.UpsertMany([]model.Entity{e})
}

// UpsertMany inserts or replaces every entity. All entities are applied before any
// observer runs; observers get one event per type, in order of first appearance.
func (s *Store) UpsertMany(entities []model.Entity) error {
	for _, e := range entities {
		if err := validate(e); err != nil {
			return err
		}
	}
	if len(entities) == 0 {
		return nil
	}

	var order []model.Type
	events := make(map[model.Type]*Event)

	s.mu.Lock()
	for _, e := range entities {
		t := e.EntityType()
		coll, ok := s.collections[t]
		if !ok {
			coll = make(map[string]model.Entity)
			s.collections[t] = coll
		}
		coll[e.EntityID()] = e

		ev, ok := events[t]
		if !ok {
			ev = &Event{Type: t, Op: OpUpsert}
			events[t] = ev
			order = append(order, t)
		}
		ev.IDs = append(ev.IDs, e.EntityID())
		ev.Entities = append(ev.Entities, e)
	}
	for _, t := range order {
		metrics.StoreEntities.WithLabelValues(string(t)).Set(float64(len(s.collections[t])))
	}
	s.dispatchMu.Lock()
	s.mu.Unlock()

	for _, t := range order {
		s.dispatch(*events[t])
	}
	s.dispatchMu.Unlock()
	return nil
}

// MergeFunc decides what to store for an incoming entity given the one currently held.
// current is nil when the store has no entity under that key. Returning nil drops the
// incoming entity and leaves the store untouched for that key.
type MergeFunc func(current, incoming model.Entity) model.Entity

// MergeMany is UpsertMany with merge deciding, under the write lock, what each
// incoming entity becomes. It returns the entities actually stored.
func (s *Store) MergeMany(incoming []model.Entity, merge MergeFunc) ([]model.Entity, error) {
	if merge == nil {
		return nil, fmt.Errorf("%w: nil merge function", model.ErrInvalidArgument)
	}
	for _, e := range incoming {
		if err := validate(e); err != nil {
			return nil, err
		}
	}

	var (
		order   []model.Type
		applied []model.Entity
	)
	events := make(map[model.Type]*Event)

	s.mu.Lock()
	for _, e := range incoming {
		key := model.KeyOf(e)
		var current model.Entity
		if cur, ok := s.collections[key.Type][key.ID]; ok {
			current = cur
		}
		next := merge(current, e)
		if next == nil {
			continue
		}
		if model.KeyOf(next) != key {
			s.log.Errorw("Merge changed the entity key, dropping it", "key", key, "merged", model.KeyOf(next))
			continue
		}
		coll, ok := s.collections[key.Type]
		if !ok {
			coll = make(map[string]model.Entity)
			s.collections[key.Type] = coll
		}
		coll[key.ID] = next
		applied = append(applied, next)

		ev, ok := events[key.Type]
		if !ok {
			ev = &Event{Type: key.Type, Op: OpUpsert}
			events[key.Type] = ev
			order = append(order, key.Type)
		}
		ev.IDs = append(ev.IDs, key.ID)
		ev.Entities = append(ev.Entities, next)
	}
	if len(applied) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	for _, t := range order {
		metrics.StoreEntities.WithLabelValues(string(t)).Set(float64(len(s.collections[t])))
	}
	s.dispatchMu.Lock()
	s.mu.Unlock()

	for _, t := range order {
		s.dispatch(*events[t])
	}
	s.dispatchMu.Unlock()
	return applied, nil
}

// RemoveOne deletes the entity under key. Removing an absent entity is a no-op and
// produces no event.
func (s *Store) RemoveOne(key model.Key) {
	s.mu.Lock()
	coll := s.collections[key.Type]
	e, ok := coll[key.ID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(coll, key.ID)
	metrics.StoreEntities.WithLabelValues(string(key.Type)).Set(float64(len(coll)))
	s.dispatchMu.Lock()
	s.mu.Unlock()

	s.dispatch(Event{Type: key.Type, Op: OpRemove, IDs: []string{key.ID}, Entities: []model.Entity{e}})
	s.dispatchMu.Unlock()
}

// ReplaceAll swaps the whole collection of type t for entities.
// Every entity must be of type t.
func (s *Store) ReplaceAll(t model.Type, entities []model.Entity) error {
	coll := make(map[string]model.Entity, len(entities))
	for _, e := range entities {
		if err := validate(e); err != nil {
			return err
		}
		if e.EntityType() != t {
			return fmt.Errorf("%w: %s entity %q in %s collection", model.ErrInvalidArgument, e.EntityType(), e.EntityID(), t)
		}
		coll[e.EntityID()] = e
	}

	ev := Event{Type: t, Op: OpReplace, IDs: sortedIDs(coll)}
	for _, id := range ev.IDs {
		ev.Entities = append(ev.Entities, coll[id])
	}

	s.mu.Lock()
	s.collections[t] = coll
	metrics.StoreEntities.WithLabelValues(string(t)).Set(float64(len(coll)))
	s.dispatchMu.Lock()
	s.mu.Unlock()

	s.dispatch(ev)
	s.dispatchMu.Unlock()
	return nil
}

// GetOne returns the entity stored under (t, id)
func (s *Store) GetOne(t model.Type, id string) (model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.collections[t][id]
	return e, ok
}

// GetAll returns every entity of type t ordered by id
func (s *Store) GetAll(t model.Type) []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collections[t]
	out := make([]model.Entity, 0, len(coll))
	for _, id := range sortedIDs(coll) {
		out = append(out, coll[id])
	}
	return out
}

// Count returns the number of entities of type t
func (s *Store) Count(t model.Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[t])
}

// Snapshot returns a deep copy of the entity under (t, id), suitable for later restoration
func (s *Store) Snapshot(t model.Type, id string) (model.Entity, bool, error) {
	e, ok := s.GetOne(t, id)
	if !ok {
		return nil, false, nil
	}
	cp, err := Clone(e)
	if err != nil {
		return nil, false, err
	}
	return cp, true, nil
}

// Clone deep-copies an entity held behind a pointer
func Clone(e model.Entity) (model.Entity, error) {
	rt := reflect.TypeOf(e)
	if rt == nil || rt.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("%w: cannot clone %T", model.ErrInvalidArgument, e)
	}
	dst := reflect.New(rt)
	if err := deepcopy.Copy(dst.Interface(), e); err != nil {
		return nil, fmt.Errorf("clone %s: %w", model.KeyOf(e), err)
	}
	cp, ok := dst.Elem().Interface().(model.Entity)
	if !ok {
		return nil, fmt.Errorf("%w: clone of %T is not an entity", model.ErrInvalidArgument, e)
	}
	return cp, nil
}

// Subscribe registers fn for events of type t and returns a function that unsubscribes it
func (s *Store) Subscribe(t model.Type, fn Observer) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	if s.subscribers[t] == nil {
		s.subscribers[t] = make(map[uint64]Observer)
	}
	s.subscribers[t][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers[t], id)
			s.subMu.Unlock()
		})
	}
}

// dispatch runs observers of ev.Type in subscription order. Caller holds dispatchMu.
func (s *Store) dispatch(ev Event) {
	metrics.StoreMutations.WithLabelValues(string(ev.Type), string(ev.Op)).Inc()

	s.subMu.Lock()
	ids := make([]uint64, 0, len(s.subscribers[ev.Type]))
	for id := range s.subscribers[ev.Type] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.subscribers[ev.Type][id])
	}
	s.subMu.Unlock()

	for _, fn := range observers {
		s.notify(fn, ev)
	}
}

func (s *Store) notify(fn Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Observer panicked", "type", ev.Type, "op", ev.Op, "panic", r)
		}
	}()
	fn(ev)
}

func sortedIDs(coll map[string]model.Entity) []string {
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
