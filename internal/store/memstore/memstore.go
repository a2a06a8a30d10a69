// Package memstore is an in-process Record Store with live queries.
// It backs tests and the "memory" backend for offline demos.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs replaces the uuid id generator.
func WithIDs(next func() string) Option {
	return func(s *Store) { s.newID = next }
}

// Store keeps collections in memory. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	newID    func() string
	colls    map[string]map[string]model.Record
	subs     map[*subscription]struct{}
	failNext error
	closed   bool
}

var _ store.Store = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
		colls: map[string]map[string]model.Record{},
		subs:  map[*subscription]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FailNext makes the next write return err without applying it.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, onNext func(store.Snapshot), onErr func(error)) (store.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	sub := &subscription{
		q:      q,
		onNext: onNext,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	sub.release = func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}
	s.subs[sub] = struct{}{}
	sub.push(s.snapshotLocked(q))
	go sub.run(ctx)
	return sub, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return "", err
	}
	id := s.newID()
	rec := model.Record{ID: id}
	store.Apply(&rec, fields, s.now())
	s.collLocked(collection)[id] = rec
	s.publishLocked(collection)
	return id, nil
}

// Update sets the given fields. Updating a missing record is an error,
// as it is for a hosted document store.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	c := s.collLocked(collection)
	rec, ok := c[id]
	if !ok {
		return &store.NotFoundError{Collection: collection, ID: id}
	}
	store.Apply(&rec, fields, s.now())
	c[id] = rec
	s.publishLocked(collection)
	return nil
}

// Delete removes a record; a missing id is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	c := s.collLocked(collection)
	if _, ok := c[id]; !ok {
		return nil
	}
	delete(c, id)
	s.publishLocked(collection)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.closed = true
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}

// ---------------- internals ----------------

func (s *Store) checkLocked() error {
	if s.closed {
		return store.ErrClosed
	}
	if err := s.failNext; err != nil {
		s.failNext = nil
		return err
	}
	return nil
}

func (s *Store) collLocked(name string) map[string]model.Record {
	c, ok := s.colls[name]
	if !ok {
		c = map[string]model.Record{}
		s.colls[name] = c
	}
	return c
}

func (s *Store) snapshotLocked(q store.Query) store.Snapshot {
	c := s.colls[q.Collection]
	recs := make([]model.Record, 0, len(c))
	for _, r := range c {
		recs = append(recs, store.Clone(r))
	}
	store.SortRecords(recs, q)
	return store.Snapshot{Records: recs}
}

func (s *Store) publishLocked(collection string) {
	for sub := range s.subs {
		if sub.q.Collection == collection {
			sub.push(s.snapshotLocked(sub.q))
		}
	}
}

// subscription delivers snapshots on its own goroutine. Only the latest
// undelivered snapshot is kept.
type subscription struct {
	q       store.Query
	onNext  func(store.Snapshot)
	release func()

	mu      sync.Mutex
	pending *store.Snapshot
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) push(snap store.Snapshot) {
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case <-s.wake:
		}
		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		s.mu.Unlock()
		select {
		case <-s.done:
			return
		default:
		}
		if snap != nil {
			s.onNext(*snap)
		}
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.release()
	})
}
