// Package jsonstore is a Record Store kept in a single JSON file.
// Writers from any process serialize on a sibling lock file; readers
// follow the file with fsnotify, so every process sharing the file sees
// each other's changes live.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

const (
	DefaultFileName   = "shoplist.json"
	lockRetryInterval = 20 * time.Millisecond
)

// database is the on-disk shape: collection -> id -> record.
type database map[string]map[string]model.Record

// Option configures a Store.
type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

type Store struct {
	path  string
	lock  *flock.Flock
	now   func() time.Time
	newID func() string
	log   *zap.Logger

	mu     sync.Mutex // serializes writers inside this process
	subsMu sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var _ store.Store = (*Store)(nil)

// New opens (without creating) the store file at path.
func New(path string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	s := &Store{
		path:  abs,
		lock:  flock.New(abs + ".lock"),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
		log:   zap.NewNop(),
		subs:  map[*subscription]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Path is the absolute file location.
func (s *Store) Path() string { return s.path }

// -------------- file IO ----------------

func (s *Store) load() (database, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return database{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(b) == 0 {
		return database{}, nil
	}
	var db database
	if err := json.Unmarshal(b, &db); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if db == nil {
		db = database{}
	}
	for _, c := range db {
		for id, r := range c {
			r.ID = id
			c[id] = r
		}
	}
	return db, nil
}

// save replaces the file atomically so watchers never read half a write.
func (s *Store) save(db database) error {
	b, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// mutate runs fn under both locks and saves when fn reports a change.
func (s *Store) mutate(ctx context.Context, fn func(db database) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subsMu.Lock()
	closed := s.closed
	s.subsMu.Unlock()
	if closed {
		return store.ErrClosed
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock: %s busy", s.lock.Path())
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.log.Warn("unlock failed", zap.String("path", s.lock.Path()), zap.Error(err))
		}
	}()

	db, err := s.load()
	if err != nil {
		return err
	}
	changed, err := fn(db)
	if err != nil || !changed {
		return err
	}
	return s.save(db)
}

func (db database) coll(name string) map[string]model.Record {
	c, ok := db[name]
	if !ok {
		c = map[string]model.Record{}
		db[name] = c
	}
	return c
}

// -------------- writes ----------------

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	id := s.newID()
	err := s.mutate(ctx, func(db database) (bool, error) {
		rec := model.Record{ID: id}
		store.Apply(&rec, fields, s.now())
		db.coll(collection)[id] = rec
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	return s.mutate(ctx, func(db database) (bool, error) {
		c := db.coll(collection)
		rec, ok := c[id]
		if !ok {
			return false, &store.NotFoundError{Collection: collection, ID: id}
		}
		store.Apply(&rec, fields, s.now())
		c[id] = rec
		return true, nil
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.mutate(ctx, func(db database) (bool, error) {
		c := db.coll(collection)
		if _, ok := c[id]; !ok {
			return false, nil
		}
		delete(c, id)
		return true, nil
	})
}

// -------------- live queries ----------------

func (s *Store) snapshot(q store.Query) (store.Snapshot, error) {
	db, err := s.load()
	if err != nil {
		return store.Snapshot{}, err
	}
	c := db[q.Collection]
	recs := make([]model.Record, 0, len(c))
	for _, r := range c {
		recs = append(recs, r)
	}
	store.SortRecords(recs, q)
	return store.Snapshot{Records: recs}, nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, onNext func(store.Snapshot), onErr func(error)) (store.Subscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	// Watch the directory: saves replace the file by rename.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	sub := &subscription{
		s:       s,
		q:       q,
		watcher: w,
		onNext:  onNext,
		onErr:   onErr,
		done:    make(chan struct{}),
	}

	s.subsMu.Lock()
	if s.closed {
		s.subsMu.Unlock()
		w.Close()
		return nil, store.ErrClosed
	}
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()

	go sub.run(ctx)
	return sub, nil
}

func (s *Store) Close() error {
	s.subsMu.Lock()
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subsMu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return nil
}

type subscription struct {
	s       *Store
	q       store.Query
	watcher *fsnotify.Watcher
	onNext  func(store.Snapshot)
	onErr   func(error)
	done    chan struct{}
	once    sync.Once
}

func (sub *subscription) run(ctx context.Context) {
	defer sub.watcher.Close()

	sub.emit()
	for {
		select {
		case <-sub.done:
			return
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case ev, ok := <-sub.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != sub.s.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				sub.emit()
			}
		case err, ok := <-sub.watcher.Errors:
			if !ok {
				return
			}
			sub.deliverErr(fmt.Errorf("watch: %w", err))
		}
	}
}

func (sub *subscription) emit() {
	snap, err := sub.s.snapshot(sub.q)
	if err != nil {
		sub.deliverErr(err)
		return
	}
	select {
	case <-sub.done:
		return
	default:
	}
	sub.onNext(snap)
}

func (sub *subscription) deliverErr(err error) {
	select {
	case <-sub.done:
		return
	default:
	}
	if sub.onErr != nil {
		sub.onErr(err)
	}
}

func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		close(sub.done)
		sub.s.subsMu.Lock()
		delete(sub.s.subs, sub)
		sub.s.subsMu.Unlock()
	})
}
