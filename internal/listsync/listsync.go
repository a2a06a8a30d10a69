// Package listsync mirrors a live Record Store query into an ordered
// slice of view rows.
//
// The Synchronizer owns exactly one subscription between Start and Stop.
// Each snapshot replaces the rows wholesale; errors are logged and leave
// the rows as they were. Once Stop returns, no snapshot is applied and
// no OnChange call is running or pending. A stopped Synchronizer cannot be
// started again.
package listsync

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/metrics"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

var (
	ErrAlreadyStarted = errors.New("listsync: already started")
	ErrStopped        = errors.New("listsync: stopped")
)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// OnChange is called with the new rows after every applied snapshot.
// It runs on the store's delivery goroutine, outside the rows lock. Stop
// waits for a running call to return, so fn must not call Stop.
func OnChange(fn func([]model.Row)) Option {
	return func(s *Synchronizer) { s.onChange = fn }
}

// OnError is called after a subscription error has been logged.
func OnError(fn func(error)) Option {
	return func(s *Synchronizer) { s.onError = fn }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Synchronizer) { s.metrics = c }
}

type Synchronizer struct {
	store    store.Store
	query    store.Query
	log      *zap.Logger
	metrics  *metrics.Collector
	onChange func([]model.Row)
	onError  func(error)

	// deliver serializes apply with the tail of Stop.
	deliver sync.Mutex

	mu      sync.Mutex
	rows    []model.Row
	started bool
	stopped bool
	live    bool
	sub     store.Subscription
	stop    sync.Once
}

func New(st store.Store, q store.Query, log *zap.Logger, opts ...Option) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Synchronizer{
		store: st,
		query: q,
		log:   log,
		rows:  []model.Row{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start opens the live query. It may be called once, and not after Stop.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.live = true
	s.mu.Unlock()

	sub, err := s.store.Subscribe(ctx, s.query, s.apply, s.fail)
	if err != nil {
		s.mu.Lock()
		s.live = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		// Stop ran while Subscribe was in progress.
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	return nil
}

// Stop closes the subscription exactly once. Safe to call without Start,
// and more than once; either way a later Start returns ErrStopped.
func (s *Synchronizer) Stop() {
	s.stop.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.live = false
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		// Wait out a delivery that passed the liveness check.
		s.deliver.Lock()
		s.deliver.Unlock()
	})
}

// Rows returns the current view rows. The slice is never mutated after
// being handed out.
func (s *Synchronizer) Rows() []model.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

func (s *Synchronizer) apply(snap store.Snapshot) {
	rows := model.Rows(snap.Records)

	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		s.log.Debug("discarding snapshot after stop", zap.Int("records", len(rows)))
		return
	}
	s.rows = rows
	s.mu.Unlock()

	s.metrics.ObserveSnapshot()
	if s.onChange != nil {
		s.onChange(rows)
	}
}

func (s *Synchronizer) fail(err error) {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()
	if !live {
		return
	}
	s.log.Error("onSnapshot error", zap.String("collection", s.query.Collection), zap.Error(err))
	s.metrics.ObserveSubscriptionError()
	if s.onError != nil {
		s.onError(err)
	}
}

// First subscribes, waits for one snapshot and unsubscribes. One-shot CLI
// commands use it to read the current list.
func First(ctx context.Context, st store.Store, q store.Query) ([]model.Row, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		rows []model.Row
		err  error
	}
	ch := make(chan result, 1)
	send := func(r result) {
		select {
		case ch <- r:
		default:
		}
	}

	sub, err := st.Subscribe(ctx, q,
		func(snap store.Snapshot) { send(result{rows: model.Rows(snap.Records)}) },
		func(err error) { send(result{err: err}) },
	)
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	select {
	case r := <-ch:
		return r.rows, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
