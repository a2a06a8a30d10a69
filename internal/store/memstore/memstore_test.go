package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

// recorder collects snapshots delivered to a subscription.
type recorder struct {
	mu    sync.Mutex
	snaps []store.Snapshot
}

func (r *recorder) onNext(s store.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) last() (store.Snapshot, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return store.Snapshot{}, 0
	}
	return r.snaps[len(r.snaps)-1], len(r.snaps)
}

func texts(s store.Snapshot) []string {
	out := make([]string, 0, len(s.Records))
	for _, r := range s.Records {
		out = append(out, model.RowFromRecord(r).Text)
	}
	return out
}

// tickingClock returns strictly increasing timestamps.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprint(n)
	}
}

func TestSubscribe_DeliversInitialSnapshot(t *testing.T) {
	s := New()
	rec := &recorder{}

	sub, err := s.Subscribe(context.Background(), store.ProductsQuery(""), rec.onNext, func(error) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { _, n := rec.last(); return n >= 1 }, time.Second, 5*time.Millisecond)
	snap, _ := rec.last()
	assert.Empty(t, snap.Records)
}

func TestCreate_PushesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(tickingClock()), WithIDs(sequentialIDs()))
	rec := &recorder{}
	sub, err := s.Subscribe(ctx, store.ProductsQuery(""), rec.onNext, func(error) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for _, txt := range []string{"milk", "eggs", "bread"} {
		_, err := s.Create(ctx, store.DefaultCollection, store.Fields{
			store.FieldText: txt, store.FieldIsPurchased: false, store.FieldCreatedAt: store.ServerTimestamp,
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		snap, _ := rec.last()
		return len(snap.Records) == 3
	}, time.Second, 5*time.Millisecond)
	snap, _ := rec.last()
	assert.Equal(t, []string{"bread", "eggs", "milk"}, texts(snap))
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New(WithIDs(sequentialIDs()))
	id, err := s.Create(ctx, "products", store.Fields{store.FieldText: "eggs", store.FieldIsPurchased: false})
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	require.NoError(t, s.Update(ctx, "products", id, store.Fields{store.FieldIsPurchased: true}))

	rec := &recorder{}
	sub, err := s.Subscribe(ctx, store.ProductsQuery("products"), rec.onNext, func(error) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.Eventually(t, func() bool { _, n := rec.last(); return n >= 1 }, time.Second, 5*time.Millisecond)
	snap, _ := rec.last()
	require.Len(t, snap.Records, 1)
	assert.True(t, *snap.Records[0].IsPurchased)
	assert.Equal(t, "eggs", *snap.Records[0].Text)

	require.NoError(t, s.Delete(ctx, "products", id))
	require.NoError(t, s.Delete(ctx, "products", id), "deleting twice is a no-op")
	require.Eventually(t, func() bool { snap, _ := rec.last(); return len(snap.Records) == 0 }, time.Second, 5*time.Millisecond)
}

func TestUpdate_MissingRecord(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), "products", "nope", store.Fields{store.FieldIsPurchased: true})
	var nf *store.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestFailNext_RejectsOneWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("offline")
	s.FailNext(boom)

	_, err := s.Create(ctx, "products", store.Fields{store.FieldText: "x"})
	assert.ErrorIs(t, err, boom)

	_, err = s.Create(ctx, "products", store.Fields{store.FieldText: "x"})
	assert.NoError(t, err)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := &recorder{}
	sub, err := s.Subscribe(ctx, store.ProductsQuery(""), rec.onNext, func(error) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, n := rec.last(); return n >= 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	sub.Unsubscribe()
	_, before := rec.last()

	_, err = s.Create(ctx, store.DefaultCollection, store.Fields{store.FieldText: "late"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	_, after := rec.last()
	assert.Equal(t, before, after)
}

func TestClose(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Create(context.Background(), "products", store.Fields{})
	assert.ErrorIs(t, err, store.ErrClosed)
	_, err = s.Subscribe(context.Background(), store.ProductsQuery(""), func(store.Snapshot) {}, func(error) {})
	assert.ErrorIs(t, err, store.ErrClosed)
}
