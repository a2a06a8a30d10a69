// Package dispatch turns user intents into single Record Store writes.
//
// Every write is best effort: failures are logged with a fixed message
// and swallowed, never retried, and never touch local view state. The
// list changes only when the next snapshot arrives.
package dispatch

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/metrics"
	"github.com/idilsaglam/shoplist/internal/store"
)

// Operation names, used as metric labels.
const (
	OpAdd    = "add"
	OpDelete = "delete"
	OpToggle = "toggle"
)

type Dispatcher struct {
	store      store.Store
	collection string
	log        *zap.Logger
	metrics    *metrics.Collector
}

func New(st store.Store, collection string, log *zap.Logger, m *metrics.Collector) *Dispatcher {
	if collection == "" {
		collection = store.DefaultCollection
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{store: st, collection: collection, log: log, metrics: m}
}

// Add creates a product from text. Blank text is ignored. It reports
// whether the write succeeded, i.e. whether the caller should clear its
// input buffer.
func (d *Dispatcher) Add(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	_, err := d.store.Create(ctx, d.collection, store.Fields{
		store.FieldText:        text,
		store.FieldIsPurchased: false,
		store.FieldCreatedAt:   store.ServerTimestamp,
	})
	d.metrics.ObserveWrite(OpAdd, err)
	if err != nil {
		d.log.Error("Failed to save product", zap.Error(err))
		return false
	}
	return true
}

// Delete removes the product. Missing ids are the store's business.
func (d *Dispatcher) Delete(ctx context.Context, id string) {
	err := d.store.Delete(ctx, d.collection, id)
	d.metrics.ObserveWrite(OpDelete, err)
	if err != nil {
		d.log.Error("Failed to delete product", zap.String("id", id), zap.Error(err))
	}
}

// TogglePurchased writes the negation of current, the status the caller
// last saw. There is no read-back: two quick toggles before a snapshot
// send the same value twice.
func (d *Dispatcher) TogglePurchased(ctx context.Context, id string, current bool) {
	err := d.store.Update(ctx, d.collection, id, store.Fields{
		store.FieldIsPurchased: !current,
	})
	d.metrics.ObserveWrite(OpToggle, err)
	if err != nil {
		d.log.Error("Failed to update product", zap.String("id", id), zap.Error(err))
	}
}
