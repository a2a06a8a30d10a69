// Package store defines the Record Store contract the app talks to.
// Implementations live in subpackages: memstore, jsonstore, firestore.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/idilsaglam/shoplist/internal/model"
)

// Collection and field names used by the app.
const (
	DefaultCollection = "products"

	FieldText        = "text"
	FieldIsPurchased = "isPurchased"
	FieldCreatedAt   = "createdAt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

type serverTimestamp struct{}

// ServerTimestamp is a Fields value that the backend replaces with its
// own commit time.
var ServerTimestamp = serverTimestamp{}

// Fields is a partial document: field name -> value.
type Fields map[string]any

// Query selects a whole collection in a fixed order.
type Query struct {
	Collection string
	OrderBy    string
	Descending bool
}

// ProductsQuery is the live query the list is built from: newest first.
func ProductsQuery(collection string) Query {
	if collection == "" {
		collection = DefaultCollection
	}
	return Query{Collection: collection, OrderBy: FieldCreatedAt, Descending: true}
}

// Snapshot is one complete, ordered push of a live query.
type Snapshot struct {
	Records []model.Record
}

// Subscription is a live query handle. Unsubscribe may be called more
// than once; only the first call has an effect.
type Subscription interface {
	Unsubscribe()
}

// Store is a hosted, ordered collection of product records.
type Store interface {
	// Subscribe opens a live query. onNext receives every snapshot,
	// onErr receives query failures. Callbacks run on a store goroutine.
	Subscribe(ctx context.Context, q Query, onNext func(Snapshot), onErr func(error)) (Subscription, error)
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// SortRecords orders records for q in place. Only createdAt ordering is
// supported; records without a timestamp go last, ties break on id.
func SortRecords(recs []model.Record, q Query) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		at, bt := stamp(a), stamp(b)
		switch {
		case at.IsZero() && bt.IsZero():
			return a.ID < b.ID
		case at.IsZero():
			return false
		case bt.IsZero():
			return true
		case at.Equal(bt):
			return a.ID < b.ID
		case q.Descending:
			return at.After(bt)
		default:
			return at.Before(bt)
		}
	})
}

func stamp(r model.Record) time.Time {
	if r.CreatedAt == nil {
		return time.Time{}
	}
	return *r.CreatedAt
}

// Apply merges fields into rec. now resolves ServerTimestamp.
// Unknown field names are ignored.
func Apply(rec *model.Record, fields Fields, now time.Time) {
	for k, v := range fields {
		switch k {
		case FieldText:
			if s, ok := v.(string); ok {
				rec.Text = &s
			}
		case FieldIsPurchased:
			if b, ok := v.(bool); ok {
				rec.IsPurchased = &b
			}
		case FieldCreatedAt:
			switch t := v.(type) {
			case serverTimestamp:
				ts := now
				rec.CreatedAt = &ts
			case time.Time:
				rec.CreatedAt = &t
			}
		}
	}
}

// Clone deep-copies a record so snapshots never share pointers with
// backend state.
func Clone(r model.Record) model.Record {
	out := model.Record{ID: r.ID}
	if r.Text != nil {
		out.Text = model.Ptr(*r.Text)
	}
	if r.IsPurchased != nil {
		out.IsPurchased = model.Ptr(*r.IsPurchased)
	}
	if r.CreatedAt != nil {
		out.CreatedAt = model.Ptr(*r.CreatedAt)
	}
	return out
}

// NotFoundError reports an update of a record that does not exist.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return "store: " + e.Collection + "/" + e.ID + " not found"
}
