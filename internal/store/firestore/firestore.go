// Package firestore backs the Record Store with Cloud Firestore.
// Live queries use the SDK's snapshot listener; ordering, consistency
// and reconnection are left to Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	fs "cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
)

// Config selects the Firestore project. An empty CredentialsFile uses
// application default credentials (or FIRESTORE_EMULATOR_HOST).
type Config struct {
	ProjectID       string
	CredentialsFile string
}

type Store struct {
	client *fs.Client
	log    *zap.Logger
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore: project id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := fs.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, log: log}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Create(ctx context.Context, collection string, fields store.Fields) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toData(fields))
	if err != nil {
		return "", fmt.Errorf("firestore: add: %w", err)
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields)); err != nil {
		if status.Code(err) == codes.NotFound {
			return &store.NotFoundError{Collection: collection, ID: id}
		}
		return fmt.Errorf("firestore: update: %w", err)
	}
	return nil
}

// Delete of a missing document succeeds in Firestore.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore: delete: %w", err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, onNext func(store.Snapshot), onErr func(error)) (store.Subscription, error) {
	dir := fs.Asc
	if q.Descending {
		dir = fs.Desc
	}
	query := s.client.Collection(q.Collection).OrderBy(q.OrderBy, dir)

	ctx, cancel := context.WithCancel(ctx)
	it := query.Snapshots(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			it.Stop()
		})
	}

	go func() {
		defer stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				// The listener is dead after an error; no automatic resubscribe.
				onErr(fmt.Errorf("firestore: snapshot: %w", err))
				return
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				onErr(fmt.Errorf("firestore: read snapshot: %w", err))
				continue
			}
			recs := make([]model.Record, 0, len(docs))
			for _, d := range docs {
				recs = append(recs, recordFromData(d.Ref.ID, d.Data()))
			}
			if ctx.Err() != nil {
				return
			}
			onNext(store.Snapshot{Records: recs})
		}
	}()

	return store.SubscriptionFunc(stop), nil
}

// ---------------- conversion ----------------

func recordFromData(id string, data map[string]any) model.Record {
	rec := model.Record{ID: id}
	if v, ok := data[store.FieldText].(string); ok {
		rec.Text = &v
	}
	if v, ok := data[store.FieldIsPurchased].(bool); ok {
		rec.IsPurchased = &v
	}
	if v, ok := data[store.FieldCreatedAt].(time.Time); ok {
		rec.CreatedAt = &v
	}
	return rec
}

func toValue(v any) any {
	if v == store.ServerTimestamp {
		return fs.ServerTimestamp
	}
	return v
}

func toData(fields store.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = toValue(v)
	}
	return out
}

func toUpdates(fields store.Fields) []fs.Update {
	out := make([]fs.Update, 0, len(fields))
	for k, v := range fields {
		out = append(out, fs.Update{Path: k, Value: toValue(v)})
	}
	return out
}
