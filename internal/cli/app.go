package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/config"
	"github.com/idilsaglam/shoplist/internal/dispatch"
	"github.com/idilsaglam/shoplist/internal/listsync"
	"github.com/idilsaglam/shoplist/internal/logging"
	"github.com/idilsaglam/shoplist/internal/metrics"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/store"
	"github.com/idilsaglam/shoplist/internal/store/firestore"
	"github.com/idilsaglam/shoplist/internal/store/jsonstore"
	"github.com/idilsaglam/shoplist/internal/store/memstore"
	"github.com/idilsaglam/shoplist/internal/ui"
)

const readTimeout = 15 * time.Second

// app is everything a command needs, wired from config.
type app struct {
	log      *zap.Logger
	metrics  *metrics.Collector
	store    store.Store
	query    store.Query
	dispatch *dispatch.Dispatcher
	closers  []func() error
}

// opener builds the app. interactive means the TUI owns the terminal.
type opener func(ctx context.Context, f *flags, interactive bool) (*app, error)

func newApp(st store.Store, collection string, log *zap.Logger, m *metrics.Collector) *app {
	q := store.ProductsQuery(collection)
	return &app{
		log:      log,
		metrics:  m,
		store:    st,
		query:    q,
		dispatch: dispatch.New(st, q.Collection, log, m),
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
}

// current reads one snapshot of the list.
func (a *app) current(ctx context.Context) ([]model.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	rows, err := listsync.First(ctx, a.store, a.query)
	if err != nil {
		return nil, runtimeErr("load: %v", err)
	}
	return rows, nil
}

func openApp(ctx context.Context, f *flags, interactive bool) (*app, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, runtimeErr("%v", err)
	}
	if f.backend != "" {
		cfg.Store.Backend = f.backend
	}
	if f.theme != "" {
		cfg.UI.Theme = f.theme
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageErr("%v", err)
	}
	ui.SetTheme(cfg.UI.Theme)

	logOpts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if interactive {
		logOpts.File = cfg.Log.File
	}
	log, err := logging.New(logOpts)
	if err != nil {
		return nil, runtimeErr("logger: %v", err)
	}

	m := metrics.New("shoplist")
	if cfg.Metrics.Addr != "" {
		m.Serve(ctx, cfg.Metrics.Addr, log)
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, runtimeErr("store: %v", err)
	}
	log.Debug("store opened",
		zap.String("backend", cfg.Store.Backend),
		zap.String("collection", cfg.Store.Collection),
	)

	a := newApp(st, cfg.Store.Collection, log, m)
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil }, st.Close)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendJSON:
		return jsonstore.New(cfg.Store.JSONPath, jsonstore.WithLogger(log))
	case config.BackendFirestore:
		return firestore.New(ctx, firestore.Config{
			ProjectID:       cfg.Store.ProjectID,
			CredentialsFile: cfg.Store.CredentialsFile,
		}, log)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Store.Backend)
}
