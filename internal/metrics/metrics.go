package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Write results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector holds the app's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	Writes             *prometheus.CounterVec
	Snapshots          prometheus.Counter
	SubscriptionErrors prometheus.Counter
}

// New builds a Collector. Each call gets its own registry so tests can
// create as many as they like.
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	writes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Record Store writes by operation and result",
		},
		[]string{"op", "result"},
	)
	snapshots := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_total",
		Help:      "Snapshots applied to the list view",
	})
	subErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_errors_total",
		Help:      "Live query errors",
	})

	registry.MustRegister(writes, snapshots, subErrors)

	return &Collector{
		registry:           registry,
		Writes:             writes,
		Snapshots:          snapshots,
		SubscriptionErrors: subErrors,
	}
}

// ObserveWrite counts one write. A nil Collector is a no-op.
func (c *Collector) ObserveWrite(op string, err error) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.Writes.WithLabelValues(op, result).Inc()
}

func (c *Collector) ObserveSnapshot() {
	if c == nil {
		return
	}
	c.Snapshots.Inc()
}

func (c *Collector) ObserveSubscriptionError() {
	if c == nil {
		return
	}
	c.SubscriptionErrors.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics listener on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info("metrics listener started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener failed", zap.Error(err))
		}
	}()
}
