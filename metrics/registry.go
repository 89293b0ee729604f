// Package metrics holds the Prometheus instrumentation of the music API:
// an explicitly owned registry with the process default collectors, the
// backend's request metrics and the middleware that records them.
//
// Metrics exported by the backend:
//   - songs_requests_total / artists_requests_total: per-route request counters
//   - http_request_duration_seconds: histogram labeled by method, route and code
//   - session_duration_seconds: simulated per-IP session length histogram
//   - returning_users_total: counter labeled by ip for repeat visitors
//   - access_origin_total: counter labeled by Referer origin ("direct" when absent)
//   - visitors_tracked: gauge with the size of the visitor map
package metrics

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/soundstats/music-api/logging"
)

// ContentType is the media type of the text exposition format
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

type declaredFamily struct {
	help string
	typ  dto.MetricType
}

// Registry is the process-wide set of metrics. It is created once at startup
// and lives until the process exits; nothing is ever unregistered.
type Registry struct {
	reg *prometheus.Registry

	mu       sync.RWMutex
	declared map[string]declaredFamily
}

// NewRegistry creates a registry pre-loaded with the Go runtime and process
// collectors (memory, GC, goroutines, CPU, open fds, start time).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:      reg,
		declared: make(map[string]declaredFamily),
	}
}

// Register adds a collector. Registering a metric name twice is an error.
func (r *Registry) Register(c prometheus.Collector) error {
	if err := r.reg.Register(c); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}
	return nil
}

// Declare keeps name in the exposition while it has no series yet. Labeled
// vectors only produce output after their first observation, so without a
// declaration a scrape would not show the metric at all.
func (r *Registry) Declare(name, help string, typ dto.MetricType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declared[name] = declaredFamily{help: help, typ: typ}
}

// Gatherer exposes the underlying registry for scraping and tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Collect writes a snapshot of every registered metric to w in the
// Prometheus text exposition format. Declared families without series are
// written as HELP and TYPE lines only. When some collectors fail, the
// families that were gathered are still written.
func (r *Registry) Collect(w io.Writer) error {
	families, err := r.reg.Gather()
	if err != nil {
		if len(families) == 0 {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
		// Gather still returns every family it could collect
		logging.Warn("Serving partial metrics", "error", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	names := make([]string, 0, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
		names = append(names, mf.GetName())
	}

	r.mu.RLock()
	for name := range r.declared {
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
	}
	r.mu.RUnlock()

	sort.Strings(names)

	for _, name := range names {
		if mf, ok := byName[name]; ok {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return fmt.Errorf("failed to encode metric family %s: %w", name, err)
			}
			continue
		}

		r.mu.RLock()
		family := r.declared[name]
		r.mu.RUnlock()

		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n",
			name, helpEscaper.Replace(family.help),
			name, strings.ToLower(family.typ.String())); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", name, err)
		}
	}

	return nil
}

// Handler serves the registry at GET /metrics. Scrapes are themselves counted
// in promhttp_metric_handler_requests_total.
//
// The classic text format is written by Collect so declared families show up
// before their first observation. OpenMetrics and protobuf scrapes are
// negotiated and encoded by promhttp, which omits families without series.
func (r *Registry) Handler() http.Handler {
	negotiated := promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		ErrorLog:          slog.NewLogLogger(logging.Default().Handler(), slog.LevelError),
		ErrorHandling:     promhttp.ContinueOnError,
		Registry:          r.reg,
		EnableOpenMetrics: true,
	})

	return promhttp.InstrumentMetricHandler(r.reg, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if expfmt.NegotiateIncludingOpenMetrics(req.Header).FormatType() != expfmt.TypeTextPlain {
			negotiated.ServeHTTP(w, req)
			return
		}
		r.serveText(w, req)
	}))
}

func (r *Registry) serveText(w http.ResponseWriter, req *http.Request) {
	var buf bytes.Buffer
	if err := r.Collect(&buf); err != nil {
		logging.Error("Failed to collect metrics", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType)

	if !acceptsGzip(req) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Add("Vary", "Accept-Encoding")
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	if _, err := gz.Write(buf.Bytes()); err != nil {
		logging.Warn("Failed to write compressed metrics", "error", err)
	}
	if err := gz.Close(); err != nil {
		logging.Warn("Failed to flush compressed metrics", "error", err)
	}
}

func acceptsGzip(req *http.Request) bool {
	for _, part := range strings.Split(req.Header.Get("Accept-Encoding"), ",") {
		coding, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(coding, "gzip") {
			return true
		}
	}
	return false
}
