package metrics

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
)

var serviceMetricNames = []string{
	"songs_requests_total",
	"artists_requests_total",
	"http_request_duration_seconds",
	"session_duration_seconds",
	"returning_users_total",
	"access_origin_total",
}

func TestNewRegistryIncludesDefaultCollectors(t *testing.T) {
	reg := NewRegistry()

	var out strings.Builder
	if err := reg.Collect(&out); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	for _, name := range []string{"go_goroutines", "go_memstats_alloc_bytes", "go_gc_duration_seconds"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("expected default metric %s in snapshot", name)
		}
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	reg := NewRegistry()
	if _, err := NewServiceMetrics(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	_, err := NewServiceMetrics(reg)
	if err == nil {
		t.Fatal("expected an error registering the same metrics twice")
	}

	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		t.Errorf("expected AlreadyRegisteredError, got %T: %v", err, err)
	}
}

func TestCollectIncludesDeclaredFamiliesWithoutSeries(t *testing.T) {
	reg := NewRegistry()
	if _, err := NewServiceMetrics(reg); err != nil {
		t.Fatalf("NewServiceMetrics failed: %v", err)
	}

	var out strings.Builder
	if err := reg.Collect(&out); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	for _, want := range []string{
		"# TYPE returning_users_total counter",
		"# TYPE session_duration_seconds histogram",
		"# TYPE http_request_duration_seconds histogram",
		"# TYPE access_origin_total counter",
		"# HELP returning_users_total Requests from IPs that had already been seen",
		"songs_requests_total 0",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in snapshot:\n%s", want, out.String())
		}
	}
}

func TestDeclaredFamilyUsesRealSeriesOnceObserved(t *testing.T) {
	reg := NewRegistry()
	m, err := NewServiceMetrics(reg)
	if err != nil {
		t.Fatalf("NewServiceMetrics failed: %v", err)
	}
	m.AccessOrigin.WithLabelValues(DirectOrigin).Inc()

	var out strings.Builder
	if err := reg.Collect(&out); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if got := strings.Count(out.String(), "# TYPE access_origin_total"); got != 1 {
		t.Errorf("expected access_origin_total declared once, got %d", got)
	}
	if !strings.Contains(out.String(), `access_origin_total{origin="direct"} 1`) {
		t.Errorf("expected direct origin sample in snapshot:\n%s", out.String())
	}
}

func TestHandlerServesTextExposition(t *testing.T) {
	reg := NewRegistry()
	if _, err := NewServiceMetrics(reg); err != nil {
		t.Fatalf("NewServiceMetrics failed: %v", err)
	}

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain; version=0.0.4") {
		t.Errorf("unexpected content type %q", ct)
	}

	body := rr.Body.String()
	for _, name := range serviceMetricNames {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in /metrics body", name)
		}
	}
}

func TestRepeatedScrapesNeverDecrease(t *testing.T) {
	reg := NewRegistry()
	m, err := NewServiceMetrics(reg)
	if err != nil {
		t.Fatalf("NewServiceMetrics failed: %v", err)
	}
	m.SongsRequests.Add(3)

	handler := reg.Handler()
	var last float64
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		value := sampleValue(t, rr.Body.String(), "songs_requests_total")
		if value < last {
			t.Fatalf("scrape %d: songs_requests_total went from %g to %g", i, last, value)
		}
		last = value
	}
	if last != 3 {
		t.Errorf("expected songs_requests_total 3, got %g", last)
	}
}

// sampleValue reads an unlabeled sample from a text exposition body
func sampleValue(t *testing.T, body, name string) float64 {
	t.Helper()

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, name+" ") {
			v, err := strconv.ParseFloat(strings.TrimPrefix(line, name+" "), 64)
			if err != nil {
				t.Fatalf("bad sample line %q: %v", line, err)
			}
			return v
		}
	}
	t.Fatalf("sample %s not found", name)
	return 0
}

// brokenCollector always yields an invalid metric
type brokenCollector struct {
	desc *prometheus.Desc
}

func (b brokenCollector) Describe(ch chan<- *prometheus.Desc) { ch <- b.desc }

func (b brokenCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.NewInvalidMetric(b.desc, errors.New("source unavailable"))
}

func TestCollectServesPartialResults(t *testing.T) {
	reg := NewRegistry()
	m, err := NewServiceMetrics(reg)
	if err != nil {
		t.Fatalf("NewServiceMetrics failed: %v", err)
	}
	m.SongsRequests.Inc()

	broken := brokenCollector{desc: prometheus.NewDesc("broken_source_up", "Broken source", nil, nil)}
	if err := reg.Register(broken); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var out strings.Builder
	if err := reg.Collect(&out); err != nil {
		t.Fatalf("expected partial output instead of an error, got %v", err)
	}
	if strings.Contains(out.String(), "broken_source_up ") {
		t.Error("the failing collector should not produce a sample")
	}
	if got := sampleValue(t, out.String(), "songs_requests_total"); got != 1 {
		t.Errorf("expected songs_requests_total 1, got %g", got)
	}

	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for a partial scrape, got %d", rr.Code)
	}
	for _, name := range serviceMetricNames {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("expected %s in a partial scrape", name)
		}
	}
}

func TestHandlerNegotiation(t *testing.T) {
	reg := NewRegistry()
	m, err := NewServiceMetrics(reg)
	if err != nil {
		t.Fatalf("NewServiceMetrics failed: %v", err)
	}
	m.SongsRequests.Inc()
	handler := reg.Handler()

	tests := []struct {
		name       string
		accept     string
		wantPrefix string
		wantBody   string
	}{
		{"no accept header", "", "text/plain; version=0.0.4", "# TYPE returning_users_total counter"},
		{"classic text", "text/plain;version=0.0.4", "text/plain; version=0.0.4", "# TYPE returning_users_total counter"},
		{"openmetrics", "application/openmetrics-text;version=1.0.0", "application/openmetrics-text", "songs_requests_total 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantPrefix) {
				t.Errorf("expected content type %s, got %q", tt.wantPrefix, ct)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("expected %q in body:\n%s", tt.wantBody, rr.Body.String())
			}
		})
	}
}

func TestHandlerCompressesWhenAccepted(t *testing.T) {
	reg := NewRegistry()
	if _, err := NewServiceMetrics(reg); err != nil {
		t.Fatalf("NewServiceMetrics failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rr := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", got)
	}

	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("invalid gzip body: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}
	for _, name := range serviceMetricNames {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in the decompressed body", name)
		}
	}
}

func TestAcceptsGzip(t *testing.T) {
	tests := []struct {
		header   string
		expected bool
	}{
		{"", false},
		{"gzip", true},
		{"deflate, GZIP;q=0.5", true},
		{"identity", false},
		{"x-gzip-ish", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.Header.Set("Accept-Encoding", tt.header)
			if got := acceptsGzip(req); got != tt.expected {
				t.Errorf("acceptsGzip(%q) = %v, want %v", tt.header, got, tt.expected)
			}
		})
	}
}
