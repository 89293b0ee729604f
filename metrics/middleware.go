package metrics

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundstats/music-api/interfaces"
)

// DirectOrigin labels requests that carry no Referer header
const DirectOrigin = "direct"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Instrumentation records request metrics around the collection routes.
type Instrumentation struct {
	metrics  *ServiceMetrics
	visitors interfaces.VisitorTracker
	sampler  interfaces.SessionSampler
}

// NewInstrumentation wires the middleware dependencies. A nil sampler turns
// off the simulated session_duration_seconds samples.
func NewInstrumentation(m *ServiceMetrics, visitors interfaces.VisitorTracker, sampler interfaces.SessionSampler) *Instrumentation {
	return &Instrumentation{
		metrics:  m,
		visitors: visitors,
		sampler:  sampler,
	}
}

// Instrument wraps a route handler. Before the handler runs it counts the
// request on routeCounter and access_origin_total, classifies the client IP
// as new or returning and records a session sample. The duration observation
// runs in a deferred block so it is taken on every exit path, panics included;
// a panicking handler is recorded with code 500.
func (in *Instrumentation) Instrument(routeCounter prometheus.Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			routeCounter.Inc()

			ip := ClientIP(r)
			in.metrics.AccessOrigin.WithLabelValues(Origin(r)).Inc()

			if in.visitors.Visit(ip) {
				in.metrics.ReturningUsers.WithLabelValues(ip).Inc()
			} else {
				in.metrics.VisitorsTracked.Set(float64(in.visitors.Len()))
			}

			if in.sampler != nil {
				in.metrics.SessionDuration.WithLabelValues(ip).Observe(in.sampler.Sample())
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// completed stays false when next panics; the panic keeps
			// unwinding to the recoverer untouched.
			completed := false
			defer func() {
				code := wrapped.statusCode
				if !completed {
					code = http.StatusInternalServerError
				}

				in.metrics.RequestDuration.WithLabelValues(
					r.Method,
					routePattern(r),
					strconv.Itoa(code),
				).Observe(time.Since(start).Seconds())
			}()

			next.ServeHTTP(wrapped, r)
			completed = true
		})
	}
}

// ClientIP returns the host part of RemoteAddr. Behind a proxy, chi's RealIP
// middleware has already replaced RemoteAddr with the forwarded address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Origin returns the Referer header or DirectOrigin when it is missing
func Origin(r *http.Request) string {
	if referer := r.Referer(); referer != "" {
		return referer
	}
	return DirectOrigin
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
