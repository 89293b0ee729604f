package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

var (
	// DurationBuckets are the http_request_duration_seconds buckets, in seconds
	DurationBuckets = []float64{0.1, 0.5, 1, 1.5, 2, 5}

	// SessionBuckets are the session_duration_seconds buckets, in seconds
	SessionBuckets = []float64{5, 15, 30, 60, 120, 300, 600}
)

// ServiceMetrics are the backend's custom metrics
type ServiceMetrics struct {
	SongsRequests   prometheus.Counter
	ArtistsRequests prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	SessionDuration *prometheus.HistogramVec
	ReturningUsers  *prometheus.CounterVec
	AccessOrigin    *prometheus.CounterVec
	VisitorsTracked prometheus.Gauge
}

// NewServiceMetrics defines the backend metrics and registers them with reg.
// It fails when any of the names is already registered.
func NewServiceMetrics(reg *Registry) (*ServiceMetrics, error) {
	songsOpts := prometheus.CounterOpts{
		Name: "songs_requests_total",
		Help: "Total number of requests to the /songs endpoint",
	}
	artistsOpts := prometheus.CounterOpts{
		Name: "artists_requests_total",
		Help: "Total number of requests to the /artists endpoint",
	}
	durationOpts := prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: DurationBuckets,
	}
	sessionOpts := prometheus.HistogramOpts{
		Name:    "session_duration_seconds",
		Help:    "Simulated session duration per IP; random samples, not measured client behavior",
		Buckets: SessionBuckets,
	}
	returningOpts := prometheus.CounterOpts{
		Name: "returning_users_total",
		Help: "Requests from IPs that had already been seen",
	}
	originOpts := prometheus.CounterOpts{
		Name: "access_origin_total",
		Help: "Requests per origin (Referer header)",
	}
	visitorsOpts := prometheus.GaugeOpts{
		Name: "visitors_tracked",
		Help: "Number of client IPs currently held in the visitor map",
	}

	m := &ServiceMetrics{
		SongsRequests:   prometheus.NewCounter(songsOpts),
		ArtistsRequests: prometheus.NewCounter(artistsOpts),
		RequestDuration: prometheus.NewHistogramVec(durationOpts, []string{"method", "route", "code"}),
		SessionDuration: prometheus.NewHistogramVec(sessionOpts, []string{"ip"}),
		ReturningUsers:  prometheus.NewCounterVec(returningOpts, []string{"ip"}),
		AccessOrigin:    prometheus.NewCounterVec(originOpts, []string{"origin"}),
		VisitorsTracked: prometheus.NewGauge(visitorsOpts),
	}

	families := []struct {
		collector prometheus.Collector
		name      string
		help      string
		typ       dto.MetricType
	}{
		{m.SongsRequests, songsOpts.Name, songsOpts.Help, dto.MetricType_COUNTER},
		{m.ArtistsRequests, artistsOpts.Name, artistsOpts.Help, dto.MetricType_COUNTER},
		{m.RequestDuration, durationOpts.Name, durationOpts.Help, dto.MetricType_HISTOGRAM},
		{m.SessionDuration, sessionOpts.Name, sessionOpts.Help, dto.MetricType_HISTOGRAM},
		{m.ReturningUsers, returningOpts.Name, returningOpts.Help, dto.MetricType_COUNTER},
		{m.AccessOrigin, originOpts.Name, originOpts.Help, dto.MetricType_COUNTER},
		{m.VisitorsTracked, visitorsOpts.Name, visitorsOpts.Help, dto.MetricType_GAUGE},
	}

	for _, f := range families {
		if err := reg.Register(f.collector); err != nil {
			return nil, err
		}
		reg.Declare(f.name, f.help, f.typ)
	}

	return m, nil
}

// ForgetVisitor drops the ip-labeled series of an address that left the
// visitor map, so the series set stays as bounded as the map.
func (m *ServiceMetrics) ForgetVisitor(ip string) {
	m.ReturningUsers.DeleteLabelValues(ip)
	m.SessionDuration.DeleteLabelValues(ip)
}
