// Package health provides health checking for the music API.
package health

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/soundstats/music-api/interfaces"
	"github.com/soundstats/music-api/logging"
)

// DefaultPingTimeout bounds the database ping done for each health check
const DefaultPingTimeout = 2 * time.Second

// Compile-time check to ensure Checker implements HealthChecker
var _ interfaces.HealthChecker = (*Checker)(nil)

// Checker implements the interfaces.HealthChecker interface
type Checker struct {
	store       interfaces.DocumentStore
	visitors    interfaces.VisitorTracker
	startTime   time.Time
	pingTimeout time.Duration
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(store interfaces.DocumentStore, visitors interfaces.VisitorTracker) *Checker {
	return &Checker{
		store:       store,
		visitors:    visitors,
		startTime:   time.Now(),
		pingTimeout: DefaultPingTimeout,
	}
}

// HealthCheck pings the database. The service is healthy when the ping
// succeeds and unhealthy (503) otherwise.
func (c *Checker) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	data = map[string]any{
		"uptime":          formatUptimeHuman(c.Uptime()),
		"uptime_seconds":  int64(c.Uptime().Seconds()),
		"goroutines":      runtime.NumGoroutine(),
		"memory_usage_mb": m.Alloc / 1024 / 1024,
		"database":        "up",
	}
	if c.visitors != nil {
		data["visitors_tracked"] = c.visitors.Len()
	}

	if err := c.store.Ping(ctx); err != nil {
		logging.Warn("Health check failed", "error", err)
		data["database"] = "down"
		return "unhealthy", data, http.StatusServiceUnavailable
	}

	return "healthy", data, http.StatusOK
}

// Uptime returns how long the checker (and so the process) has been running
func (c *Checker) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
