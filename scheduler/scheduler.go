// Package scheduler runs the background maintenance of the backend: it
// periodically drops expired entries from the visitor map and publishes the
// resulting map size.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundstats/music-api/interfaces"
	"github.com/soundstats/music-api/logging"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler sweeps the visitor map on a fixed interval
type Scheduler struct {
	visitors  interfaces.VisitorTracker
	tracked   prometheus.Gauge
	interval  time.Duration
	scheduler *gocron.Scheduler
}

// NewScheduler creates a scheduler sweeping visitors every interval and
// setting tracked to the map size after each sweep.
func NewScheduler(visitors interfaces.VisitorTracker, tracked prometheus.Gauge, interval time.Duration) *Scheduler {
	return &Scheduler{
		visitors:  visitors,
		tracked:   tracked,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.Local),
	}
}

// Start schedules the sweep job and starts the scheduler in the background.
// The first sweep runs immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).Do(s.sweepVisitors)
	if err != nil {
		logging.Error("Failed to schedule visitor sweep", "error", err)
		return fmt.Errorf("failed to schedule visitor sweep: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Visitor sweep scheduled", "interval", s.interval.String())

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) sweepVisitors() {
	start := time.Now()
	removed := s.visitors.Sweep()
	size := s.visitors.Len()
	s.tracked.Set(float64(size))

	if removed > 0 {
		logging.Debug("Visitor sweep completed",
			"removed", removed,
			"tracked", size,
			"duration", time.Since(start).String(),
		)
	}
}
