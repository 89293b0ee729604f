// Package interfaces defines the abstractions the music API is wired from,
// so handlers, middleware and the server can be tested without a database.
package interfaces

import (
	"context"
	"time"
)

// Document is an opaque record from a collection, passed through unmodified.
type Document = map[string]any

// DocumentStore reads whole collections from the document database.
type DocumentStore interface {
	// FindAll returns every document of the collection, never nil
	FindAll(ctx context.Context, collection string) ([]Document, error)

	// Ping reports whether the database is reachable
	Ping(ctx context.Context) error
}

// VisitorTracker classifies client addresses as first-seen or returning.
type VisitorTracker interface {
	// Visit records ip and reports whether it had been seen before
	Visit(ip string) (returning bool)

	// Sweep drops expired entries and returns how many were removed
	Sweep() int

	Len() int
}

// SessionSampler produces simulated session durations in seconds.
type SessionSampler interface {
	Sample() float64
}

// Scheduler defines the contract for background maintenance jobs.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the status string, details and the HTTP status to answer with
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)

	Uptime() time.Duration
}
