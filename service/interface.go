// Package service defines the process-lifecycle contract worker.Worker
// and renderer.Renderer implement (not to be confused with the per-worker
// protocol state machine).
package service

// Service is the lifecycle interface infrastructure-level long-lived
// processes implement.
//
// Lifecycle:
//  1. Construction (via factory)
//  2. Init(args...) - implicit configuration (e.g. from parsed flags/env)
//  3. Start() - launch background goroutines
//  4. [runtime operation]
//  5. Stop() - halt goroutines, release resources
type Service interface {
	// Name returns the unique identifier for this service.
	Name() string

	// Init configures the service from optional args.
	Init(args ...any) error

	// Start begins service operation (launches goroutines if any).
	Start() error

	// Stop halts service operation and releases resources.
	// Must be idempotent - safe to call multiple times.
	Stop() error
}
