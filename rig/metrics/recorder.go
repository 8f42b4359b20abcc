// Package metrics records build outcomes per profile.  The orchestrator and the esbuild engine report to a Recorder;
// the dev server exposes the Prometheus implementation at /metrics.
package metrics

import "time"

// Outcome labels the result of a build pass or lifecycle step.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Recorder receives build observations.  Implementations must be safe for concurrent use since profiles build
// concurrently.
type Recorder interface {
	ObservePass(profile string, d time.Duration, errors, warnings int)
	ObserveRebuild(profile string, d time.Duration, outcome Outcome)
	IncContextFailure(profile string)
	IncDisposeFailure(profile string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not exposed).
type NoopRecorder struct{}

func (NoopRecorder) ObservePass(string, time.Duration, int, int)    {}
func (NoopRecorder) ObserveRebuild(string, time.Duration, Outcome) {}
func (NoopRecorder) IncContextFailure(string)                      {}
func (NoopRecorder) IncDisposeFailure(string)                      {}
