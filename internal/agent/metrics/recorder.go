// Package metrics records relay activity.
package metrics

import "time"

// Recorder defines the interface for recording relay metrics.
type Recorder interface {
	// ObserveCompletion records a finished completion request. errorKind is empty on success.
	ObserveCompletion(model, errorKind string, promptTokens, completionTokens int, cost float64, duration time.Duration)

	// SetInFlight reports how many users currently have a request being processed.
	SetInFlight(n int)

	// IncBusy counts messages rejected because the user already had a request running.
	IncBusy()

	// IncProgress counts status messages sent while a request was running.
	IncProgress()

	// ObservePipeline records the final state of a pipeline run.
	ObservePipeline(kind, state string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveCompletion(_, _ string, _, _ int, _ float64, _ time.Duration) {}

func (n *NoopRecorder) SetInFlight(_ int) {}

func (n *NoopRecorder) IncBusy() {}

func (n *NoopRecorder) IncProgress() {}

func (n *NoopRecorder) ObservePipeline(_, _ string) {}
