// Package metrics records payment outcomes to Prometheus and CloudWatch.
package metrics

import "time"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeReplay  = "replay"
	OutcomeFailure = "failure"
)

// Recorder observes engine and notifier outcomes.
type Recorder interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	ObserveNotification(eventType, outcome string)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveOperation(string, string, time.Duration) {}
func (Nop) ObserveNotification(string, string)             {}

type multi []Recorder

// Multi fans observations out to every recorder.
func Multi(recorders ...Recorder) Recorder {
	return multi(recorders)
}

func (m multi) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	for _, r := range m {
		r.ObserveOperation(operation, outcome, elapsed)
	}
}

func (m multi) ObserveNotification(eventType, outcome string) {
	for _, r := range m {
		r.ObserveNotification(eventType, outcome)
	}
}
