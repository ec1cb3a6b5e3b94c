package usecase

import "time"

// PipelineObserver receives per-turn observability signals. The Prometheus
// metrics type implements it; a nil observer disables recording.
type PipelineObserver interface {
	ObserveTransition(state TurnState, duration time.Duration, outcome string)
	RecordSourceFailure(sourceID, kind string)
	RecordWebTrigger(mode string)
	ObserveFusedSize(size int)
	RecordDegradedTurn(reason string)
}

type noopObserver struct{}

func (noopObserver) ObserveTransition(TurnState, time.Duration, string) {}
func (noopObserver) RecordSourceFailure(string, string)                 {}
func (noopObserver) RecordWebTrigger(string)                            {}
func (noopObserver) ObserveFusedSize(int)                               {}
func (noopObserver) RecordDegradedTurn(string)                          {}
