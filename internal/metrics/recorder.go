package metrics

import "time"

// OutcomeLabel enumerates final outcomes for counters.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeCanceled OutcomeLabel = "canceled"
	OutcomeNoop     OutcomeLabel = "noop" // publish with nothing to commit
)

// Recorder defines observability hooks for the generation and publish pipeline.
type Recorder interface {
	ObserveGeneration(d time.Duration, outcome OutcomeLabel)
	SetPagesRendered(n int)
	ObservePublish(d time.Duration, outcome OutcomeLabel)
	AddPublishedFiles(added, removed int)
	IncPublishRetry()
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveGeneration(time.Duration, OutcomeLabel) {}
func (NoopRecorder) SetPagesRendered(int)                          {}
func (NoopRecorder) ObservePublish(time.Duration, OutcomeLabel)    {}
func (NoopRecorder) AddPublishedFiles(int, int)                    {}
func (NoopRecorder) IncPublishRetry()                              {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
