// Package errs provides the pipeline's error taxonomy.
// Every stage that can fail without aborting the user's run wraps its
// failure in one of these kinds before appending it to a RunResult's
// Errors slice, so a caller can categorize a failure without parsing
// strings.
package errs

import "fmt"

// Kind classifies a pipeline failure for machine consumption.
type Kind string

const (
	KindScrape    Kind = "scrape"
	KindContent   Kind = "content"
	KindLLM       Kind = "llm"
	KindCVE       Kind = "cve"
	KindExposure  Kind = "exposure"
	KindDB        Kind = "db"
	KindRateLimit Kind = "rate_limit"
	KindFatal     Kind = "fatal"
)

// PipelineError is a categorized, stage-attributed failure. It is never
// returned up through a user's pipeline boundary — it is collected into
// RunResult.Errors instead.
type PipelineError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s/%s] %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// New wraps err with a Kind and the stage name that produced it.
func New(kind Kind, stage string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// ErrConflict is the sentinel a store.* interface returns for a
// unique-constraint violation. Callers test with errors.Is instead of
// matching on an error-message substring.
var ErrConflict = fmt.Errorf("unique constraint violation")

// ErrNotFound is the sentinel for a missing row on a lookup that
// expects one to exist.
var ErrNotFound = fmt.Errorf("not found")
