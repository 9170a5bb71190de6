package download

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a chapter produced no artifact.
type FailureKind string

const (
	// FailPartial marks a chapter where at least one page failed after
	// exhausting its retries.
	FailPartial FailureKind = "partial_failure"
	// FailTimeout marks a chapter that could not finish within its
	// request deadlines.
	FailTimeout FailureKind = "timeout"
	// FailCancelled marks a chapter interrupted by job cancellation.
	FailCancelled FailureKind = "cancelled"
)

// ChapterError is a classified chapter-level failure. Page-level detail
// stays with the ChapterResult; this carries only what the job report needs.
type ChapterError struct {
	ChapterID string
	Kind      FailureKind
	Err       error
}

func (e *ChapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chapter %s: %s: %v", e.ChapterID, e.Kind, e.Err)
	}
	return fmt.Sprintf("chapter %s: %s", e.ChapterID, e.Kind)
}

func (e *ChapterError) Unwrap() error { return e.Err }

// ErrCancelled is returned by RunJob when the job was cancelled before
// every chapter could finish.
var ErrCancelled = errors.New("download: job cancelled")
