package assemble

import (
	"errors"
	"fmt"
)

// Kind classifies an assembly failure.
type Kind int

const (
	// AlreadyExists means the artifact path is taken and overwriting was
	// not allowed.
	AlreadyExists Kind = iota
	// IOFailure covers filesystem and encoding failures while building
	// the artifact.
	IOFailure
	// IncompleteInput means the chapter's page set does not satisfy the
	// completion policy.
	IncompleteInput
)

func (k Kind) String() string {
	switch k {
	case AlreadyExists:
		return "already_exists"
	case IOFailure:
		return "io_failure"
	case IncompleteInput:
		return "incomplete_input"
	default:
		return "unknown"
	}
}

// Error is a classified assembly failure.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assemble %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("assemble %s: %s", e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsAlreadyExists reports whether err is an AlreadyExists assembly failure.
func IsAlreadyExists(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == AlreadyExists
}
