// Package errs implements the error taxonomy from the design: every error
// that should influence exit codes or user-facing remediation hints is
// classified into a fixed Kind, wrapped with github.com/pkg/errors so a
// verbose run can still print the underlying cause chain.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the fixed error taxonomy. Each Kind carries its own retry and
// remediation conventions; see Hint for the user-facing text.
type Kind string

const (
	Configuration Kind = "configuration"
	Tool          Kind = "tool"
	Kubernetes    Kind = "kubernetes"
	Helm          Kind = "helm"
	Git           Kind = "git"
	Filesystem    Kind = "filesystem"
	State         Kind = "state"
	Validation    Kind = "validation"
	Hook          Kind = "hook"
)

// Error is a classified, remediation-annotated error. Commands print its
// Summary on one line, Hint on the next (when non-empty), and the wrapped
// cause chain only in --verbose mode.
type Error struct {
	kind    Kind
	summary string
	hint    string
	cause   error
}

// New creates a classified Error with no underlying cause.
func New(kind Kind, summary string) *Error {
	return &Error{kind: kind, summary: summary}
}

// Wrap classifies an existing error, preserving it as the cause.
func Wrap(kind Kind, cause error, summary string) *Error {
	return &Error{kind: kind, summary: summary, cause: cause}
}

// WithHint attaches a one-line remediation hint and returns the receiver for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.hint = hint
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.summary, e.cause.Error())
	}
	return e.summary
}

// Unwrap exposes the cause chain to errors.Is / errors.As / pkg/errors.Cause.
func (e *Error) Unwrap() error { return e.cause }

// Kind reports the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Summary is the one-sentence symptom, independent of any wrapped cause.
func (e *Error) Summary() string { return e.summary }

// Hint is the one-line remediation hint, or "" if none was set.
func (e *Error) Hint() string { return e.hint }

// Cause returns the underlying error, following pkg/errors convention.
func (e *Error) Cause() error { return e.cause }

// As extracts the nearest *Error in err's cause chain, if any.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ExitCode maps an error's Kind to the process exit code contribution
// described in spec.md §6.1. All classified errors contribute exit code 1;
// only the CLI layer knows about 130 (interrupt) and 2 (validate warnings).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
