package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrAmbiguous     = errors.New("ambiguous match")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later status classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// NotFoundError reports a required file or stream that has no match.
type NotFoundError struct {
	What    string
	Pattern string
}

func (e *NotFoundError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("%s not found", e.What)
	}
	return fmt.Sprintf("%s not found (%s)", e.What, e.Pattern)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousMatchError reports more than one candidate where exactly one is
// required.
type AmbiguousMatchError struct {
	What    string
	Pattern string
	Matches []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s is ambiguous (%s): %d matches: %s", e.What, e.Pattern, len(e.Matches), strings.Join(e.Matches, ", "))
}

// Is lets errors.Is(err, ErrAmbiguous) match.
func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguous }

// NeedsReview reports whether a failure is caused by the inputs (missing or
// ambiguous files, bad configuration) rather than a crashed computation.
func NeedsReview(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrAmbiguous):
		return true
	default:
		return false
	}
}

// Hint returns a short operator-facing suggestion for a classified error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "check the data directory layout and file names"
	case errors.Is(err, ErrAmbiguous):
		return "remove or rename the extra matches"
	case errors.Is(err, ErrConfiguration):
		return "run mobiqc config validate"
	case errors.Is(err, ErrExternalTool):
		return "run mobiqc doctor"
	case errors.Is(err, ErrTimeout):
		return "raise the adapter timeout"
	default:
		return ""
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
