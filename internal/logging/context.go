package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one QC invocation across all of its log lines.
	FieldRunID = "run_id"
	// FieldSubject is the participant identifier parsed from the recording path.
	FieldSubject = "subject"
	// FieldModality is the QC namespace currently being computed (eeg, et, ...).
	FieldModality = "modality"
	// FieldEventType is a stable machine-readable label for notable events.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey int

const (
	runIDKey contextKey = iota
	subjectKey
	modalityKey
)

// WithRunID tags ctx with the run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withValue(ctx, runIDKey, runID)
}

// WithSubject tags ctx with the subject identifier.
func WithSubject(ctx context.Context, subject string) context.Context {
	return withValue(ctx, subjectKey, subject)
}

// WithModality tags ctx with the modality namespace.
func WithModality(ctx context.Context, modality string) context.Context {
	return withValue(ctx, modalityKey, modality)
}

// RunIDFromContext returns the run identifier stored in ctx.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, runIDKey)
}

// SubjectFromContext returns the subject identifier stored in ctx.
func SubjectFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, subjectKey)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringValue(ctx, runIDKey); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if subject, ok := stringValue(ctx, subjectKey); ok {
		fields = append(fields, slog.String(FieldSubject, subject))
	}
	if modality, ok := stringValue(ctx, modalityKey); ok {
		fields = append(fields, slog.String(FieldModality, modality))
	}
	return fields
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}
