package qc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mobiqc/internal/logging"
	"mobiqc/internal/modality"
	"mobiqc/internal/recording"
	"mobiqc/internal/services"
)

// Column names that precede every namespace.
const (
	ColumnSubject        = "Subject"
	ColumnCollectionDate = "Collection Date"
)

// DefaultTask is the stimulus task every adapter is evaluated on.
const DefaultTask = "Experiment"

// ErrAggregationFailed marks records abandoned because an adapter failed.
var ErrAggregationFailed = errors.New("aggregation failed")

// AggregationError names the modality that aborted a record.
type AggregationError struct {
	Modality string
	Err      error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("qc: %s adapter: %v", e.Modality, e.Err)
}

func (e *AggregationError) Unwrap() []error {
	return []error{ErrAggregationFailed, e.Err}
}

// Record is one report row in column order.
type Record = modality.Metrics

// Request identifies the recording to aggregate.
type Request struct {
	Path           string
	SubjectID      string
	CollectionDate string
	Stim           recording.StimTable
	// Session is handed to adapters that read streams.
	Session *recording.Session
}

// Aggregator runs the registered adapters.
type Aggregator struct {
	Entries []modality.Entry
	Task    string
	Logger  *slog.Logger
}

// NewAggregator returns an aggregator over entries evaluated on task.
func NewAggregator(entries []modality.Entry, task string, logger *slog.Logger) *Aggregator {
	if task == "" {
		task = DefaultTask
	}
	return &Aggregator{
		Entries: entries,
		Task:    task,
		Logger:  logging.NewComponentLogger(logger, "qc"),
	}
}

// Collect computes the record for req. Context cancellation is honoured
// between adapters.
func (a *Aggregator) Collect(ctx context.Context, req Request) (*Record, error) {
	logger := a.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	task := a.Task
	if task == "" {
		task = DefaultTask
	}
	ctx = logging.WithSubject(ctx, req.SubjectID)

	record := modality.NewMetrics()
	record.Set(ColumnSubject, req.SubjectID)
	record.Set(ColumnCollectionDate, req.CollectionDate)

	input := modality.Input{
		Path:      req.Path,
		SubjectID: req.SubjectID,
		Task:      task,
		Session:   req.Session,
		Stim:      req.Stim,
	}
	started := time.Now()
	for _, entry := range a.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		modCtx := logging.WithModality(ctx, entry.Modality)
		stepStarted := time.Now()
		logger.DebugContext(modCtx, "adapter started", logging.String("backend", entry.Backend))

		metrics, err := entry.Adapter.ComputeMetrics(modCtx, input)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			attrs := []logging.Attr{
				logging.Error(err),
				logging.String(logging.FieldImpact, "no report row is written for this subject"),
			}
			if hint := services.Hint(err); hint != "" {
				attrs = append(attrs, logging.String(logging.FieldErrorHint, hint))
			}
			logging.ErrorWithContext(modCtx, logger, "adapter failed", "adapter_failed", attrs...)
			return nil, &AggregationError{Modality: entry.Modality, Err: err}
		}
		n := 0
		if metrics != nil {
			for pair := metrics.Oldest(); pair != nil; pair = pair.Next() {
				record.Set(entry.Modality+"_"+pair.Key, pair.Value)
				n++
			}
		}
		logger.InfoContext(modCtx, "adapter finished",
			logging.Int("metrics", n),
			logging.Duration("elapsed", time.Since(stepStarted)))
	}
	logger.InfoContext(ctx, "qc record assembled",
		logging.String(logging.FieldEventType, "record_assembled"),
		logging.Int("columns", record.Len()),
		logging.Duration("elapsed", time.Since(started)))
	return record, nil
}
