package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mobiqc/internal/logging"
	"mobiqc/internal/qc"
	"mobiqc/internal/recording"
	"mobiqc/internal/runlog"
)

// Outcome statuses.
const (
	StatusSaved  = "Saved"
	StatusExists = "Exists"
)

// Outcome is the result of one Generate call.
type Outcome struct {
	Status  string
	Subject string
	// Rows are the ledger rows of the subject: the existing ones when
	// Status is StatusExists, the appended one when StatusSaved.
	Rows []*Row
	// Record is the computed record; nil when no computation ran.
	Record *qc.Record
	RunID  string
}

// Collector computes the record of one recording.
type Collector interface {
	Collect(ctx context.Context, req qc.Request) (*qc.Record, error)
}

// RunRecorder persists run history. *runlog.Store implements it.
type RunRecorder interface {
	Start(ctx context.Context, subject, recording string) (*runlog.Run, error)
	Finish(ctx context.Context, run *runlog.Run, status runlog.Status, err error) error
}

// Generator produces ledger rows for recordings.
type Generator struct {
	Ledger    *Ledger
	Collector Collector
	// Runs is optional.
	Runs RunRecorder
	// Open loads a recording; recording.Open when nil.
	Open   func(path string) (*recording.Session, error)
	Logger *slog.Logger
}

// Generate adds the QC row for the recording at path unless its subject is
// already in the ledger, in which case the existing rows are returned
// without any computation.
func (g *Generator) Generate(ctx context.Context, path string) (Outcome, error) {
	logger := g.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	subject, err := recording.ParseSubjectID(path)
	if err != nil {
		return Outcome{}, err
	}
	ctx = logging.WithSubject(ctx, subject)

	var run *runlog.Run
	if g.Runs != nil {
		run, err = g.Runs.Start(ctx, subject, path)
		if err != nil {
			return Outcome{}, fmt.Errorf("record run: %w", err)
		}
		ctx = logging.WithRunID(ctx, run.ID)
	}
	outcome, err := g.generate(ctx, logger, subject, path)
	if run != nil {
		outcome.RunID = run.ID
		g.finish(ctx, logger, run, outcome, err)
	}
	return outcome, err
}

func (g *Generator) generate(ctx context.Context, logger *slog.Logger, subject, path string) (Outcome, error) {
	outcome := Outcome{Subject: subject}
	existing, err := g.Ledger.Lookup(subject)
	if err != nil {
		return outcome, err
	}
	if len(existing) > 0 {
		logger.InfoContext(ctx, "subject already in report",
			logging.String(logging.FieldEventType, "report_exists"),
			logging.Int("rows", len(existing)))
		outcome.Status = StatusExists
		outcome.Rows = existing
		return outcome, nil
	}

	started := time.Now()
	open := g.Open
	if open == nil {
		open = recording.Open
	}
	session, err := open(path)
	if err != nil {
		return outcome, err
	}
	date, fromHeader := session.CollectionDate()
	if !fromHeader {
		logging.WarnWithContext(ctx, logger, "recording header has no date; using file modification time", "collection_date_fallback",
			logging.String("collection_date", date),
			logging.String(logging.FieldImpact, "collection date may be the copy date"),
			logging.String(logging.FieldErrorHint, "check the recorder clock settings"))
	}
	stim, err := session.Stim()
	if err != nil {
		return outcome, err
	}

	record, err := g.Collector.Collect(ctx, qc.Request{
		Path:           path,
		SubjectID:      subject,
		CollectionDate: date,
		Stim:           stim,
		Session:        session,
	})
	if err != nil {
		return outcome, err
	}
	outcome.Record = record

	appended, rows, err := g.Ledger.AppendIfAbsent(ctx, record)
	if err != nil {
		return outcome, err
	}
	if !appended {
		logging.WarnWithContext(ctx, logger, "subject appended by a concurrent run; discarding this computation", "report_race",
			logging.String(logging.FieldImpact, "the earlier row is kept"))
		outcome.Status = StatusExists
		outcome.Rows = rows
		return outcome, nil
	}

	row, err := g.savedRow(subject)
	if err != nil {
		return outcome, err
	}
	outcome.Status = StatusSaved
	outcome.Rows = row
	logger.InfoContext(ctx, "report row saved",
		logging.String(logging.FieldEventType, "report_saved"),
		logging.String("ledger", g.Ledger.Path),
		logging.Int("columns", record.Len()),
		logging.Duration("elapsed", time.Since(started)))
	return outcome, nil
}

func (g *Generator) savedRow(subject string) ([]*Row, error) {
	rows, err := g.Ledger.Lookup(subject)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("report: appended row not found in ledger")
	}
	return rows, nil
}

func (g *Generator) finish(ctx context.Context, logger *slog.Logger, run *runlog.Run, outcome Outcome, runErr error) {
	status := runlog.StatusFailed
	switch {
	case runErr != nil:
	case outcome.Status == StatusSaved:
		status = runlog.StatusSaved
	case outcome.Status == StatusExists:
		status = runlog.StatusExists
	}
	if outcome.Record != nil {
		run.Columns = outcome.Record.Len()
		if v, ok := outcome.Record.Get("eeg_percent_good"); ok {
			if f, ok := v.(float64); ok {
				run.PercentGood = f
			}
		}
	}
	// Cancelled runs are still recorded.
	if err := g.Runs.Finish(context.WithoutCancel(ctx), run, status, runErr); err != nil {
		logging.WarnWithContext(ctx, logger, "failed to record run", "runlog_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history is incomplete"))
	}
}
