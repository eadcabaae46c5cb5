package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"mobiqc/internal/fileutil"
	"mobiqc/internal/qc"
)

// Row maps ledger columns to cell text in header order.
type Row = orderedmap.OrderedMap[string, string]

// Table is the parsed ledger.
type Table struct {
	Header []string
	Rows   []*Row
}

// Lookup returns the rows whose Subject cell equals subject.
func (t *Table) Lookup(subject string) []*Row {
	subject = strings.TrimSpace(subject)
	var out []*Row
	for _, row := range t.Rows {
		if v, _ := row.Get(qc.ColumnSubject); strings.TrimSpace(v) == subject {
			out = append(out, row)
		}
	}
	return out
}

// Subjects lists the Subject column in file order.
func (t *Table) Subjects() []string {
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		v, _ := row.Get(qc.ColumnSubject)
		out = append(out, v)
	}
	return out
}

// Values returns the cells of row in header order.
func (t *Table) Values(row *Row) []string {
	out := make([]string, len(t.Header))
	for i, col := range t.Header {
		out[i], _ = row.Get(col)
	}
	return out
}

// Ledger is the CSV report on disk.
type Ledger struct {
	Path string
	// LockRetry is the polling interval while another process holds the
	// lock.
	LockRetry time.Duration
}

// NewLedger returns a ledger stored at path.
func NewLedger(path string) *Ledger {
	return &Ledger{Path: path, LockRetry: 50 * time.Millisecond}
}

// LockPath is the lock file guarding the ledger.
func (l *Ledger) LockPath() string {
	return l.Path + ".lock"
}

// Exists reports whether the ledger file is present.
func (l *Ledger) Exists() bool {
	_, err := os.Stat(l.Path)
	return err == nil
}

// Read parses the ledger. A missing file is an empty table.
func (l *Ledger) Read() (*Table, error) {
	f, err := os.Open(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	return parseTable(f)
}

// Lookup returns the ledger rows for subject.
func (l *Ledger) Lookup(subject string) ([]*Row, error) {
	table, err := l.Read()
	if err != nil {
		return nil, err
	}
	return table.Lookup(subject), nil
}

// AppendIfAbsent appends record unless its subject is already present. The
// check and the write happen under the ledger lock. When the subject exists
// the stored rows are returned and nothing is written.
func (l *Ledger) AppendIfAbsent(ctx context.Context, record *qc.Record) (bool, []*Row, error) {
	subjectValue, ok := record.Get(qc.ColumnSubject)
	if !ok {
		return false, nil, fmt.Errorf("ledger: record has no %s column", qc.ColumnSubject)
	}
	subject := FormatValue(subjectValue)

	unlock, err := l.lock(ctx)
	if err != nil {
		return false, nil, err
	}
	defer unlock()

	table, err := l.Read()
	if err != nil {
		return false, nil, err
	}
	if rows := table.Lookup(subject); len(rows) > 0 {
		return false, rows, nil
	}
	if err := l.write(table, record); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

func (l *Ledger) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	retry := l.LockRetry
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	fl := flock.New(l.LockPath())
	locked, err := fl.TryLockContext(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock ledger: %s is held by another process", l.LockPath())
	}
	return func() { _ = fl.Unlock() }, nil
}

// write appends record to table on disk. The header is written only when
// the file is new; keys the header lacks extend it and the file is
// rewritten.
func (l *Ledger) write(table *Table, record *qc.Record) error {
	keys := make([]string, 0, record.Len())
	cells := make(map[string]string, record.Len())
	for pair := record.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
		cells[pair.Key] = FormatValue(pair.Value)
	}

	if len(table.Header) == 0 {
		return l.rewrite(keys, [][]string{values(keys, cells)})
	}

	header := append([]string(nil), table.Header...)
	for _, key := range keys {
		if !slices.Contains(header, key) {
			header = append(header, key)
		}
	}
	if len(header) == len(table.Header) {
		f, err := os.OpenFile(l.Path, os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		if err := terminateLastLine(f); err != nil {
			f.Close()
			return fmt.Errorf("append ledger row: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(values(header, cells)); err != nil {
			f.Close()
			return fmt.Errorf("append ledger row: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return fmt.Errorf("append ledger row: %w", err)
		}
		return f.Close()
	}

	rows := make([][]string, 0, len(table.Rows)+1)
	for _, row := range table.Rows {
		old := make(map[string]string, row.Len())
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			old[pair.Key] = pair.Value
		}
		rows = append(rows, values(header, old))
	}
	rows = append(rows, values(header, cells))
	return l.rewrite(header, rows)
}

// rewrite replaces the ledger atomically.
func (l *Ledger) rewrite(header []string, rows [][]string) error {
	err := fileutil.WriteAtomicFunc(l.Path, 0o644, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("write ledger rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// terminateLastLine adds the newline that editors sometimes drop from the
// final row, so the appended row starts on its own line.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.WriteString("\n")
	return err
}

func values(header []string, cells map[string]string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = cells[col]
	}
	return out
}

func parseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}
	table := &Table{}
	if len(records) == 0 {
		return table, nil
	}
	table.Header = records[0]
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := orderedmap.New[string, string]()
		for i, col := range table.Header {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			row.Set(col, cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
