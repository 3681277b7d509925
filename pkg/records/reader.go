// Package records streams the delimited input files of the dataset and
// turns each line into a typed entity. It performs no database access.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

const byteOrderMark = "\ufeff"

// Record is a successfully parsed input line.
type Record struct {
	// Line is the 1-based line number the record starts on. The header is line 1.
	Line   int
	Entity models.Entity
}

// RecordError rejects a single input line. Parsing continues after it.
type RecordError struct {
	Kind  models.EntityKind
	Line  int
	Field string
	Value string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s line %d: %v", e.Kind, e.Line, e.Err)
	}
	return fmt.Sprintf("%s line %d: field %s: %v", e.Kind, e.Line, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Reader streams one input file. Create it with Open and Close it when done.
type Reader struct {
	path         string
	kind         models.EntityKind
	file         *os.File
	csv          *csv.Reader
	columns      []column // columns[i] describes field i of every row
	decimalComma bool
}

// Open opens path and validates its header against kind. File-level
// failures wrap apperrors.ErrFileNotFound or apperrors.ErrHeaderMismatch.
func Open(path string, kind models.EntityKind, delimiter rune) (*Reader, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no file configured for %s", apperrors.ErrFileNotFound, kind)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrFileNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", apperrors.ErrFileNotFound, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrFileNotFound, path, err)
	}

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	// FieldsPerRecord 0 pins every row to the header's width.
	cr.FieldsPerRecord = 0

	r := &Reader{
		path:         path,
		kind:         kind,
		file:         f,
		csv:          cr,
		decimalComma: delimiter != ',',
	}

	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s is empty", apperrors.ErrHeaderMismatch, r.path)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: unreadable header: %v", apperrors.ErrHeaderMismatch, r.path, err)
	}

	seen := make(map[string]bool, len(header))
	columns := make([]column, len(header))
	var unknown []string

	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, byteOrderMark)
		}
		name = strings.ToLower(strings.TrimSpace(name))

		col, ok := lookupColumn(r.kind, name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[col.name] {
			return fmt.Errorf("%w: %s: duplicate column %q", apperrors.ErrHeaderMismatch, r.path, col.name)
		}
		seen[col.name] = true
		columns[i] = col
	}

	var missing []string
	for _, c := range schemas[r.kind] {
		if !seen[c.name] {
			missing = append(missing, c.name)
		}
	}

	if len(unknown) > 0 || len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s does not match %s columns (missing %v, unexpected %v)",
			apperrors.ErrHeaderMismatch, r.path, r.kind, missing, unknown)
	}

	r.columns = columns
	return nil
}

// Kind returns the entity kind this reader decodes.
func (r *Reader) Kind() models.EntityKind {
	return r.kind
}

// Path returns the file being read.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// All returns a lazy sequence over the data lines. Each element is either a
// record with a nil error, or a nil record with a *RecordError; iteration
// continues after a RecordError. Any other error is an I/O failure and ends
// the sequence.
func (r *Reader) All() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for {
			fields, err := r.csv.Read()
			if errors.Is(err, io.EOF) {
				return
			}

			var parseErr *csv.ParseError
			if err != nil && errors.As(err, &parseErr) {
				recErr := &RecordError{
					Kind: r.kind,
					Line: parseErr.StartLine,
					Err:  fmt.Errorf("%w: %v", apperrors.ErrMalformedRecord, parseErr.Err),
				}
				if !yield(nil, recErr) {
					return
				}
				continue
			}
			if err != nil {
				yield(nil, fmt.Errorf("failed to read %s: %w", r.path, err))
				return
			}

			line, _ := r.csv.FieldPos(0)
			rec, recErr := r.decode(fields, line)
			if recErr != nil {
				if !yield(nil, recErr) {
					return
				}
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (r *Reader) decode(fields []string, line int) (*Record, *RecordError) {
	vals := make(values, len(r.columns))
	for i, col := range r.columns {
		v, err := coerce(col, fields[i], r.decimalComma)
		if err != nil {
			return nil, &RecordError{
				Kind:  r.kind,
				Line:  line,
				Field: col.name,
				Value: logging.TruncateValue(fields[i]),
				Err:   err,
			}
		}
		vals[col.name] = v
	}
	return &Record{Line: line, Entity: decoders[r.kind](vals)}, nil
}

// CountRecords returns the number of data lines in path, not counting the
// header. Malformed lines are counted too. It is used to report how many rows
// a skipped file held.
func CountRecords(path string, delimiter rune) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	count := 0
	for {
		_, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if err != nil && !errors.As(err, &parseErr) {
			return 0, err
		}
		count++
	}

	if count == 0 {
		return 0, nil
	}
	return count - 1, nil
}
