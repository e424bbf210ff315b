package csvinput

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"unicode"

	"github.com/cwygoda/transcriber/internal/domain"
)

var (
	ErrTooFewFields = errors.New("expected at least id and url columns")
	ErrEmptyURL     = errors.New("url column is empty")
	ErrEmptyID      = errors.New("id column is empty")
	ErrInvalidURL   = errors.New("url contains whitespace or control characters")
)

// RecordError is a malformed row. The row is skipped and loading continues.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Loader reads entries from a CSV file of id,url[,description] rows.
type Loader struct {
	path string
}

// New verifies the file can be opened.
func New(path string) (*Loader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.Fatal(domain.FatalInput, fmt.Errorf("open input: %w", err))
	}
	f.Close()
	return &Loader{path: path}, nil
}

// Path returns the input file path.
func (l *Loader) Path() string {
	return l.path
}

// Entries streams entries in file order. Each range re-reads the file.
// Malformed rows yield a *RecordError and iteration continues; an I/O
// failure yields a fatal input error and iteration stops.
func (l *Loader) Entries() iter.Seq2[domain.Entry, error] {
	return func(yield func(domain.Entry, error) bool) {
		f, err := os.Open(l.path)
		if err != nil {
			yield(domain.Entry{}, domain.Fatal(domain.FatalInput, fmt.Errorf("open input: %w", err)))
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		r.Comment = '#'
		r.ReuseRecord = true

		first := true
		for {
			record, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					if !yield(domain.Entry{}, &RecordError{Line: pe.Line, Err: pe.Err}) {
						return
					}
					continue
				}
				yield(domain.Entry{}, domain.Fatal(domain.FatalInput, fmt.Errorf("read input: %w", err)))
				return
			}

			if first {
				first = false
				if isHeader(record) {
					continue
				}
			}

			line, _ := r.FieldPos(0)
			entry, err := parseRecord(record)
			if err != nil {
				if !yield(domain.Entry{}, &RecordError{Line: line, Err: err}) {
					return
				}
				continue
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func parseRecord(record []string) (domain.Entry, error) {
	if len(record) < 2 {
		return domain.Entry{}, ErrTooFewFields
	}
	e := domain.Entry{
		ID:  clean(record[0]),
		URL: clean(record[1]),
	}
	if len(record) > 2 {
		e.Description = clean(record[2])
	}
	if e.URL == "" {
		return domain.Entry{}, ErrEmptyURL
	}
	if e.ID == "" {
		return domain.Entry{}, ErrEmptyID
	}
	// Progress logs store one url per line with a tab separator.
	if strings.IndexFunc(e.URL, invalidURLRune) >= 0 {
		return domain.Entry{}, ErrInvalidURL
	}
	return e, nil
}

func invalidURLRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}

func clean(field string) string {
	return strings.Trim(strings.TrimSpace(field), `"`)
}

func isHeader(record []string) bool {
	return len(record) >= 2 && strings.EqualFold(clean(record[1]), "url")
}
