package filestore

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cwygoda/transcriber/internal/domain"
)

// Store implements domain.ProgressStore with two append-only text logs:
// one URL per line for completed entries and "url<TAB>Reason: detail" for
// failures. Deleting a line is how a user forces a retry.
type Store struct {
	completed *AppendLog
	failed    *AppendLog
}

// New creates a store over the two log paths.
func New(completedPath, failedPath string) (*Store, error) {
	completed, err := NewAppendLog(completedPath)
	if err != nil {
		return nil, err
	}
	failed, err := NewAppendLog(failedPath)
	if err != nil {
		return nil, err
	}
	return &Store{completed: completed, failed: failed}, nil
}

// Load reads both logs. Malformed lines are skipped with a warning.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot

	err := s.completed.Lines(func(n int, line string) {
		url := strings.TrimSpace(line)
		if strings.ContainsAny(url, " \t") {
			log.Printf("warning: %s:%d: malformed completed line ignored", s.completed.Path(), n)
			return
		}
		snap.Completed = append(snap.Completed, domain.Entry{URL: url})
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	err = s.failed.Lines(func(n int, line string) {
		rec, ok := parseFailure(line)
		if !ok {
			log.Printf("warning: %s:%d: malformed failed line ignored", s.failed.Path(), n)
			return
		}
		snap.Failed = append(snap.Failed, rec)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	log.Printf("loaded %d completed and %d failed URLs", len(snap.Completed), len(snap.Failed))
	return snap, nil
}

// RecordCompleted appends the entry URL to the completed log.
func (s *Store) RecordCompleted(ctx context.Context, e domain.Entry) error {
	if err := s.completed.Append(e.URL); err != nil {
		return fmt.Errorf("record completed %s: %w", e.URL, err)
	}
	return nil
}

// RecordFailed appends the failure to the failed log.
func (s *Store) RecordFailed(ctx context.Context, rec domain.FailureRecord) error {
	if err := s.failed.Append(formatFailure(rec)); err != nil {
		return fmt.Errorf("record failed %s: %w", rec.URL, err)
	}
	return nil
}

func formatFailure(rec domain.FailureRecord) string {
	reason := string(rec.Reason)
	detail := flatten(rec.Detail)
	if detail == "" {
		return rec.URL + "\t" + reason
	}
	return rec.URL + "\t" + reason + ": " + detail
}

func parseFailure(line string) (domain.FailureRecord, bool) {
	url, rest, ok := strings.Cut(line, "\t")
	url = strings.TrimSpace(url)
	if !ok || url == "" {
		return domain.FailureRecord{}, false
	}

	name, detail, _ := strings.Cut(rest, ": ")
	reason, known := domain.ParseReason(name)
	if !known {
		// Not written by this program; keep the whole text as detail.
		detail = strings.TrimSpace(rest)
	}
	return domain.FailureRecord{URL: url, Reason: reason, Detail: detail}, true
}

func flatten(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	return strings.TrimSpace(s)
}
