package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

var ErrAlreadyResolved = errors.New("entry already resolved")

// Tracker is the single view of progress: what the store held at startup
// plus every transition it has since committed.
type Tracker struct {
	store ProgressStore

	mu        sync.RWMutex
	completed map[string]struct{}
	nComplete int
	failed    map[string]int
	failures  []FailureRecord
	loaded    int
}

// NewTracker loads the store snapshot and indexes it.
func NewTracker(ctx context.Context, store ProgressStore) (*Tracker, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	t := &Tracker{
		store:     store,
		completed: make(map[string]struct{}),
		failed:    make(map[string]int),
	}
	for _, e := range snap.Completed {
		t.indexCompleted(e)
	}
	for _, rec := range snap.Failed {
		if t.completedAny(failureKeys(rec)) {
			log.Printf("warning: %s is in both completed and failed logs, treating as completed", rec.URL)
			continue
		}
		t.indexFailed(rec)
	}
	t.loaded = len(t.failures)
	return t, nil
}

// IsResolved reports whether the entry is completed or failed.
func (t *Tracker) IsResolved(e Entry) bool {
	return t.State(e) != StatePending
}

// State returns the entry's partition. Completed takes precedence.
func (t *Tracker) State(e Entry) EntryState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := e.Keys()
	if t.completedAny(keys) {
		return StateCompleted
	}
	for _, k := range keys {
		if _, ok := t.failed[k]; ok {
			return StateFailed
		}
	}
	return StatePending
}

// MarkCompleted durably records the entry as completed.
func (t *Tracker) MarkCompleted(ctx context.Context, e Entry) error {
	if t.IsResolved(e) {
		return ErrAlreadyResolved
	}
	if err := t.store.RecordCompleted(ctx, e); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range e.Keys() {
		t.completed[k] = struct{}{}
	}
	t.nComplete++
	return nil
}

// MarkFailed durably records the entry as failed with reason and detail.
func (t *Tracker) MarkFailed(ctx context.Context, e Entry, reason FailureReason, detail string) error {
	if t.IsResolved(e) {
		return ErrAlreadyResolved
	}
	rec := FailureRecord{URL: e.URL, EntryID: e.ID, Reason: reason, Detail: detail}
	if err := t.store.RecordFailed(ctx, rec); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexFailed(rec)
	return nil
}

// Counts returns the number of completed and failure records.
func (t *Tracker) Counts() (completed, failed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nComplete, len(t.failures)
}

// Failures returns a copy of all failure records, loaded ones first.
func (t *Tracker) Failures() []FailureRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]FailureRecord, len(t.failures))
	copy(out, t.failures)
	return out
}

// NewFailures returns the failure records committed since startup.
func (t *Tracker) NewFailures() []FailureRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]FailureRecord, len(t.failures)-t.loaded)
	copy(out, t.failures[t.loaded:])
	return out
}

// Partition splits entries into the three disjoint states.
func (t *Tracker) Partition(entries []Entry) map[EntryState][]Entry {
	out := map[EntryState][]Entry{
		StatePending:   nil,
		StateCompleted: nil,
		StateFailed:    nil,
	}
	for _, e := range entries {
		s := t.State(e)
		out[s] = append(out[s], e)
	}
	return out
}

func (t *Tracker) indexCompleted(e Entry) {
	keys := e.Keys()
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		t.completed[k] = struct{}{}
	}
	t.nComplete++
}

func (t *Tracker) indexFailed(rec FailureRecord) {
	t.failures = append(t.failures, rec)
	idx := len(t.failures) - 1
	for _, k := range failureKeys(rec) {
		t.failed[k] = idx
	}
}

func (t *Tracker) completedAny(keys []string) bool {
	for _, k := range keys {
		if _, ok := t.completed[k]; ok {
			return true
		}
	}
	return false
}

func failureKeys(rec FailureRecord) []string {
	return Entry{ID: rec.EntryID, URL: rec.URL}.Keys()
}
