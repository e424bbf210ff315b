package domain

import (
	"context"
	"errors"
	"testing"
)

// mockStore implements ProgressStore for testing.
type mockStore struct {
	snap      Snapshot
	completed []Entry
	failed    []FailureRecord
	loadErr   error
	recordErr error
}

func (m *mockStore) Load(ctx context.Context) (Snapshot, error) {
	return m.snap, m.loadErr
}

func (m *mockStore) RecordCompleted(ctx context.Context, e Entry) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.completed = append(m.completed, e)
	return nil
}

func (m *mockStore) RecordFailed(ctx context.Context, rec FailureRecord) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.failed = append(m.failed, rec)
	return nil
}

func TestNewTracker_LoadError(t *testing.T) {
	store := &mockStore{loadErr: errors.New("disk gone")}
	if _, err := NewTracker(context.Background(), store); err == nil {
		t.Fatal("NewTracker() error = nil, want error")
	}
}

func TestTracker_State(t *testing.T) {
	store := &mockStore{snap: Snapshot{
		Completed: []Entry{
			{URL: "https://youtu.be/aaaaaaaaaaa"},
			{ID: "local-7", URL: "https://example.com/seven"},
		},
		Failed: []FailureRecord{
			{URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb", Reason: ReasonTranscriptUnavailable},
		},
	}}
	tr, err := NewTracker(context.Background(), store)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}

	tests := []struct {
		name  string
		entry Entry
		want  EntryState
	}{
		{"completed by url", Entry{ID: "x", URL: "https://youtu.be/aaaaaaaaaaa"}, StateCompleted},
		{"completed by video id", Entry{ID: "aaaaaaaaaaa", URL: "https://youtube.com/watch?v=aaaaaaaaaaa&t=1"}, StateCompleted},
		{"completed by alternate url form", Entry{ID: "x", URL: "https://www.youtube.com/embed/aaaaaaaaaaa"}, StateCompleted},
		{"completed by id", Entry{ID: "local-7", URL: "https://example.com/7"}, StateCompleted},
		{"failed by url", Entry{ID: "y", URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb"}, StateFailed},
		{"failed by alternate url form", Entry{ID: "y", URL: "https://youtu.be/bbbbbbbbbbb"}, StateFailed},
		{"pending", Entry{ID: "z", URL: "https://youtu.be/ccccccccccc"}, StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.State(tt.entry); got != tt.want {
				t.Errorf("State() = %q, want %q", got, tt.want)
			}
			if got := tr.IsResolved(tt.entry); got != (tt.want != StatePending) {
				t.Errorf("IsResolved() = %v", got)
			}
		})
	}
}

func TestTracker_CompletedWinsOverFailed(t *testing.T) {
	url := "https://youtu.be/aaaaaaaaaaa"
	store := &mockStore{snap: Snapshot{
		Completed: []Entry{{URL: url}},
		Failed:    []FailureRecord{{URL: url, Reason: ReasonNetwork}},
	}}
	tr, err := NewTracker(context.Background(), store)
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}

	if got := tr.State(Entry{URL: url}); got != StateCompleted {
		t.Errorf("State() = %q, want %q", got, StateCompleted)
	}
	if len(tr.Failures()) != 0 {
		t.Errorf("Failures() len = %d, want 0", len(tr.Failures()))
	}
}

func TestTracker_MarkCompleted(t *testing.T) {
	store := &mockStore{}
	tr, _ := NewTracker(context.Background(), store)
	ctx := context.Background()
	e := Entry{ID: "a", URL: "https://youtu.be/aaaaaaaaaaa"}

	if err := tr.MarkCompleted(ctx, e); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if len(store.completed) != 1 {
		t.Errorf("store completed = %d, want 1", len(store.completed))
	}
	if got := tr.State(e); got != StateCompleted {
		t.Errorf("State() = %q, want %q", got, StateCompleted)
	}

	if err := tr.MarkCompleted(ctx, e); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second MarkCompleted() error = %v, want %v", err, ErrAlreadyResolved)
	}
	if err := tr.MarkFailed(ctx, e, ReasonNetwork, "x"); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("MarkFailed() after complete error = %v, want %v", err, ErrAlreadyResolved)
	}
	if len(store.failed) != 0 {
		t.Errorf("store failed = %d, want 0", len(store.failed))
	}
}

func TestTracker_MarkFailed(t *testing.T) {
	store := &mockStore{snap: Snapshot{
		Failed: []FailureRecord{{URL: "https://example.com/old", Reason: ReasonRateLimited}},
	}}
	tr, _ := NewTracker(context.Background(), store)
	ctx := context.Background()
	e := Entry{ID: "b", URL: "https://youtu.be/bbbbbbbbbbb"}

	if err := tr.MarkFailed(ctx, e, ReasonTranscriptUnavailable, "no captions"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	if len(store.failed) != 1 {
		t.Fatalf("store failed = %d, want 1", len(store.failed))
	}
	rec := store.failed[0]
	if rec.URL != e.URL || rec.EntryID != e.ID || rec.Reason != ReasonTranscriptUnavailable || rec.Detail != "no captions" {
		t.Errorf("recorded %+v", rec)
	}
	if got := tr.State(e); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}

	_, failed := tr.Counts()
	if failed != 2 {
		t.Errorf("Counts() failed = %d, want 2", failed)
	}
	if n := len(tr.NewFailures()); n != 1 {
		t.Errorf("NewFailures() len = %d, want 1", n)
	}
}

func TestTracker_RecordErrorLeavesPending(t *testing.T) {
	store := &mockStore{recordErr: errors.New("disk full")}
	tr, _ := NewTracker(context.Background(), store)
	e := Entry{ID: "a", URL: "https://youtu.be/aaaaaaaaaaa"}

	if err := tr.MarkCompleted(context.Background(), e); err == nil {
		t.Fatal("MarkCompleted() error = nil, want error")
	}
	if got := tr.State(e); got != StatePending {
		t.Errorf("State() = %q, want %q", got, StatePending)
	}
}

func TestTracker_Partition(t *testing.T) {
	store := &mockStore{snap: Snapshot{
		Completed: []Entry{{URL: "https://example.com/a"}},
		Failed:    []FailureRecord{{URL: "https://example.com/b", Reason: ReasonNetwork}},
	}}
	tr, _ := NewTracker(context.Background(), store)

	entries := []Entry{
		{ID: "a", URL: "https://example.com/a"},
		{ID: "b", URL: "https://example.com/b"},
		{ID: "c", URL: "https://example.com/c"},
		{ID: "d", URL: "https://example.com/d"},
	}
	p := tr.Partition(entries)

	if len(p[StateCompleted]) != 1 || len(p[StateFailed]) != 1 || len(p[StatePending]) != 2 {
		t.Errorf("Partition() sizes = %d/%d/%d, want 1/1/2",
			len(p[StateCompleted]), len(p[StateFailed]), len(p[StatePending]))
	}
	total := len(p[StateCompleted]) + len(p[StateFailed]) + len(p[StatePending])
	if total != len(entries) {
		t.Errorf("Partition() total = %d, want %d", total, len(entries))
	}
}
