package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwygoda/transcriber/internal/domain"
)

func setupTestRepo(t *testing.T) (*Repository, string, func()) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cleanup := func() {
		repo.Close()
		os.Remove(dbPath)
	}
	return repo, dbPath, cleanup
}

func TestRepository_LoadEmpty(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()

	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Completed) != 0 || len(snap.Failed) != 0 {
		t.Errorf("Load() = %+v, want empty", snap)
	}
}

func TestRepository_RecordAndLoad(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	a := domain.Entry{ID: "a", URL: "https://youtu.be/aaaaaaaaaaa"}
	c := domain.Entry{ID: "c", URL: "https://youtu.be/ccccccccccc"}

	if err := repo.RecordCompleted(ctx, a); err != nil {
		t.Fatalf("RecordCompleted() error = %v", err)
	}
	err := repo.RecordFailed(ctx, domain.FailureRecord{
		URL:     "https://youtu.be/bbbbbbbbbbb",
		EntryID: "b",
		Reason:  domain.ReasonTranscriptUnavailable,
		Detail:  "status 404",
	})
	if err != nil {
		t.Fatalf("RecordFailed() error = %v", err)
	}
	repo.RecordCompleted(ctx, c)

	snap, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(snap.Completed) != 2 {
		t.Fatalf("Completed len = %d, want 2", len(snap.Completed))
	}
	if snap.Completed[0] != a || snap.Completed[1] != c {
		t.Errorf("Completed = %+v, want [a c] in insertion order", snap.Completed)
	}

	if len(snap.Failed) != 1 {
		t.Fatalf("Failed len = %d, want 1", len(snap.Failed))
	}
	want := domain.FailureRecord{
		URL:     "https://youtu.be/bbbbbbbbbbb",
		EntryID: "b",
		Reason:  domain.ReasonTranscriptUnavailable,
		Detail:  "status 404",
	}
	if snap.Failed[0] != want {
		t.Errorf("Failed[0] = %+v, want %+v", snap.Failed[0], want)
	}
}

func TestRepository_SurvivesReopen(t *testing.T) {
	repo, dbPath, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	repo.RecordCompleted(ctx, domain.Entry{ID: "a", URL: "https://example.com/a"})
	firstRun := repo.RunID()
	repo.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()

	if reopened.RunID() == firstRun {
		t.Error("RunID() should differ between opens")
	}

	snap, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Completed) != 1 || snap.Completed[0].ID != "a" {
		t.Errorf("Completed = %+v, want a", snap.Completed)
	}

	var runID string
	if err := reopened.db.QueryRow(`SELECT run_id FROM resolutions WHERE url = ?`, "https://example.com/a").Scan(&runID); err != nil {
		t.Fatal(err)
	}
	if runID != firstRun {
		t.Errorf("run_id = %q, want %q", runID, firstRun)
	}
}

func TestRepository_LoadIgnoresUnknownRows(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := repo.db.Exec(`INSERT INTO resolutions (run_id, url, status) VALUES ('x', 'https://example.com/a', 'processing')`); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.db.Exec(`INSERT INTO resolutions (run_id, url, status) VALUES ('x', '', 'completed')`); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.db.Exec(`INSERT INTO resolutions (run_id, url, status, reason) VALUES ('x', 'https://example.com/b', 'failed', 'Mystery')`); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Completed) != 0 {
		t.Errorf("Completed = %+v, want none", snap.Completed)
	}
	if len(snap.Failed) != 1 || snap.Failed[0].Reason != domain.ReasonUnknown {
		t.Errorf("Failed = %+v, want one Unknown record", snap.Failed)
	}
}

func TestRepository_RetryAfterDelete(t *testing.T) {
	repo, _, cleanup := setupTestRepo(t)
	defer cleanup()

	ctx := context.Background()
	b := domain.Entry{ID: "b", URL: "https://example.com/b"}
	repo.RecordFailed(ctx, domain.FailureRecord{URL: b.URL, EntryID: b.ID, Reason: domain.ReasonNetwork})

	tr, _ := domain.NewTracker(ctx, repo)
	if !tr.IsResolved(b) {
		t.Fatal("b should be resolved before delete")
	}

	if _, err := repo.db.Exec(`DELETE FROM resolutions WHERE url = ?`, b.URL); err != nil {
		t.Fatal(err)
	}

	tr, _ = domain.NewTracker(ctx, repo)
	if tr.IsResolved(b) {
		t.Error("b should be pending after its row was deleted")
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "nested", "test.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer repo.Close()

	// Verify directory was created
	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("New() did not create parent directory")
	}
}
