package sqlite

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/transcriber/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Rows are only ever inserted. Deleting a row is how a user forces a retry.
const schema = `
CREATE TABLE IF NOT EXISTS resolutions (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL,
    entry_id   TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL,
    status     TEXT NOT NULL,
    reason     TEXT,
    detail     TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_resolutions_url ON resolutions(url);
`

// Repository implements domain.ProgressStore using SQLite.
type Repository struct {
	db    *sql.DB
	runID string
}

// New opens the database at dbPath, initializing the schema if needed.
// Every row written through the repository is tagged with a fresh run id.
func New(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One process, one writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=FULL;`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db, runID: uuid.NewString()}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// RunID identifies the rows written by this process.
func (r *Repository) RunID() string {
	return r.runID
}

// Load returns all resolutions in insertion order.
func (r *Repository) Load(ctx context.Context) (domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, entry_id, url, status, COALESCE(reason, ''), COALESCE(detail, '')
		 FROM resolutions ORDER BY seq ASC`,
	)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer rows.Close()

	var snap domain.Snapshot
	for rows.Next() {
		var (
			seq            int64
			entryID, url   string
			status         string
			reason, detail string
		)
		if err := rows.Scan(&seq, &entryID, &url, &status, &reason, &detail); err != nil {
			return domain.Snapshot{}, err
		}
		if url == "" {
			log.Printf("warning: resolution %d has no url, ignored", seq)
			continue
		}

		switch domain.EntryState(status) {
		case domain.StateCompleted:
			snap.Completed = append(snap.Completed, domain.Entry{ID: entryID, URL: url})
		case domain.StateFailed:
			rsn, _ := domain.ParseReason(reason)
			snap.Failed = append(snap.Failed, domain.FailureRecord{
				URL:     url,
				EntryID: entryID,
				Reason:  rsn,
				Detail:  detail,
			})
		default:
			log.Printf("warning: resolution %d has unknown status %q, ignored", seq, status)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	log.Printf("loaded %d completed and %d failed entries from database", len(snap.Completed), len(snap.Failed))
	return snap, nil
}

// RecordCompleted inserts a completed row.
func (r *Repository) RecordCompleted(ctx context.Context, e domain.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resolutions (run_id, entry_id, url, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.runID, e.ID, e.URL, domain.StateCompleted, time.Now(),
	)
	return err
}

// RecordFailed inserts a failed row.
func (r *Repository) RecordFailed(ctx context.Context, rec domain.FailureRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resolutions (run_id, entry_id, url, status, reason, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.runID, rec.EntryID, rec.URL, domain.StateFailed, string(rec.Reason), rec.Detail, time.Now(),
	)
	return err
}
