package domain

// EntryState is the resolution state of an entry as recorded by the progress store.
type EntryState string

const (
	StatePending   EntryState = "pending"
	StateCompleted EntryState = "completed"
	StateFailed    EntryState = "failed"
)

// Entry is one video to fetch a transcript for.
type Entry struct {
	ID          string
	URL         string
	Description string
}

// Keys returns the identity keys of the entry in lookup order: id, url, then
// the canonical video id when the url carries one.
func (e Entry) Keys() []string {
	keys := make([]string, 0, 3)
	if e.ID != "" {
		keys = append(keys, e.ID)
	}
	if e.URL != "" {
		keys = append(keys, e.URL)
	}
	if vid, ok := VideoID(e.URL); ok && vid != e.ID {
		keys = append(keys, vid)
	}
	return keys
}

// TranscriptResult is a fetched transcript awaiting persistence.
type TranscriptResult struct {
	Entry    Entry
	Text     string
	Language string
}

// FailureRecord is one line of the failure log.
type FailureRecord struct {
	URL     string
	EntryID string
	Reason  FailureReason
	Detail  string
}

// Snapshot is the persisted progress read at startup.
// Completed entries may carry only a URL.
type Snapshot struct {
	Completed []Entry
	Failed    []FailureRecord
}

// Summary reports the outcome of a run.
type Summary struct {
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
	Invalid   int
	Remaining int
}
