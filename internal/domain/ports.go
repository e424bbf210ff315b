package domain

import "context"

// ProgressStore is the driven port for durable progress bookkeeping.
// Records must be durable before the call returns.
type ProgressStore interface {
	Load(ctx context.Context) (Snapshot, error)
	RecordCompleted(ctx context.Context, e Entry) error
	RecordFailed(ctx context.Context, rec FailureRecord) error
}

// Fetcher is the driven port for the transcript service.
// Every returned error is a *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, e Entry, language string) (TranscriptResult, error)
}

// ArtifactWriter persists a fetched transcript.
type ArtifactWriter interface {
	Write(e Entry, res TranscriptResult) error
}

// Gate paces outbound calls.
type Gate interface {
	Wait(ctx context.Context) error
}
