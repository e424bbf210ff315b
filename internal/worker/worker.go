package worker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sync"

	"github.com/cwygoda/transcriber/internal/domain"
)

// Worker walks the input once and fetches every pending entry in order.
type Worker struct {
	tracker  *domain.Tracker
	fetcher  domain.Fetcher
	writer   domain.ArtifactWriter
	gate     domain.Gate
	language string

	mu   sync.Mutex
	live domain.Summary
}

// New creates a new worker.
func New(tracker *domain.Tracker, fetcher domain.Fetcher, writer domain.ArtifactWriter, gate domain.Gate, language string) *Worker {
	return &Worker{
		tracker:  tracker,
		fetcher:  fetcher,
		writer:   writer,
		gate:     gate,
		language: language,
	}
}

// Live returns the summary as of now. Safe to call while Run is active.
func (w *Worker) Live() domain.Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live
}

func (w *Worker) update(fn func(s *domain.Summary)) {
	w.mu.Lock()
	fn(&w.live)
	w.mu.Unlock()
}

// Run processes entries until the input is exhausted, ctx is cancelled, or a
// fatal error occurs. The returned summary is valid in all three cases.
// Cancellation returns ctx.Err() and leaves the in-flight entry unrecorded.
func (w *Worker) Run(ctx context.Context, entries iter.Seq2[domain.Entry, error]) (domain.Summary, error) {
	w.update(func(s *domain.Summary) { *s = domain.Summary{} })

	pending, err := w.collect(ctx, entries)
	if err != nil {
		return w.Live(), err
	}

	log.Printf("%d pending, %d already resolved, %d invalid",
		len(pending), w.Live().Skipped, w.Live().Invalid)

	for i, e := range pending {
		// Remaining is decremented per terminal entry, so an abort leaves
		// this entry and every later one counted.
		if err := w.process(ctx, i, len(pending), e); err != nil {
			return w.Live(), err
		}
	}
	return w.Live(), nil
}

// collect ranges the input and keeps the entries still pending.
func (w *Worker) collect(ctx context.Context, entries iter.Seq2[domain.Entry, error]) ([]domain.Entry, error) {
	var pending []domain.Entry
	for e, err := range entries {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		if err != nil {
			if domain.IsFatal(err) {
				return nil, err
			}
			log.Printf("skipping input record: %v", err)
			w.update(func(s *domain.Summary) { s.Total++; s.Invalid++ })
			continue
		}

		w.update(func(s *domain.Summary) { s.Total++ })
		if w.tracker.IsResolved(e) {
			w.update(func(s *domain.Summary) { s.Skipped++ })
			continue
		}
		pending = append(pending, e)
	}
	w.update(func(s *domain.Summary) { s.Remaining = len(pending) })
	return pending, nil
}

func (w *Worker) process(ctx context.Context, i, n int, e domain.Entry) error {
	tag := fmt.Sprintf("entry %d/%d (%s)", i+1, n, e.ID)

	// A duplicate id earlier in the input may have resolved this entry.
	if w.tracker.IsResolved(e) {
		log.Printf("%s: already resolved, skipping", tag)
		w.update(func(s *domain.Summary) { s.Skipped++; s.Remaining-- })
		return nil
	}

	if err := w.gate.Wait(ctx); err != nil {
		log.Printf("%s: stopped while waiting", tag)
		return err
	}

	log.Printf("%s: fetching %s", tag, e.URL)
	res, err := w.fetcher.Fetch(ctx, e, w.language)
	if cerr := ctx.Err(); cerr != nil {
		log.Printf("%s: interrupted, not recorded", tag)
		return cerr
	}
	if err != nil {
		fe := asFetchError(err)
		if fe.Fatal() {
			log.Printf("%s: %v", tag, fe)
			return domain.Fatal(domain.FatalConfig, fe)
		}
		return w.fail(ctx, tag, e, fe)
	}

	if err := w.writer.Write(e, res); err != nil {
		fe := asFetchError(err)
		if fe.Kind == domain.ReasonUnknown {
			fe = &domain.FetchError{Kind: domain.ReasonFileSystem, Err: err}
		}
		return w.fail(ctx, tag, e, fe)
	}

	if err := w.tracker.MarkCompleted(ctx, e); err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) {
			w.update(func(s *domain.Summary) { s.Skipped++; s.Remaining-- })
			return nil
		}
		return domain.Fatal(domain.FatalProgress, err)
	}
	log.Printf("%s: completed (%d chars, %s)", tag, len(res.Text), res.Language)
	w.update(func(s *domain.Summary) { s.Succeeded++; s.Remaining-- })
	return nil
}

func (w *Worker) fail(ctx context.Context, tag string, e domain.Entry, fe *domain.FetchError) error {
	log.Printf("%s: failed: %v", tag, fe)
	if err := w.tracker.MarkFailed(ctx, e, fe.Kind, fe.Description()); err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) {
			w.update(func(s *domain.Summary) { s.Skipped++; s.Remaining-- })
			return nil
		}
		return domain.Fatal(domain.FatalProgress, err)
	}
	w.update(func(s *domain.Summary) { s.Failed++; s.Remaining-- })
	return nil
}

func asFetchError(err error) *domain.FetchError {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &domain.FetchError{Kind: domain.ReasonUnknown, Err: err}
}
