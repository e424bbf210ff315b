package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/cwygoda/transcriber/internal/adapter/http"
	"github.com/cwygoda/transcriber/internal/adapter/csvinput"
	"github.com/cwygoda/transcriber/internal/adapter/filestore"
	"github.com/cwygoda/transcriber/internal/adapter/output"
	"github.com/cwygoda/transcriber/internal/adapter/sqlite"
	"github.com/cwygoda/transcriber/internal/adapter/supadata"
	"github.com/cwygoda/transcriber/internal/config"
	"github.com/cwygoda/transcriber/internal/domain"
	"github.com/cwygoda/transcriber/internal/ratelimit"
	"github.com/cwygoda/transcriber/internal/report"
	"github.com/cwygoda/transcriber/internal/worker"
)

const (
	exitOK          = 0
	exitFatal       = 1
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		log.Printf("configuration error: %v", domain.Fatal(domain.FatalConfig, err))
		return exitFatal
	}

	rep := report.New(os.Stderr)
	log.SetOutput(rep.LogWriter())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("input: %s", cfg.InputPath)
	log.Printf("language: %s, format: %s, delay: %s", cfg.Language, cfg.Format, cfg.Delay)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Printf("%v", domain.Fatal(domain.FatalProgress, err))
		return exitFatal
	}
	defer closeStore()

	tracker, err := domain.NewTracker(ctx, store)
	if err != nil {
		log.Printf("%v", domain.Fatal(domain.FatalProgress, err))
		return exitFatal
	}
	done, failed := tracker.Counts()
	log.Printf("progress: %d completed, %d failed from earlier runs", done, failed)

	loader, err := csvinput.New(cfg.InputPath)
	if err != nil {
		log.Printf("%v", err)
		return exitFatal
	}

	outDir, err := output.EnsureDirectory(cfg.OutputDir, cfg.FallbackDir)
	if err != nil {
		log.Printf("%v", err)
		return exitFatal
	}

	client := supadata.New(cfg.APIKey,
		supadata.WithBaseURL(cfg.BaseURL),
		supadata.WithTimeout(cfg.RequestTimeout),
		supadata.WithFormat(cfg.Format),
	)
	limiter := ratelimit.New(cfg.Delay, ratelimit.WithCountdown(rep.Countdown))

	w := worker.New(tracker, client, output.New(outDir), limiter, cfg.Language)

	if cfg.StatusAddr != "" {
		srv := httpAdapter.NewServer(w, tracker, cfg.StatusAddr)
		go func() {
			log.Printf("status server listening on %s", cfg.StatusAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("status server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("status server shutdown error: %v", err)
			}
		}()
	}

	sum, err := w.Run(ctx, loader.Entries())
	rep.Summary(sum, tracker.NewFailures(), outDir)

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		log.Printf("interrupted, %d entries left for the next run", sum.Remaining)
		return exitInterrupted
	default:
		log.Printf("run aborted: %v", err)
		return exitFatal
	}
}

// openStore returns the configured progress store and its closer.
func openStore(cfg config.Config) (domain.ProgressStore, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		log.Printf("progress database: %s", cfg.DBPath)
		repo, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("run id: %s", repo.RunID())
		return repo, func() {
			if err := repo.Close(); err != nil {
				log.Printf("close progress database: %v", err)
			}
		}, nil
	default:
		log.Printf("progress logs: %s, %s", cfg.CompletedLog, cfg.FailedLog)
		store, err := filestore.New(cfg.CompletedLog, cfg.FailedLog)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
