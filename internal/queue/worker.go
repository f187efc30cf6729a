package queue

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/voxacaptions/caption-pipeline/internal/batch"
	"github.com/voxacaptions/caption-pipeline/internal/storage"
	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// Worker processes queued batches on a single dedicated goroutine. The
// recognition engine is resource-intensive and not safely shareable, so
// batches and the files within them run strictly one at a time.
type Worker struct {
	batchQueue   chan *Batch
	orchestrator *batch.Orchestrator
	store        *storage.CaptionStore
	driveClient  *storage.DriveClient
	db           *storage.MetadataDB
}

// NewWorker creates the batch worker
func NewWorker(
	orchestrator *batch.Orchestrator,
	store *storage.CaptionStore,
	driveClient *storage.DriveClient,
	db *storage.MetadataDB,
) *Worker {
	return &Worker{
		batchQueue:   make(chan *Batch, 100),
		orchestrator: orchestrator,
		store:        store,
		driveClient:  driveClient,
		db:           db,
	}
}

// Start launches the worker goroutine. The context stops the worker at
// batch/file boundaries only.
func (w *Worker) Start(ctx context.Context) {
	log.Println("Starting batch worker")
	go w.loop(ctx)
}

// Enqueue adds a batch to the queue
func (w *Worker) Enqueue(b *Batch) {
	b.Status = types.StatusQueued
	w.batchQueue <- b
	log.Printf("Batch %s enqueued (%d files)", b.ID, len(b.Requests))
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("Batch worker stopped")
			return
		case b := <-w.batchQueue:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC processing batch %s: %v\n%s",
							b.ID, r, string(debug.Stack()))
						b.Status = types.StatusFailed
					}
				}()
				w.processBatch(ctx, b)
			}()
		}
	}
}

// processBatch drives the orchestrator and records every outcome.
func (w *Worker) processBatch(ctx context.Context, b *Batch) {
	log.Printf("Processing batch %s (%d files)", b.ID, len(b.Requests))
	b.Status = types.StatusProcessing

	w.orchestrator.OnOutcome = func(outcome types.JobOutcome) {
		w.recordOutcome(b.ID, outcome)
	}
	result := w.orchestrator.Run(ctx, b.ID, b.Requests)
	w.orchestrator.OnOutcome = nil

	if b.CleanupInputs {
		for _, req := range b.Requests {
			w.cleanupTempFile(req.InputPath)
		}
	}

	if result.Ok() {
		b.Status = types.StatusCompleted
	} else {
		b.Status = types.StatusFailed
	}
	log.Printf("Batch %s finished: %d succeeded, %d failed",
		b.ID, len(result.Succeeded), len(result.Failed))
}

// recordOutcome archives and uploads successful captions, then writes the
// metadata row. Upload failures are non-fatal: local output already exists.
func (w *Worker) recordOutcome(batchID string, outcome types.JobOutcome) {
	var archivePath, driveURL string

	if outcome.Status == types.StatusCompleted {
		var err error
		archivePath, err = w.store.Archive(outcome.FileName, outcome.OutputPath)
		if err != nil {
			log.Printf("Failed to archive captions for %s: %v", outcome.FileName, err)
		}

		if w.driveClient != nil {
			for attempt := 1; attempt <= 3; attempt++ {
				driveURL, err = w.driveClient.Upload(outcome.FileName, outcome.OutputPath)
				if err == nil {
					break
				}
				log.Printf("Google Drive upload attempt %d/3 failed: %v", attempt, err)
				if attempt < 3 {
					time.Sleep(time.Duration(attempt*attempt) * time.Second)
				}
			}
			if err != nil {
				log.Println("WARNING - Google Drive upload failed after 3 attempts, captions kept locally")
			}
		}
	}

	captionCount := 0
	if outcome.OutputPath != "" {
		if captions, err := storage.ReadCaptionFile(outcome.OutputPath); err == nil {
			captionCount = len(captions)
		}
	}

	if w.db != nil {
		if err := w.db.SaveOutcome(batchID, outcome, captionCount, archivePath, driveURL); err != nil {
			log.Printf("Database save failed: %v", err)
		}
	}
}

// cleanupTempFile removes a temporary file
func (w *Worker) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to cleanup temp file %s: %v", filePath, err)
	}
}
