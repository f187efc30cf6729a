package batch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// Runner transcribes one request into captions.
type Runner interface {
	Run(ctx context.Context, req types.TranscriptionRequest) ([]types.Caption, error)
}

// CaptionWriter persists a caption list next to its input audio file.
type CaptionWriter interface {
	SaveCaptions(inputPath string, captions []types.Caption) (string, error)
}

// Orchestrator processes an ordered sequence of transcription requests,
// strictly one at a time. A failing request never aborts the batch; every
// remaining request is still attempted.
type Orchestrator struct {
	runner Runner
	store  CaptionWriter
	bus    *EventBus

	// OnOutcome, when set, observes each finished request (metadata
	// persistence, uploads). It runs on the batch worker.
	OnOutcome func(outcome types.JobOutcome)
}

// NewOrchestrator wires a batch orchestrator over a job runner, a caption
// store, and an event bus.
func NewOrchestrator(runner Runner, store CaptionWriter, bus *EventBus) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		store:  store,
		bus:    bus,
	}
}

// Run processes every request in order and returns the aggregate result.
// Cancellation is honored only at file boundaries: an output JSON is
// either fully written or not written at all.
func (o *Orchestrator) Run(ctx context.Context, batchID string, requests []types.TranscriptionRequest) types.BatchResult {
	total := len(requests)
	result := types.BatchResult{Total: total}

	for idx, req := range requests {
		if ctx.Err() != nil {
			o.progress(batchID, fmt.Sprintf("Batch stopped before file %d of %d", idx+1, total))
			break
		}

		fileName := filepath.Base(req.InputPath)
		o.progress(batchID, fmt.Sprintf("Processing file %d of %d", idx+1, total))
		o.progress(batchID, fmt.Sprintf("File: %s", fileName))
		o.progress(batchID, "Transcribing audio (this may take a while)...")

		outcome := o.runOne(ctx, batchID, req, fileName)
		if outcome.Status == types.StatusCompleted {
			result.Succeeded = append(result.Succeeded, fileName)
			o.bus.Publish(Event{
				BatchID:  batchID,
				Type:     EventTypeFileCompleted,
				Index:    idx + 1,
				Total:    total,
				Filename: fileName,
			})
		} else {
			result.Failed = append(result.Failed, fileName)
			o.progress(batchID, fmt.Sprintf("Error processing %s: %s", fileName, outcome.Error))
		}

		if o.OnOutcome != nil {
			o.OnOutcome(outcome)
		}
	}

	o.summarize(batchID, result)
	return result
}

// runOne transcribes and persists a single request. Every per-request
// error kind is caught here and reported as a failed outcome.
func (o *Orchestrator) runOne(ctx context.Context, batchID string, req types.TranscriptionRequest, fileName string) types.JobOutcome {
	outcome := types.JobOutcome{
		JobID:    uuid.New().String(),
		FileName: fileName,
	}

	captions, err := o.runner.Run(ctx, req)
	if err != nil {
		outcome.Status = types.StatusFailed
		outcome.Error = err.Error()
		return outcome
	}

	outputPath, err := o.store.SaveCaptions(req.InputPath, captions)
	if err != nil {
		outcome.Status = types.StatusFailed
		outcome.Error = fmt.Sprintf("failed to save captions: %v", err)
		return outcome
	}

	o.progress(batchID, fmt.Sprintf("Generated %d caption segments", len(captions)))
	o.progress(batchID, fmt.Sprintf("Saved to: %s", outputPath))

	outcome.Status = types.StatusCompleted
	outcome.OutputPath = outputPath
	return outcome
}

// summarize emits the final human-readable summary and the finish event.
// Partial progress is never silently lost: both lists are enumerated.
func (o *Orchestrator) summarize(batchID string, result types.BatchResult) {
	o.progress(batchID, "Batch processing completed")
	o.progress(batchID, fmt.Sprintf("Total files: %d", result.Total))
	o.progress(batchID, fmt.Sprintf("Successful: %d", len(result.Succeeded)))
	o.progress(batchID, fmt.Sprintf("Failed: %d", len(result.Failed)))

	for _, name := range result.Succeeded {
		o.progress(batchID, fmt.Sprintf("  ok: %s", name))
	}
	for _, name := range result.Failed {
		o.progress(batchID, fmt.Sprintf("  failed: %s", name))
	}

	o.bus.Publish(Event{
		BatchID: batchID,
		Type:    EventTypeBatchFinished,
		Ok:      result.Ok(),
		Summary: fmt.Sprintf("%d/%d files processed successfully", len(result.Succeeded), result.Total),
	})
}

func (o *Orchestrator) progress(batchID, message string) {
	o.bus.Publish(Event{
		BatchID: batchID,
		Type:    EventTypeProgress,
		Message: message,
	})
}
