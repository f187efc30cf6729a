package transcription

import (
	"context"
	"log"
	"os"

	"github.com/voxacaptions/caption-pipeline/internal/config"
	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// Job composes normalization, engine invocation, and output parsing for
// one audio file. It owns the temporary WAV and raw-output artifacts.
type Job struct {
	cfg        *config.Config
	normalizer *Normalizer
	invoker    *Invoker
}

// NewJob wires a job against resolved component paths.
func NewJob(cfg *config.Config, normalizer *Normalizer, invoker *Invoker) *Job {
	return &Job{
		cfg:        cfg,
		normalizer: normalizer,
		invoker:    invoker,
	}
}

// Run transcribes one request into word-level captions. The model check
// happens before any subprocess is started: it is cheap and failing it
// first avoids wasted conversion work. The temporary WAV is removed on
// every exit path.
func (j *Job) Run(ctx context.Context, req types.TranscriptionRequest) ([]types.Caption, error) {
	modelPath := j.cfg.ModelPath(req.Model)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, &ModelNotFoundError{Model: req.Model, Path: modelPath}
	}

	wavPath, err := j.normalizer.Normalize(ctx, req.InputPath)
	if err != nil {
		return nil, err
	}
	defer j.cleanupTempFile(wavPath)

	rawPath, err := j.invoker.Transcribe(ctx, wavPath, modelPath, req.Language)
	if err != nil {
		return nil, err
	}

	return ParseOutput(rawPath)
}

// cleanupTempFile removes a temporary file, best effort.
func (j *Job) cleanupTempFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to cleanup temp file %s: %v", path, err)
	}
}
