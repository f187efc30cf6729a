package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voxacaptions/caption-pipeline/internal/batch"
	"github.com/voxacaptions/caption-pipeline/internal/cleanup"
	"github.com/voxacaptions/caption-pipeline/internal/config"
	"github.com/voxacaptions/caption-pipeline/internal/storage"
	"github.com/voxacaptions/caption-pipeline/internal/transcription"
	"github.com/voxacaptions/caption-pipeline/internal/types"
)

func run(cmd *cobra.Command, inputs []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	model, _ := cmd.Flags().GetString("model")
	language, _ := cmd.Flags().GetString("language")

	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("config: %w", err)
		}
		cfg = config.Default()
	}

	if env := os.Getenv("CAPTION_ENGINE_DIR"); env != "" {
		cfg.Engine.InstallDir = env
	}
	if env := os.Getenv("CAPTION_MODELS_DIR"); env != "" {
		cfg.Engine.ModelsDir = env
	}

	// Engine discovery happens exactly once, before any work is queued: a
	// missing engine fails every request, so it fails the whole run now.
	enginePath, err := cfg.LocateEngine()
	if err != nil {
		return err
	}

	invoker, err := transcription.NewInvoker(enginePath)
	if err != nil {
		return err
	}

	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}

	requests := make([]types.TranscriptionRequest, 0, len(inputs))
	for _, input := range inputs {
		absInput, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		if _, err := os.Stat(absInput); err != nil {
			return fmt.Errorf("cannot access input file %s: %w", input, err)
		}
		requests = append(requests, types.NewTranscriptionRequest(absInput, model, language))
	}

	normalizer := transcription.NewNormalizer(cfg.Converter.FFmpegPath, cfg.Storage.TempDir)
	job := transcription.NewJob(cfg, normalizer, invoker)
	store := storage.NewCaptionStore(cfg.Storage.OutputDir)
	bus := batch.NewEventBus(0)

	// The batch runs on its own goroutine; this one only prints events,
	// so a long engine invocation never stalls progress output.
	events, cancelSub := bus.Subscribe()
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		for event := range events {
			printEvent(cmd, event)
		}
	}()

	orchestrator := batch.NewOrchestrator(job, store, bus)
	result := orchestrator.Run(context.Background(), uuid.New().String(), requests)

	cancelSub()
	printer.Wait()

	if !result.Ok() {
		return fmt.Errorf("%d of %d files failed", len(result.Failed), result.Total)
	}
	return nil
}

func printEvent(cmd *cobra.Command, event batch.Event) {
	switch event.Type {
	case batch.EventTypeProgress:
		cmd.Println(event.Message)
	case batch.EventTypeFileCompleted:
		cmd.Printf("[%d/%d] completed: %s\n", event.Index, event.Total, event.Filename)
	case batch.EventTypeBatchFinished:
		cmd.Println(event.Summary)
	}
}
