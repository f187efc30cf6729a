package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxacaptions/caption-pipeline/internal/config"
	"github.com/voxacaptions/caption-pipeline/internal/types"
)

func jobFixture(t *testing.T, runner commandRunner) (*Job, *config.Config) {
	t.Helper()

	cfg := config.Default()
	cfg.Engine.ModelsDir = t.TempDir()
	cfg.Storage.TempDir = t.TempDir()

	modelPath := cfg.ModelPath("small")
	if err := os.WriteFile(modelPath, []byte("model"), 0644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	engineDir := t.TempDir()
	enginePath := filepath.Join(engineDir, "main")
	if err := os.WriteFile(enginePath, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write engine: %v", err)
	}

	normalizer := NewNormalizer("ffmpeg", cfg.Storage.TempDir)
	normalizer.runner = runner
	invoker, err := NewInvoker(enginePath)
	if err != nil {
		t.Fatalf("new invoker: %v", err)
	}
	invoker.runner = runner

	return NewJob(cfg, normalizer, invoker), cfg
}

// TestJobMissingModel fails before any subprocess runs: the check is
// cheap and must come first.
func TestJobMissingModel(t *testing.T) {
	runner := &fakeRunner{}
	job, _ := jobFixture(t, runner)

	req := types.NewTranscriptionRequest("/media/interview.mp3", "nonexistent", "auto")
	_, err := job.Run(context.Background(), req)

	var notFound *ModelNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("no subprocess should run before the model check, got %d calls", len(runner.calls))
	}
}

// TestJobSuccess runs the full normalize -> invoke -> parse composition
// with scripted subprocesses, and checks the temp WAV is removed.
func TestJobSuccess(t *testing.T) {
	runner := &fakeRunner{}
	var wavPath string
	runner.onRun = func(call fakeCall) {
		switch call.Name {
		case "ffmpeg":
			// The converter writes the WAV the caller asked for.
			wavPath = call.Args[len(call.Args)-1]
			if err := os.WriteFile(wavPath, []byte("RIFFdata"), 0644); err != nil {
				t.Fatalf("write wav: %v", err)
			}
		default:
			// The engine writes its JSON next to the input WAV.
			raw := `{"transcription": [{"tokens": [{"text": "Hello", "offsets": {"from": 0, "to": 400}, "p": 0.98}]}]}`
			if err := os.WriteFile(wavPath+".json", []byte(raw), 0644); err != nil {
				t.Fatalf("write raw output: %v", err)
			}
		}
	}

	job, _ := jobFixture(t, runner)
	req := types.NewTranscriptionRequest("/media/interview.mp3", "small", "auto")

	captions, err := job.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(captions) != 1 || captions[0].Text != "Hello" {
		t.Fatalf("unexpected captions: %+v", captions)
	}

	if len(runner.calls) != 2 {
		t.Fatalf("got %d subprocess calls, want 2", len(runner.calls))
	}
	if _, err := os.Stat(wavPath); !os.IsNotExist(err) {
		t.Fatal("temporary WAV should be removed on success")
	}
	if _, err := os.Stat(wavPath + ".json"); !os.IsNotExist(err) {
		t.Fatal("raw output should be removed on success")
	}
}

// TestJobCleansWavOnParseFailure: the WAV is removed on the failure path
// too.
func TestJobCleansWavOnParseFailure(t *testing.T) {
	runner := &fakeRunner{}
	var wavPath string
	runner.onRun = func(call fakeCall) {
		switch call.Name {
		case "ffmpeg":
			wavPath = call.Args[len(call.Args)-1]
			os.WriteFile(wavPath, []byte("RIFFdata"), 0644)
		default:
			os.WriteFile(wavPath+".json", []byte(`{"transcription": []}`), 0644)
		}
	}

	job, _ := jobFixture(t, runner)
	req := types.NewTranscriptionRequest("/media/interview.mp3", "small", "auto")

	_, err := job.Run(context.Background(), req)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if _, statErr := os.Stat(wavPath); !os.IsNotExist(statErr) {
		t.Fatal("temporary WAV should be removed on parse failure")
	}
}

// TestJobCleansWavOnEngineFailure covers the engine-error exit path.
func TestJobCleansWavOnEngineFailure(t *testing.T) {
	runner := &fakeRunner{}
	var wavPath string
	runner.onRun = func(call fakeCall) {
		if call.Name == "ffmpeg" {
			wavPath = call.Args[len(call.Args)-1]
			os.WriteFile(wavPath, []byte("RIFFdata"), 0644)
		}
	}
	runner.results = []fakeResult{
		{}, // ffmpeg succeeds
		{result: commandResult{Stderr: "boom", ExitCode: 1}, err: errors.New("exit status 1")},
	}

	job, _ := jobFixture(t, runner)
	req := types.NewTranscriptionRequest("/media/interview.mp3", "small", "auto")

	_, err := job.Run(context.Background(), req)
	var engineErr *EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if _, statErr := os.Stat(wavPath); !os.IsNotExist(statErr) {
		t.Fatal("temporary WAV should be removed on engine failure")
	}
}
