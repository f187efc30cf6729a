package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Invoker runs the external recognition engine against normalized WAVs.
// It is constructed only with an already-resolved engine executable; path
// discovery happens once at bootstrap, never here.
type Invoker struct {
	enginePath string
	engineDir  string
	runner     commandRunner
}

// NewInvoker creates an invoker for a resolved engine executable. The path
// must exist; absence is a configuration error, not a per-request one.
func NewInvoker(enginePath string) (*Invoker, error) {
	info, err := os.Stat(enginePath)
	if err != nil {
		return nil, fmt.Errorf("recognition engine not found at %s: %v", enginePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("recognition engine path %s is a directory", enginePath)
	}

	return &Invoker{
		enginePath: enginePath,
		engineDir:  filepath.Dir(enginePath),
		runner:     &execRunner{},
	}, nil
}

// Transcribe runs the engine and returns the path of its raw JSON output.
// Full JSON output with word-level timestamps is requested; the language
// hint is passed through verbatim ("auto" selects the engine's own
// detection). The engine writes its output next to the input WAV with a
// fixed suffix, so the derived path is returned rather than an invented one.
func (iv *Invoker) Transcribe(ctx context.Context, wavPath, modelPath, language string) (string, error) {
	if language == "" {
		language = "auto"
	}

	args := []string{
		"-m", modelPath,
		"-f", wavPath,
		"-oj",      // Output JSON
		"-ojf",     // Full JSON with word-level timestamps
		"-ml", "1", // Max line length: one word per segment line
		"-l", language,
	}

	// The engine resolves auxiliary resources relative to its own location.
	result, err := iv.runner.Run(ctx, iv.engineDir, iv.enginePath, args...)
	if err != nil {
		return "", &EngineError{
			Input:  wavPath,
			Stderr: result.Stderr,
			Err:    err,
		}
	}

	return RawOutputPath(wavPath), nil
}

// RawOutputPath is the engine's conventional output location for a WAV.
func RawOutputPath(wavPath string) string {
	return wavPath + ".json"
}
