package transcription

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Normalizer converts arbitrary audio files to the 16kHz mono PCM WAV
// format the recognition engine requires.
type Normalizer struct {
	ffmpegPath string
	tempDir    string
	runner     commandRunner
}

// NewNormalizer creates a normalizer invoking the given ffmpeg binary.
func NewNormalizer(ffmpegPath, tempDir string) *Normalizer {
	return &Normalizer{
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
		runner:     &execRunner{},
	}
}

// Normalize converts the input file and returns the temporary WAV path.
// The caller owns the WAV and is responsible for deleting it. The output
// name is derived from the input's base name, so re-runs overwrite rather
// than accumulate.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (string, error) {
	wavPath := n.wavPath(inputPath)

	args := []string{
		"-i", inputPath,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y", // Overwrite output
		wavPath,
	}

	result, err := n.runner.Run(ctx, "", n.ffmpegPath, args...)
	if err != nil {
		return "", &ConversionError{
			Input:  inputPath,
			Stderr: result.Stderr,
			Err:    err,
		}
	}

	return wavPath, nil
}

// wavPath derives the deterministic temp location for an input file.
func (n *Normalizer) wavPath(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(n.tempDir, fmt.Sprintf("%s_16khz.wav", stem))
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma", ".mp4", ".opus"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
