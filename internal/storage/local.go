package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// CaptionStore persists caption lists to the local filesystem.
type CaptionStore struct {
	outputDir string
}

// NewCaptionStore creates a new local caption store
func NewCaptionStore(outputDir string) *CaptionStore {
	return &CaptionStore{
		outputDir: outputDir,
	}
}

// SaveCaptions writes the caption list next to the input audio file, same
// base name with a .json extension, and returns the written path.
func (cs *CaptionStore) SaveCaptions(inputPath string, captions []types.Caption) (string, error) {
	outputPath := SiblingCaptionPath(inputPath)
	if err := WriteCaptionFile(outputPath, captions); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Archive copies a finished caption file into a dated directory under the
// output dir: outputs/2025/01/23/20250123_143022_interview.json.
func (cs *CaptionStore) Archive(requestName, captionPath string) (string, error) {
	now := time.Now()
	dateDir := filepath.Join(cs.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %v", err)
	}

	timestamp := now.Format("20060102_150405")
	archivePath := filepath.Join(dateDir,
		fmt.Sprintf("%s_%s.json", timestamp, sanitizeFilename(requestName)))

	data, err := os.ReadFile(captionPath)
	if err != nil {
		return "", fmt.Errorf("failed to read caption file: %v", err)
	}
	if err := os.WriteFile(archivePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to archive captions: %v", err)
	}

	return archivePath, nil
}

// SiblingCaptionPath derives the output JSON path for an input audio file.
func SiblingCaptionPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".json"
}

// WriteCaptionFile serializes captions in the external contract format:
// UTF-8, non-ASCII emitted literally, 2-space indentation.
func WriteCaptionFile(path string, captions []types.Caption) error {
	if captions == nil {
		captions = []types.Caption{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(captions); err != nil {
		return fmt.Errorf("failed to marshal captions: %v", err)
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ReadCaptionFile loads a persisted caption list.
func ReadCaptionFile(path string) ([]types.Caption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var captions []types.Caption
	if err := json.Unmarshal(data, &captions); err != nil {
		return nil, fmt.Errorf("failed to parse caption file %s: %v", path, err)
	}
	return captions, nil
}

// sanitizeFilename removes path separators and invalid characters.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	invalid := ":*?\"<>|"
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) {
			return '_'
		}
		return r
	}, name)
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
