package handlers

import (
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voxacaptions/caption-pipeline/internal/queue"
	"github.com/voxacaptions/caption-pipeline/internal/transcription"
	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// BatchHandler accepts uploaded audio files and queues them as one batch
type BatchHandler struct {
	worker    *queue.Worker
	tempDir   string
	maxSizeMB int
}

// NewBatchHandler creates a new batch submission handler
func NewBatchHandler(worker *queue.Worker, tempDir string, maxSizeMB int) *BatchHandler {
	return &BatchHandler{
		worker:    worker,
		tempDir:   tempDir,
		maxSizeMB: maxSizeMB,
	}
}

// Handle processes one batch submission
func (h *BatchHandler) Handle(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid multipart form",
			"code":  "ERR_INVALID_FORM",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "No files uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	model := c.FormValue("model")
	language := c.FormValue("language")

	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	batchID := uuid.New().String()

	requests := make([]types.TranscriptionRequest, 0, len(files))
	for _, file := range files {
		if file.Size > maxSize {
			return c.Status(400).JSON(fiber.Map{
				"error": fmt.Sprintf("File %s too large (max %dMB)", file.Filename, h.maxSizeMB),
				"code":  "ERR_FILE_TOO_LARGE",
			})
		}

		if !transcription.ValidateAudioFormat(file.Filename) {
			return c.Status(400).JSON(fiber.Map{
				"error": fmt.Sprintf("Unsupported audio format: %s", file.Filename),
				"code":  "ERR_INVALID_FORMAT",
			})
		}

		// Keep the original base name so the sibling caption file and
		// all reporting carry the name the user uploaded.
		tempPath := filepath.Join(h.tempDir, batchID[:8]+"_"+filepath.Base(file.Filename))
		if err := c.SaveFile(file, tempPath); err != nil {
			return c.Status(500).JSON(fiber.Map{
				"error": "Failed to save file",
				"code":  "ERR_SAVE_FAILED",
			})
		}

		requests = append(requests, types.NewTranscriptionRequest(tempPath, model, language))
	}

	b := queue.NewBatch(batchID, requests)
	b.CleanupInputs = true
	h.worker.Enqueue(b)

	return c.JSON(fiber.Map{
		"batch_id": batchID,
		"files":    len(requests),
		"status":   "queued",
		"message":  "Batch queued, processing started",
	})
}
