package queue

import (
	"time"

	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// Batch is an ordered sequence of transcription requests processed as one
// unit of work.
type Batch struct {
	ID        string
	Requests  []types.TranscriptionRequest
	Status    string
	CreatedAt time.Time

	// CleanupInputs marks server-side uploads whose temp input files
	// should be removed once the batch finishes.
	CleanupInputs bool
}

// NewBatch creates a queued batch with default values
func NewBatch(id string, requests []types.TranscriptionRequest) *Batch {
	return &Batch{
		ID:        id,
		Requests:  requests,
		Status:    types.StatusQueued,
		CreatedAt: time.Now(),
	}
}
