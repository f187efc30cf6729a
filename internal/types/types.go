package types

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// DefaultConfidence is used when the engine does not report a probability.
const DefaultConfidence = 0.95

// Caption is one timed text unit in the persisted output format.
type Caption struct {
	Text        string  `json:"text"`
	StartMs     int64   `json:"startMs"`
	EndMs       int64   `json:"endMs"`
	TimestampMs int64   `json:"timestampMs"`
	Confidence  float64 `json:"confidence"`
}

// TranscriptionRequest is one unit of batch work. Immutable once created.
type TranscriptionRequest struct {
	InputPath string
	Model     string
	Language  string
}

// NewTranscriptionRequest fills in the default language hint.
func NewTranscriptionRequest(inputPath, model, language string) TranscriptionRequest {
	if language == "" {
		language = "auto"
	}
	return TranscriptionRequest{
		InputPath: inputPath,
		Model:     model,
		Language:  language,
	}
}

// JobOutcome records the result of processing one request.
type JobOutcome struct {
	JobID      string
	FileName   string
	Status     string
	OutputPath string
	Error      string
}

// BatchResult aggregates outcomes over one ordered batch.
type BatchResult struct {
	Total     int
	Succeeded []string
	Failed    []string
}

// Ok reports whether every processed request succeeded.
func (r BatchResult) Ok() bool {
	return len(r.Failed) == 0
}
