package transcription

import "fmt"

// ModelNotFoundError means the requested model artifact is absent.
type ModelNotFoundError struct {
	Model string
	Path  string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found at %s", e.Model, e.Path)
}

// ConversionError means audio normalization failed. Stderr carries the
// converter's diagnostic output verbatim.
type ConversionError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("audio conversion failed for %s: %v\n%s", e.Input, e.Err, e.Stderr)
	}
	return fmt.Sprintf("audio conversion failed for %s: %v", e.Input, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// EngineError means the recognition engine is missing or exited non-zero.
type EngineError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("engine transcription failed for %s: %v\n%s", e.Input, e.Err, e.Stderr)
	}
	return fmt.Sprintf("engine transcription failed for %s: %v", e.Input, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ParseError means the engine output was absent, undecodable, or yielded
// zero captions. Keys lists the top-level keys of the decoded structure so
// an unmatched output shape can be told apart from empty engine output.
type ParseError struct {
	Path      string
	Keys      []string
	DebugPath string
	Err       error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse engine output %s", e.Path)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if len(e.Keys) > 0 {
		msg += fmt.Sprintf(" (top-level keys: %v)", e.Keys)
	}
	if e.DebugPath != "" {
		msg += fmt.Sprintf("; debug copy saved to %s", e.DebugPath)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
