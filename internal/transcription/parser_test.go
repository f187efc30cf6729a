package transcription

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxacaptions/caption-pipeline/internal/types"
)

func writeRawOutput(t *testing.T, content []byte) string {
	t.Helper()
	rawPath := filepath.Join(t.TempDir(), "audio_16khz.wav.json")
	if err := os.WriteFile(rawPath, content, 0644); err != nil {
		t.Fatalf("write raw output: %v", err)
	}
	return rawPath
}

// TestParseTokenTier verifies one caption per non-control token with
// millisecond offsets and reported probabilities.
func TestParseTokenTier(t *testing.T) {
	raw := `{
		"transcription": [
			{
				"text": " Hello world.",
				"offsets": {"from": 0, "to": 850},
				"tokens": [
					{"text": "[_BEG_]", "offsets": {"from": 0, "to": 0}, "p": 0.5},
					{"text": " Hello", "offsets": {"from": 0, "to": 400}, "p": 0.98},
					{"text": " world", "offsets": {"from": 420, "to": 800}, "p": 0.91},
					{"text": ".", "offsets": {"from": 800, "to": 850}, "p": 0.99},
					{"text": "   ", "offsets": {"from": 850, "to": 850}, "p": 0.2}
				]
			}
		]
	}`
	rawPath := writeRawOutput(t, []byte(raw))

	captions, err := ParseOutput(rawPath)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(captions) != 3 {
		t.Fatalf("got %d captions, want 3", len(captions))
	}

	want := []types.Caption{
		{Text: " Hello", StartMs: 0, EndMs: 400, TimestampMs: 0, Confidence: 0.98},
		{Text: " world", StartMs: 420, EndMs: 800, TimestampMs: 420, Confidence: 0.91},
		{Text: ".", StartMs: 800, EndMs: 850, TimestampMs: 800, Confidence: 0.99},
	}
	for i, caption := range captions {
		if caption != want[i] {
			t.Fatalf("caption %d = %+v, want %+v", i, caption, want[i])
		}
	}

	if _, err := os.Stat(rawPath); !os.IsNotExist(err) {
		t.Fatal("raw output should be deleted after parsing")
	}
}

// TestParseTokenTierDefaultConfidence checks the 0.95 fallback when the
// engine reports no probability.
func TestParseTokenTierDefaultConfidence(t *testing.T) {
	raw := `{"transcription": [{"tokens": [{"text": "hi", "offsets": {"from": 10, "to": 20}}]}]}`
	captions, err := ParseOutput(writeRawOutput(t, []byte(raw)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if captions[0].Confidence != types.DefaultConfidence {
		t.Fatalf("confidence = %v, want %v", captions[0].Confidence, types.DefaultConfidence)
	}
}

// TestParseWordTier verifies fractional-second conversion with truncation
// and the confidence -> p -> default fallback chain.
func TestParseWordTier(t *testing.T) {
	raw := `{
		"transcription": [
			{
				"words": [
					{"word": "Hello", "start": 0.0, "end": 0.4, "confidence": 0.9},
					{"word": "there", "start": 0.4206, "end": 0.8009, "p": 0.8},
					{"text": "friend", "t0": 0.9, "t1": 1.2}
				]
			}
		]
	}`
	captions, err := ParseOutput(writeRawOutput(t, []byte(raw)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(captions) != 3 {
		t.Fatalf("got %d captions, want 3", len(captions))
	}

	if captions[0].Confidence != 0.9 {
		t.Fatalf("confidence fallback: got %v, want 0.9", captions[0].Confidence)
	}
	if captions[1].StartMs != 420 || captions[1].EndMs != 800 {
		t.Fatalf("seconds not truncated to ms: %+v", captions[1])
	}
	if captions[1].Confidence != 0.8 {
		t.Fatalf("p fallback: got %v, want 0.8", captions[1].Confidence)
	}
	if captions[2].Text != "friend" || captions[2].StartMs != 900 {
		t.Fatalf("t0/text fallback: %+v", captions[2])
	}
	if captions[2].Confidence != types.DefaultConfidence {
		t.Fatalf("default confidence: got %v", captions[2].Confidence)
	}
}

// TestParseSegmentSplitTier checks even duration distribution: the first
// word starts at the segment start and the summed durations cover the
// segment within n-1 ms of rounding.
func TestParseSegmentSplitTier(t *testing.T) {
	raw := `{
		"transcription": [
			{
				"text": " the quick brown fox ",
				"offsets": {"from": 1000, "to": 2001}
			}
		]
	}`
	captions, err := ParseOutput(writeRawOutput(t, []byte(raw)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(captions) != 4 {
		t.Fatalf("got %d captions, want 4", len(captions))
	}

	if captions[0].StartMs != 1000 {
		t.Fatalf("first word start = %d, want segment start 1000", captions[0].StartMs)
	}

	var total int64
	for i, caption := range captions {
		if caption.EndMs < caption.StartMs {
			t.Fatalf("caption %d end before start: %+v", i, caption)
		}
		if caption.TimestampMs != caption.StartMs {
			t.Fatalf("caption %d timestampMs != startMs: %+v", i, caption)
		}
		if caption.Confidence != types.DefaultConfidence {
			t.Fatalf("caption %d confidence = %v", i, caption.Confidence)
		}
		total += caption.EndMs - caption.StartMs
	}

	duration := int64(2001 - 1000)
	tolerance := int64(len(captions) - 1)
	if diff := duration - total; diff < 0 || diff > tolerance {
		t.Fatalf("summed durations %d not within %dms of %d", total, tolerance, duration)
	}

	for i := 1; i < len(captions); i++ {
		if captions[i].StartMs < captions[i-1].StartMs {
			t.Fatalf("captions out of order at %d", i)
		}
	}
}

// TestParseMixedTiers confirms tier selection is per segment, not per
// transcript.
func TestParseMixedTiers(t *testing.T) {
	raw := `{
		"transcription": [
			{"tokens": [{"text": "one", "offsets": {"from": 0, "to": 100}, "p": 0.9}]},
			{"words": [{"word": "two", "start": 0.2, "end": 0.3}]},
			{"text": "three four", "offsets": {"from": 400, "to": 600}}
		]
	}`
	captions, err := ParseOutput(writeRawOutput(t, []byte(raw)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(captions) != 4 {
		t.Fatalf("got %d captions, want 4", len(captions))
	}
	if captions[0].Text != "one" || captions[1].Text != "two" || captions[2].Text != "three" {
		t.Fatalf("unexpected caption texts: %+v", captions)
	}
}

// TestParseEmptyTranscriptFails: a decodable transcript yielding zero
// captions must fail, with a retained debug artifact and the top-level
// keys in the error.
func TestParseEmptyTranscriptFails(t *testing.T) {
	raw := `{"systeminfo": "whisper", "transcription": [{"text": "   ", "offsets": {"from": 0, "to": 0}}]}`
	rawPath := writeRawOutput(t, []byte(raw))

	_, err := ParseOutput(rawPath)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}

	if len(parseErr.Keys) != 2 || parseErr.Keys[0] != "systeminfo" || parseErr.Keys[1] != "transcription" {
		t.Fatalf("unexpected keys: %v", parseErr.Keys)
	}

	if parseErr.DebugPath == "" {
		t.Fatal("expected a debug artifact path")
	}
	if _, statErr := os.Stat(parseErr.DebugPath); statErr != nil {
		t.Fatalf("debug artifact missing: %v", statErr)
	}
	if !strings.HasSuffix(parseErr.DebugPath, ".wav.debug.json") {
		t.Fatalf("unexpected debug path: %s", parseErr.DebugPath)
	}

	if _, statErr := os.Stat(rawPath); !os.IsNotExist(statErr) {
		t.Fatal("raw output should be deleted even on failure")
	}
}

// TestParseControlTokensOnlyFails: a transcript of only control tokens is
// the empty case, not a success.
func TestParseControlTokensOnlyFails(t *testing.T) {
	raw := `{"transcription": [{"tokens": [{"text": "[_TT_50]", "offsets": {"from": 0, "to": 0}}]}]}`
	_, err := ParseOutput(writeRawOutput(t, []byte(raw)))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

// TestParseMissingFile fails with ParseError rather than a bare IO error.
func TestParseMissingFile(t *testing.T) {
	_, err := ParseOutput(filepath.Join(t.TempDir(), "nope.wav.json"))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

// TestParseInvalidJSON covers undecodable structured data.
func TestParseInvalidJSON(t *testing.T) {
	_, err := ParseOutput(writeRawOutput(t, []byte("not json at all")))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

// TestParseByteOrderMark: BOM-prefixed output still decodes.
func TestParseByteOrderMark(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF},
		[]byte(`{"transcription": [{"tokens": [{"text": "hej", "offsets": {"from": 0, "to": 100}, "p": 0.97}]}]}`)...)
	captions, err := ParseOutput(writeRawOutput(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(captions) != 1 || captions[0].Text != "hej" {
		t.Fatalf("unexpected captions: %+v", captions)
	}
}

// TestParseLossyDecode: undecodable bytes are substituted instead of
// aborting; partial captions beat none.
func TestParseLossyDecode(t *testing.T) {
	raw := []byte(`{"transcription": [{"tokens": [{"text": "caf` + "\xff" + `", "offsets": {"from": 0, "to": 100}, "p": 0.9}]}]}`)
	captions, err := ParseOutput(writeRawOutput(t, raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(captions) != 1 {
		t.Fatalf("got %d captions, want 1", len(captions))
	}
	if !strings.Contains(captions[0].Text, "�") {
		t.Fatalf("expected replacement rune in %q", captions[0].Text)
	}
}

// TestParseNonASCII keeps international text intact.
func TestParseNonASCII(t *testing.T) {
	raw := `{"transcription": [{"tokens": [{"text": " café über 日本語", "offsets": {"from": 0, "to": 500}, "p": 0.9}]}]}`
	captions, err := ParseOutput(writeRawOutput(t, []byte(raw)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if captions[0].Text != " café über 日本語" {
		t.Fatalf("text mangled: %q", captions[0].Text)
	}
}

// TestParseEmptyTokensFieldSelectsTokenTier: a present-but-empty tokens
// field still selects the token tier for that segment.
func TestParseEmptyTokensFieldSelectsTokenTier(t *testing.T) {
	raw := `{
		"transcription": [
			{"tokens": [], "text": "never split", "offsets": {"from": 0, "to": 100}},
			{"tokens": [{"text": "kept", "offsets": {"from": 100, "to": 200}, "p": 0.9}]}
		]
	}`
	captions, err := ParseOutput(writeRawOutput(t, []byte(raw)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(captions) != 1 || captions[0].Text != "kept" {
		t.Fatalf("empty tokens field should not fall through to text splitting: %+v", captions)
	}
}
