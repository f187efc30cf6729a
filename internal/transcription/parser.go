package transcription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// Raw engine output shapes. Tokens/words/text are pointers so that an
// empty-but-present field still selects its tier, matching the engine's
// emission semantics.
type rawTranscript struct {
	Transcription []rawSegment `json:"transcription"`
}

type rawSegment struct {
	Text    *string     `json:"text"`
	Offsets *rawOffsets `json:"offsets"`
	Tokens  *[]rawToken `json:"tokens"`
	Words   *[]rawWord  `json:"words"`
}

// rawOffsets are already in milliseconds.
type rawOffsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type rawToken struct {
	Text    string     `json:"text"`
	Offsets rawOffsets `json:"offsets"`
	P       *float64   `json:"p"`
}

// rawWord timings are in fractional seconds.
type rawWord struct {
	Word       *string  `json:"word"`
	Text       *string  `json:"text"`
	Start      *float64 `json:"start"`
	T0         *float64 `json:"t0"`
	End        *float64 `json:"end"`
	T1         *float64 `json:"t1"`
	Confidence *float64 `json:"confidence"`
	P          *float64 `json:"p"`
}

// ParseOutput reads the engine's raw JSON output and extracts word-level
// captions via a per-segment fallback ladder: discrete tokens, then word
// entries, then even splitting of whole-segment text. The raw file is
// deleted on both success and failure; a debug artifact is written and
// retained when a structurally valid transcript yields zero captions.
func ParseOutput(rawPath string) ([]types.Caption, error) {
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, &ParseError{Path: rawPath, Err: err}
	}
	defer os.Remove(rawPath)

	text := decodeOutput(raw)

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keyed); err != nil {
		return nil, &ParseError{Path: rawPath, Err: err}
	}

	var transcript rawTranscript
	if err := json.Unmarshal([]byte(text), &transcript); err != nil {
		return nil, &ParseError{Path: rawPath, Keys: topLevelKeys(keyed), Err: err}
	}

	var captions []types.Caption
	for _, segment := range transcript.Transcription {
		switch {
		case segment.Tokens != nil:
			captions = append(captions, tokenTier(*segment.Tokens)...)
		case segment.Words != nil:
			captions = append(captions, wordTier(*segment.Words)...)
		case segment.Text != nil:
			captions = append(captions, segmentSplitTier(*segment.Text, segment.Offsets)...)
		}
	}

	if len(captions) == 0 {
		// Zero captions from a decodable transcript is a parser defect,
		// not a silent success. Keep a pretty-printed copy for inspection.
		debugPath := debugArtifactPath(rawPath)
		if err := writeDebugArtifact(debugPath, keyed); err != nil {
			debugPath = ""
		}
		return nil, &ParseError{
			Path:      rawPath,
			Keys:      topLevelKeys(keyed),
			DebugPath: debugPath,
			Err:       fmt.Errorf("no captions extracted"),
		}
	}

	return captions, nil
}

// decodeOutput recovers text from the raw bytes: strict UTF-8 first, then
// UTF-8 with a byte-order mark, then lossy substitution of bad bytes.
// Partial captions are more useful than none.
func decodeOutput(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

// tokenTier emits one caption per discrete token. Engine-internal control
// tokens like [_BEG_] and blank tokens are not content.
func tokenTier(tokens []rawToken) []types.Caption {
	captions := make([]types.Caption, 0, len(tokens))
	for _, token := range tokens {
		if isControlToken(token.Text) || strings.TrimSpace(token.Text) == "" {
			continue
		}

		confidence := types.DefaultConfidence
		if token.P != nil {
			confidence = *token.P
		}

		captions = append(captions, types.Caption{
			Text:        token.Text,
			StartMs:     token.Offsets.From,
			EndMs:       token.Offsets.To,
			TimestampMs: token.Offsets.From,
			Confidence:  confidence,
		})
	}
	return captions
}

// wordTier emits one caption per word entry, converting fractional seconds
// to milliseconds with truncation toward zero.
func wordTier(words []rawWord) []types.Caption {
	captions := make([]types.Caption, 0, len(words))
	for _, word := range words {
		text := ""
		if word.Word != nil {
			text = *word.Word
		} else if word.Text != nil {
			text = *word.Text
		}

		startMs := secondsToMs(firstOf(word.Start, word.T0))
		endMs := secondsToMs(firstOf(word.End, word.T1))

		confidence := types.DefaultConfidence
		if word.Confidence != nil {
			confidence = *word.Confidence
		} else if word.P != nil {
			confidence = *word.P
		}

		captions = append(captions, types.Caption{
			Text:        text,
			StartMs:     startMs,
			EndMs:       endMs,
			TimestampMs: startMs,
			Confidence:  confidence,
		})
	}
	return captions
}

// segmentSplitTier distributes a segment's duration evenly across its
// whitespace-split words. This is an approximation, not a re-alignment.
func segmentSplitTier(text string, offsets *rawOffsets) []types.Caption {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	words := strings.Fields(text)

	var startMs, endMs int64
	if offsets != nil {
		startMs = offsets.From
		endMs = offsets.To
	}

	perWord := float64(endMs-startMs) / float64(max(len(words), 1))

	captions := make([]types.Caption, 0, len(words))
	for i, word := range words {
		wordStart := startMs + int64(float64(i)*perWord)
		wordEnd := wordStart + int64(perWord)

		captions = append(captions, types.Caption{
			Text:        word,
			StartMs:     wordStart,
			EndMs:       wordEnd,
			TimestampMs: wordStart,
			Confidence:  types.DefaultConfidence,
		})
	}
	return captions
}

// isControlToken matches bracket-delimited engine markers like [_TT_123].
func isControlToken(text string) bool {
	return strings.HasPrefix(text, "[_") && strings.HasSuffix(text, "]")
}

func secondsToMs(seconds float64) int64 {
	return int64(seconds * 1000)
}

func firstOf(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

func topLevelKeys(keyed map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(keyed))
	for key := range keyed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// debugArtifactPath derives the retained debug location from the raw path.
func debugArtifactPath(rawPath string) string {
	return strings.TrimSuffix(rawPath, ".json") + ".debug.json"
}

// writeDebugArtifact preserves the full decoded transcript for offline
// inspection. Unlike the raw output it is intentionally not cleaned up.
func writeDebugArtifact(path string, keyed map[string]json.RawMessage) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(keyed); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
