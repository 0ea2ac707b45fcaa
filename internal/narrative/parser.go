// Package narrative parses LLM responses into journal narratives and
// compaction results. Parsing never fails: malformed or partial responses
// degrade to a well-formed default skeleton so callers can always persist
// or safely no-op.
package narrative

import (
	"encoding/json"
	"strings"
)

// Lesson is one condition-action pair distilled from a trade.
type Lesson struct {
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}

// Journal is the structured reflection generated for a single trade.
type Journal struct {
	SituationAnalysis  map[string]any `json:"situation_analysis"`
	JudgmentEvaluation map[string]any `json:"judgment_evaluation"`
	Lessons            []Lesson       `json:"lessons"`
	PatternTags        []string       `json:"pattern_tags"`
	OneLineSummary     string         `json:"one_line_summary"`
	ConfidenceScore    float64        `json:"confidence_score"`
}

// NewJournal returns the default journal skeleton: empty collections,
// empty summary, zero confidence.
func NewJournal() Journal {
	return Journal{
		SituationAnalysis:  map[string]any{},
		JudgmentEvaluation: map[string]any{},
		Lessons:            []Lesson{},
		PatternTags:        []string{},
	}
}

// IntuitionDraft is one proposed intuition inside a compaction response.
type IntuitionDraft struct {
	Category         string  `json:"category"`
	Subcategory      string  `json:"subcategory"`
	Condition        string  `json:"condition"`
	Insight          string  `json:"insight"`
	Confidence       float64 `json:"confidence"`
	SupportingTrades int     `json:"supporting_trades"`
	SuccessRate      float64 `json:"success_rate"`
}

// CompressedEntry is one group summary inside a compaction response.
type CompressedEntry struct {
	OriginalIDs       []int64  `json:"original_ids"`
	CompressedSummary string   `json:"compressed_summary"`
	KeyLessons        []string `json:"key_lessons"`
}

// Compaction is the parsed result of a compaction LLM call.
type Compaction struct {
	CompressedEntries []CompressedEntry `json:"compressed_entries"`
	NewIntuitions     []IntuitionDraft  `json:"new_intuitions"`
}

// Empty reports whether the compaction carries no usable content. An empty
// compaction means the response was malformed; the caller must treat the
// whole cycle as a no-op.
func (c Compaction) Empty() bool {
	return len(c.CompressedEntries) == 0 && len(c.NewIntuitions) == 0
}

// StripFences removes a surrounding markdown code fence (```json ... ```)
// if present. The response might contain wrapper text around the fence.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		// Remove first and last lines (```json and ```)
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	return strings.TrimSpace(content)
}

// extractObject returns the outermost JSON object in content, or "" if
// no braces are found.
func extractObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// ParseJournal parses an LLM journal response. Whatever the input, the
// result is a complete journal: missing or malformed fields fall back to
// the skeleton defaults.
func ParseJournal(content string) Journal {
	j := NewJournal()

	raw := extractObject(StripFences(content))
	if raw == "" {
		return j
	}
	var parsed Journal
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return j
	}

	if parsed.SituationAnalysis != nil {
		j.SituationAnalysis = parsed.SituationAnalysis
	}
	if parsed.JudgmentEvaluation != nil {
		j.JudgmentEvaluation = parsed.JudgmentEvaluation
	}
	if parsed.Lessons != nil {
		j.Lessons = parsed.Lessons
	}
	if parsed.PatternTags != nil {
		j.PatternTags = parsed.PatternTags
	}
	j.OneLineSummary = parsed.OneLineSummary
	j.ConfidenceScore = parsed.ConfidenceScore
	return j
}

// ParseCompaction parses an LLM compaction response. A malformed response
// yields an Empty() compaction, never an error.
func ParseCompaction(content string) Compaction {
	var c Compaction

	raw := extractObject(StripFences(content))
	if raw == "" {
		return c
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Compaction{}
	}
	return c
}

// MarshalField serializes one journal field to JSON text for storage.
// Marshal errors degrade to the empty-object/array literal.
func MarshalField(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		switch v.(type) {
		case []string, []any:
			return "[]"
		default:
			return "{}"
		}
	}
	return string(b)
}
