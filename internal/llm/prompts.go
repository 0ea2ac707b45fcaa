package llm

import "fmt"

// JournalPrompt generates the prompt for reflecting on a single closed trade.
func JournalPrompt(tradeDetail string) string {
	return fmt.Sprintf(`You are a trading journal assistant. Analyze this completed trade and produce a structured reflection.

TRADE:
%s

Evaluate honestly:
- What the market situation actually was at entry and exit
- Whether the original scenario held up, and where judgment went wrong or right
- What lesson generalizes beyond this single trade
- Short reusable pattern tags (e.g. "late-stop-loss", "support-break")

Rules:
- Base everything on the trade data above, do not invent price levels
- confidence_score is your confidence in the lessons, between 0.0 and 1.0
- Return ONLY a JSON object, no other text

Return a JSON object:
{
  "situation_analysis": {"market": "...", "entry": "...", "exit": "..."},
  "judgment_evaluation": {"scenario": "...", "timing": "...", "sizing": "..."},
  "lessons": [{"condition": "when ...", "action": "do ...", "reason": "because ..."}],
  "pattern_tags": ["tag1", "tag2"],
  "one_line_summary": "one sentence capturing this trade",
  "confidence_score": 0.0
}`, tradeDetail)
}

// CompactionPrompt generates the prompt for compressing a batch of journal
// entries into group summaries and reusable intuitions.
func CompactionPrompt(entriesDigest string) string {
	return fmt.Sprintf(`You are compressing a trading journal. Below are the oldest uncompressed entries, each with an ID.

ENTRIES:
%s

Tasks:
1. Group entries that share a pattern (same mistake, same setup, same sector behavior) and write one compressed summary per group. Every entry ID must appear in exactly one group.
2. Distill recurring patterns into intuitions: condition-action lessons that apply to future trades.

Rules:
- compressed_summary must preserve the concrete outcome (profit/loss magnitude), not just the narrative
- An intuition needs at least 2 supporting entries; supporting_trades is that count
- confidence and success_rate are between 0.0 and 1.0
- Return ONLY a JSON object, no other text

Return a JSON object:
{
  "compressed_entries": [
    {"original_ids": [1, 2], "compressed_summary": "...", "key_lessons": ["..."]}
  ],
  "new_intuitions": [
    {"category": "...", "subcategory": "...", "condition": "when ...", "insight": "then ...", "confidence": 0.0, "supporting_trades": 2, "success_rate": 0.0}
  ]
}

If nothing can be usefully compressed, return: {"compressed_entries": [], "new_intuitions": []}`, entriesDigest)
}
