package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/hindsight/internal/llm"
	"github.com/quantfold/hindsight/internal/narrative"
	"github.com/quantfold/hindsight/internal/store"
)

// CompactResult reports the outcome of one compaction cycle.
type CompactResult struct {
	RunID         string `json:"run_id"`
	Compacted     int    `json:"compacted"`
	NewIntuitions int    `json:"new_intuitions"`
	Skipped       bool   `json:"skipped"`
	Reason        string `json:"reason,omitempty"`
}

// ShouldCompact reports whether enough layer-1 entries have accumulated to
// warrant a compaction cycle.
func (e *Engine) ShouldCompact() (bool, error) {
	byLayer, err := e.DB.CountEntriesByLayer()
	if err != nil {
		return false, err
	}
	return byLayer[1] >= e.Cfg.Compaction.LayerOneThreshold, nil
}

// Compact runs one compaction cycle: the oldest eligible layer-1 entries are
// summarized by the LLM, advanced to layer 2, and their recurring patterns
// merged into intuitions. All database writes land in one transaction. A
// malformed LLM response makes the whole cycle a no-op. If another cycle is
// already running, Compact returns immediately without touching anything.
func (e *Engine) Compact(ctx context.Context) (*CompactResult, error) {
	result := &CompactResult{RunID: uuid.NewString()}

	if e.LLM == nil {
		return nil, fmt.Errorf("compaction requires an LLM client")
	}
	if !e.compacting.TryLock() {
		result.Skipped = true
		result.Reason = "compaction already running"
		return result, nil
	}
	defer e.compacting.Unlock()

	minAge := time.Duration(e.Cfg.Compaction.MinAgeDays) * 24 * time.Hour
	batch, err := e.DB.GetEntries(store.EntryFilter{
		Layer:         1,
		CreatedBefore: time.Now().Add(-minAge).UnixMilli(),
		OldestFirst:   true,
		Limit:         e.Cfg.Compaction.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("select compaction batch: %w", err)
	}
	if len(batch) == 0 {
		result.Skipped = true
		result.Reason = "no eligible entries"
		return result, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	resp, err := e.LLM.Complete(callCtx, llm.CompactionPrompt(batchDigest(batch)))
	if err != nil {
		return nil, fmt.Errorf("compaction llm: %w", err)
	}

	parsed := narrative.ParseCompaction(resp.Content)
	if parsed.Empty() {
		e.log.Warnw("compaction response unusable, cycle is a no-op",
			"run_id", result.RunID, "batch", len(batch))
		result.Skipped = true
		result.Reason = "malformed response"
		return result, nil
	}

	inBatch := make(map[int64]bool, len(batch))
	for _, en := range batch {
		inBatch[en.ID] = true
	}

	var updates []store.CompactionUpdate
	var sourceIDs []int64
	for _, group := range parsed.CompressedEntries {
		summary := group.CompressedSummary
		if len(group.KeyLessons) > 0 {
			summary += "\nKey lessons: " + strings.Join(group.KeyLessons, "; ")
		}
		for _, id := range group.OriginalIDs {
			// IDs outside the selected batch are hallucinated; ignore them.
			if !inBatch[id] {
				e.log.Warnw("compaction referenced entry outside batch",
					"run_id", result.RunID, "id", id)
				continue
			}
			updates = append(updates, store.CompactionUpdate{
				EntryID:  id,
				Summary:  summary,
				NewLayer: 2,
			})
			sourceIDs = append(sourceIDs, id)
		}
	}

	var candidates []store.IntuitionCandidate
	for _, d := range parsed.NewIntuitions {
		if strings.TrimSpace(d.Category) == "" || strings.TrimSpace(d.Condition) == "" {
			continue
		}
		candidates = append(candidates, store.IntuitionCandidate{
			Category:         d.Category,
			Subcategory:      d.Subcategory,
			Condition:        d.Condition,
			Insight:          d.Insight,
			Confidence:       d.Confidence,
			SupportingTrades: d.SupportingTrades,
			SuccessRate:      d.SuccessRate,
		})
	}

	if len(updates) == 0 && len(candidates) == 0 {
		result.Skipped = true
		result.Reason = "response matched no batch entries"
		return result, nil
	}

	if err := e.DB.ApplyCompaction(updates, candidates, sourceIDs); err != nil {
		return nil, fmt.Errorf("apply compaction: %w", err)
	}

	result.Compacted = len(updates)
	result.NewIntuitions = len(candidates)
	e.log.Infow("compaction complete", "run_id", result.RunID,
		"compacted", result.Compacted, "intuitions", result.NewIntuitions)
	return result, nil
}

// CompactIfDue runs Compact only when the layer-1 threshold is reached.
func (e *Engine) CompactIfDue(ctx context.Context) (*CompactResult, error) {
	due, err := e.ShouldCompact()
	if err != nil {
		return nil, err
	}
	if !due {
		return &CompactResult{Skipped: true, Reason: "below threshold"}, nil
	}
	return e.Compact(ctx)
}

// batchDigest renders the batch for the compaction prompt, one entry per
// block with its ID so the model can reference entries back.
func batchDigest(batch []store.JournalEntry) string {
	var sb strings.Builder
	for _, en := range batch {
		fmt.Fprintf(&sb, "[id=%d] %s %s %s", en.ID, en.TradeDate, en.Ticker, en.TradeType)
		if en.ProfitRate != nil {
			fmt.Fprintf(&sb, " %+.2f%% over %d days", *en.ProfitRate, en.HoldingDays)
		}
		sb.WriteString("\n")
		if en.OneLineSummary != "" {
			fmt.Fprintf(&sb, "  summary: %s\n", en.OneLineSummary)
		}
		if en.Lessons != "" && en.Lessons != "[]" {
			fmt.Fprintf(&sb, "  lessons: %s\n", en.Lessons)
		}
		if en.PatternTags != "" && en.PatternTags != "[]" {
			fmt.Fprintf(&sb, "  tags: %s\n", en.PatternTags)
		}
	}
	return sb.String()
}
