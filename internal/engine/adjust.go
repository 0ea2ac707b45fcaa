package engine

import (
	"fmt"

	"github.com/quantfold/hindsight/internal/config"
	"github.com/quantfold/hindsight/internal/store"
)

// GetAdjustment computes a signed score bias for a candidate trade based on
// the most recent closed trades for the same ticker plus matching intuitions,
// with a human-readable reason per contributing term. A ticker with no closed
// history yields exactly (0, nil): intuitions alone never move the score.
// Each history term is individually bounded by the configured max; the sum
// is returned as-is, clamping is the caller's concern.
func (e *Engine) GetAdjustment(ticker, sector string) (float64, []string, error) {
	entries, err := e.DB.GetEntries(store.EntryFilter{Ticker: ticker})
	if err != nil {
		return 0, nil, fmt.Errorf("adjustment history: %w", err)
	}

	cfg := e.Cfg.Adjustment

	// Entries arrive most-recent-first; only the freshest closed ones count,
	// so three heavy recent losses are never outvoted by ancient winners.
	var closed []store.JournalEntry
	for _, en := range entries {
		if en.ProfitRate == nil {
			continue
		}
		closed = append(closed, en)
		if cfg.RecentEntries > 0 && len(closed) == cfg.RecentEntries {
			break
		}
	}
	if len(closed) == 0 {
		return 0, nil, nil
	}

	var delta float64
	var reasons []string

	var losses, gains int
	var lossSum, gainSum float64
	for _, en := range closed {
		pr := *en.ProfitRate
		switch {
		case pr <= cfg.LossThreshold:
			losses++
			lossSum += pr
		case pr >= cfg.GainThreshold:
			gains++
			gainSum += pr
		}
	}

	if losses > 0 {
		mean := lossSum / float64(losses)
		penalty := historyTerm(cfg, losses, cfg.LossThreshold-mean)
		delta -= penalty
		reasons = append(reasons, fmt.Sprintf(
			"%d past losses on %s (avg %+.2f%%): %.2f", losses, ticker, mean, -penalty))
	}
	if gains > 0 {
		mean := gainSum / float64(gains)
		boost := historyTerm(cfg, gains, mean-cfg.GainThreshold)
		delta += boost
		reasons = append(reasons, fmt.Sprintf(
			"%d past gains on %s (avg %+.2f%%): +%.2f", gains, ticker, mean, boost))
	}

	intuitions, err := e.matchIntuitions(ticker, sector)
	if err != nil {
		return 0, nil, fmt.Errorf("adjustment intuitions: %w", err)
	}
	for _, i := range intuitions {
		term := cfg.IntuitionWeight * i.Confidence
		if i.SuccessRate < 0.5 {
			term = -term
		}
		delta += term
		reasons = append(reasons, fmt.Sprintf(
			"intuition [%s] %s: %+.2f", i.Category, i.Condition, term))
	}

	return delta, reasons, nil
}

// historyTerm sizes one side of the history contribution: more entries and a
// mean further past the threshold both strengthen it, up to the per-term cap.
// excess is how far the mean sits beyond the threshold, always >= 0.
func historyTerm(cfg config.AdjustmentConfig, count int, excess float64) float64 {
	if excess < 0 {
		excess = 0
	}
	term := cfg.PerEntryWeight*float64(count) +
		cfg.SampleBonus*float64(count-1) +
		cfg.MagnitudeWeight*excess
	if term > cfg.MaxAdjustment {
		term = cfg.MaxAdjustment
	}
	return term
}
