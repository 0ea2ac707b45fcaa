package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quantfold/hindsight/internal/store"
)

// GetContext builds a text digest of past experience relevant to a candidate
// trade: recent trades on the same ticker, aggregate sector performance, and
// the strongest intuitions. Returns "" only when all three are empty.
func (e *Engine) GetContext(ticker, sector string) (string, error) {
	var sections []string

	same, err := e.sameTickerSection(ticker)
	if err != nil {
		return "", err
	}
	if same != "" {
		sections = append(sections, same)
	}

	if sector != "" {
		agg, err := e.sectorSection(sector)
		if err != nil {
			return "", err
		}
		if agg != "" {
			sections = append(sections, agg)
		}
	}

	intu, err := e.intuitionSection(ticker, sector)
	if err != nil {
		return "", err
	}
	if intu != "" {
		sections = append(sections, intu)
	}

	return strings.Join(sections, "\n\n"), nil
}

func (e *Engine) sameTickerSection(ticker string) (string, error) {
	entries, err := e.DB.GetEntries(store.EntryFilter{
		Ticker: ticker,
		Limit:  e.Cfg.Retrieval.SameTickerLimit,
	})
	if err != nil {
		return "", fmt.Errorf("same-ticker history: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Past trades on %s:\n", ticker)
	for _, en := range entries {
		sb.WriteString("- " + entryLine(en) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (e *Engine) sectorSection(sector string) (string, error) {
	lookback := time.Duration(e.Cfg.Retrieval.SectorLookbackDays) * 24 * time.Hour
	from := time.Now().Add(-lookback).Format("2006-01-02")

	entries, err := e.DB.GetEntries(store.EntryFilter{TradeDateFrom: from})
	if err != nil {
		return "", fmt.Errorf("sector history: %w", err)
	}

	var count, wins int
	var sum float64
	for _, en := range entries {
		if entrySector(en) != sector || en.ProfitRate == nil {
			continue
		}
		count++
		sum += *en.ProfitRate
		if *en.ProfitRate > 0 {
			wins++
		}
	}
	if count == 0 {
		return "", nil
	}

	return fmt.Sprintf("Sector %s over last %d days: %d closed trades, avg %+.2f%%, %d wins",
		sector, e.Cfg.Retrieval.SectorLookbackDays, count, sum/float64(count), wins), nil
}

// matchIntuitions returns the strongest intuitions relevant to a candidate:
// those whose category or subcategory matches the candidate's sector or a
// pattern tag observed on the ticker's own history. Without any signal the
// global top list applies; with a signal and no match, nothing does.
func (e *Engine) matchIntuitions(ticker, sector string) ([]store.Intuition, error) {
	minConfidence := e.Cfg.Adjustment.MinIntuitionConfidence
	limit := e.Cfg.Retrieval.IntuitionLimit

	tags, err := e.observedTags(ticker)
	if err != nil {
		return nil, err
	}
	if sector == "" && len(tags) == 0 {
		return e.DB.GetIntuitions(store.IntuitionFilter{MinConfidence: minConfidence, Limit: limit})
	}

	all, err := e.DB.GetIntuitions(store.IntuitionFilter{MinConfidence: minConfidence})
	if err != nil {
		return nil, err
	}
	var matched []store.Intuition
	for _, i := range all {
		if (sector != "" && i.Subcategory == sector) || tags[i.Category] || tags[i.Subcategory] {
			matched = append(matched, i)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// observedTags collects the pattern tags recorded on the ticker's recent
// journal entries.
func (e *Engine) observedTags(ticker string) (map[string]bool, error) {
	entries, err := e.DB.GetEntries(store.EntryFilter{
		Ticker: ticker,
		Limit:  e.Cfg.Retrieval.SameTickerLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("observed tags: %w", err)
	}

	tags := make(map[string]bool)
	for _, en := range entries {
		for _, tag := range gjson.Parse(en.PatternTags).Array() {
			if s := tag.String(); s != "" {
				tags[s] = true
			}
		}
	}
	return tags, nil
}

func (e *Engine) intuitionSection(ticker, sector string) (string, error) {
	intuitions, err := e.matchIntuitions(ticker, sector)
	if err != nil {
		return "", fmt.Errorf("intuitions: %w", err)
	}
	if len(intuitions) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Learned intuitions:\n")
	for _, i := range intuitions {
		fmt.Fprintf(&sb, "- [%s] %s → %s (confidence %.2f, %d trades)\n",
			i.Category, i.Condition, i.Insight, i.Confidence, i.SupportingTrades)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// entryLine renders one journal entry for the digest, preferring the
// compressed summary once compaction has produced one.
func entryLine(en store.JournalEntry) string {
	summary := en.CompressedSummary
	if summary == "" {
		summary = en.OneLineSummary
	}

	rate := "open"
	if en.ProfitRate != nil {
		rate = fmt.Sprintf("%+.2f%%", *en.ProfitRate)
	} else if en.TradeType == "skip" {
		rate = "skipped"
	}

	line := fmt.Sprintf("%s %s (%s)", en.TradeDate, en.TradeType, rate)
	if summary != "" {
		line += ": " + summary
	}
	return line
}

// entrySector extracts the sector from the entry's buy scenario JSON.
func entrySector(en store.JournalEntry) string {
	return gjson.Get(en.BuyScenario, "sector").String()
}
