package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/hindsight/internal/llm"
	"github.com/quantfold/hindsight/internal/narrative"
	"github.com/quantfold/hindsight/internal/store"
)

// TradeInput is one closed trade or skipped candidate to be journaled.
type TradeInput struct {
	Ticker           string   `json:"ticker"`
	CompanyName      string   `json:"company_name"`
	TradeDate        string   `json:"trade_date"`
	TradeType        string   `json:"trade_type"`
	BuyPrice         float64  `json:"buy_price"`
	BuyDate          string   `json:"buy_date"`
	BuyScenario      string   `json:"buy_scenario"`
	BuyMarketContext string   `json:"buy_market_context"`
	SellPrice        float64  `json:"sell_price"`
	SellReason       string   `json:"sell_reason"`
	ProfitRate       *float64 `json:"profit_rate"`
	HoldingDays      int      `json:"holding_days"`

	// RawNarrative is pre-generated reflection text. When set, it is parsed
	// directly and the LLM is not consulted.
	RawNarrative string `json:"raw_narrative"`
}

// RecordTrade persists a journal entry for the trade, with an LLM-generated
// reflection. The entry is always written: if the LLM is unavailable or its
// response is malformed, the narrative falls back to the default skeleton.
func (e *Engine) RecordTrade(ctx context.Context, in TradeInput) (*store.JournalEntry, error) {
	if strings.TrimSpace(in.Ticker) == "" {
		return nil, fmt.Errorf("record trade: ticker is required")
	}
	if in.TradeType == "" {
		in.TradeType = "sell"
	}

	j := narrative.NewJournal()
	switch {
	case in.RawNarrative != "":
		j = narrative.ParseJournal(in.RawNarrative)
	case e.LLM != nil:
		callCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
		defer cancel()

		resp, err := e.LLM.Complete(callCtx, llm.JournalPrompt(tradeDetail(in)))
		if err != nil {
			e.log.Warnw("journal reflection failed, storing skeleton",
				"ticker", in.Ticker, "error", err)
		} else {
			j = narrative.ParseJournal(resp.Content)
		}
	}

	entry := &store.JournalEntry{
		Ticker:             in.Ticker,
		CompanyName:        in.CompanyName,
		TradeDate:          in.TradeDate,
		TradeType:          in.TradeType,
		BuyPrice:           in.BuyPrice,
		BuyDate:            in.BuyDate,
		BuyScenario:        in.BuyScenario,
		BuyMarketContext:   in.BuyMarketContext,
		SellPrice:          in.SellPrice,
		SellReason:         in.SellReason,
		ProfitRate:         in.ProfitRate,
		HoldingDays:        in.HoldingDays,
		SituationAnalysis:  narrative.MarshalField(j.SituationAnalysis),
		JudgmentEvaluation: narrative.MarshalField(j.JudgmentEvaluation),
		Lessons:            narrative.MarshalField(j.Lessons),
		PatternTags:        narrative.MarshalField(j.PatternTags),
		OneLineSummary:     j.OneLineSummary,
		ConfidenceScore:    j.ConfidenceScore,
	}
	if err := e.DB.InsertEntry(entry); err != nil {
		return nil, err
	}

	e.log.Infow("trade journaled", "id", entry.ID, "ticker", entry.Ticker,
		"type", entry.TradeType, "profit_rate", in.ProfitRate)
	return entry, nil
}

// tradeDetail renders the trade for the reflection prompt.
func tradeDetail(in TradeInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticker: %s (%s)\n", in.Ticker, in.CompanyName)
	fmt.Fprintf(&sb, "Type: %s, Trade date: %s\n", in.TradeType, in.TradeDate)
	if in.BuyPrice > 0 {
		fmt.Fprintf(&sb, "Bought: %s at %.2f\n", in.BuyDate, in.BuyPrice)
	}
	if in.SellPrice > 0 {
		fmt.Fprintf(&sb, "Sold: at %.2f (%s)\n", in.SellPrice, in.SellReason)
	}
	if in.ProfitRate != nil {
		fmt.Fprintf(&sb, "Profit rate: %+.2f%% over %d days\n", *in.ProfitRate, in.HoldingDays)
	}
	if in.BuyScenario != "" {
		fmt.Fprintf(&sb, "Entry scenario: %s\n", in.BuyScenario)
	}
	if in.BuyMarketContext != "" {
		fmt.Fprintf(&sb, "Market context at entry: %s\n", in.BuyMarketContext)
	}
	return sb.String()
}
