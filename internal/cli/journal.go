package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/hindsight/internal/engine"
)

var journalFlags struct {
	company     string
	date        string
	tradeType   string
	buyPrice    float64
	buyDate     string
	sellPrice   float64
	sellReason  string
	profitRate  float64
	noProfit    bool
	holdingDays int
	scenario    string
	market      string
}

var journalCmd = &cobra.Command{
	Use:   "journal <ticker>",
	Short: "Record a closed trade in the journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournal,
}

func init() {
	f := journalCmd.Flags()
	f.StringVar(&journalFlags.company, "company", "", "company name")
	f.StringVar(&journalFlags.date, "date", "", "trade date (YYYY-MM-DD, default today)")
	f.StringVar(&journalFlags.tradeType, "type", "sell", "trade type: buy, sell, skip")
	f.Float64Var(&journalFlags.buyPrice, "buy-price", 0, "entry price")
	f.StringVar(&journalFlags.buyDate, "buy-date", "", "entry date")
	f.Float64Var(&journalFlags.sellPrice, "sell-price", 0, "exit price")
	f.StringVar(&journalFlags.sellReason, "sell-reason", "", "why the position was closed")
	f.Float64Var(&journalFlags.profitRate, "profit", 0, "realized profit rate in percent")
	f.BoolVar(&journalFlags.noProfit, "open", false, "position not closed yet (no profit rate)")
	f.IntVar(&journalFlags.holdingDays, "days", 0, "holding days")
	f.StringVar(&journalFlags.scenario, "scenario", "", `entry scenario JSON, e.g. {"sector": "semis"}`)
	f.StringVar(&journalFlags.market, "market", "", "market context at entry")
}

func runJournal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tradeDate := journalFlags.date
	if tradeDate == "" {
		tradeDate = time.Now().Format("2006-01-02")
	}

	in := engine.TradeInput{
		Ticker:           args[0],
		CompanyName:      journalFlags.company,
		TradeDate:        tradeDate,
		TradeType:        journalFlags.tradeType,
		BuyPrice:         journalFlags.buyPrice,
		BuyDate:          journalFlags.buyDate,
		SellPrice:        journalFlags.sellPrice,
		SellReason:       journalFlags.sellReason,
		HoldingDays:      journalFlags.holdingDays,
		BuyScenario:      journalFlags.scenario,
		BuyMarketContext: journalFlags.market,
	}
	if !journalFlags.noProfit && journalFlags.tradeType != "skip" {
		pr := journalFlags.profitRate
		in.ProfitRate = &pr
	}

	eng := newEngine(db, cfg)
	entry, err := eng.RecordTrade(context.Background(), in)
	if err != nil {
		return err
	}

	fmt.Printf("journaled entry %d for %s\n", entry.ID, entry.Ticker)
	if entry.OneLineSummary != "" {
		fmt.Printf("  %s\n", entry.OneLineSummary)
	}
	return nil
}
