package engine

import (
	"testing"

	"github.com/quantfold/hindsight/internal/config"
	"github.com/quantfold/hindsight/internal/llm"
	"github.com/quantfold/hindsight/internal/store"
)

func testEngine(t *testing.T, mock *llm.MockClient) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var client llm.Client
	if mock != nil {
		client = mock
	}
	return New(db, client, config.Default(), nil)
}

func floatPtr(f float64) *float64 { return &f }

func insertClosed(t *testing.T, e *Engine, ticker, date string, profitRate float64) *store.JournalEntry {
	t.Helper()
	entry := &store.JournalEntry{
		Ticker:     ticker,
		TradeDate:  date,
		TradeType:  "sell",
		ProfitRate: floatPtr(profitRate),
	}
	if err := e.DB.InsertEntry(entry); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return entry
}

func TestStats(t *testing.T) {
	e := testEngine(t, nil)

	s, err := e.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.TotalEntries != 0 || s.ActiveIntuitions != 0 {
		t.Errorf("empty stats = %+v", s)
	}
	if s.OldestUncompressed != nil {
		t.Errorf("oldest = %v, want nil", s.OldestUncompressed)
	}
	if s.SchemaVersion == 0 {
		t.Error("schema version should be nonzero")
	}

	insertClosed(t, e, "005930", "2026-08-01", -8.0)
	insertClosed(t, e, "005930", "2026-08-02", 3.0)
	if _, err := e.DB.UpsertIntuition(store.IntuitionCandidate{
		Category: "손절", Condition: "a", Confidence: 0.7,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	s, err = e.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.TotalEntries != 2 {
		t.Errorf("total = %d, want 2", s.TotalEntries)
	}
	if s.EntriesByLayer[1] != 2 {
		t.Errorf("layer counts = %v", s.EntriesByLayer)
	}
	if s.ActiveIntuitions != 1 {
		t.Errorf("intuitions = %d, want 1", s.ActiveIntuitions)
	}
	if s.OldestUncompressed == nil {
		t.Error("oldest should be set")
	}
}
