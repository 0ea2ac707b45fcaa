package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/quantfold/hindsight/internal/store"
)

func TestGetContextEmpty(t *testing.T) {
	e := testEngine(t, nil)

	digest, err := e.GetContext("005930", "반도체")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if digest != "" {
		t.Errorf("digest = %q, want empty string for empty journal", digest)
	}
}

func TestGetContextSameTicker(t *testing.T) {
	e := testEngine(t, nil)

	entry := &store.JournalEntry{
		Ticker:         "005930",
		CompanyName:    "삼성전자",
		TradeDate:      "2026-08-01",
		TradeType:      "sell",
		ProfitRate:     floatPtr(-8.0),
		OneLineSummary: "지지선 붕괴 후 손절 지연",
	}
	if err := e.DB.InsertEntry(entry); err != nil {
		t.Fatalf("insert: %v", err)
	}

	digest, err := e.GetContext("005930", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !strings.Contains(digest, "005930") {
		t.Errorf("digest missing ticker: %q", digest)
	}
	if !strings.Contains(digest, "지지선 붕괴 후 손절 지연") {
		t.Errorf("digest missing summary: %q", digest)
	}
	if !strings.Contains(digest, "-8.00%") {
		t.Errorf("digest missing profit rate: %q", digest)
	}
}

func TestGetContextSameTickerLimit(t *testing.T) {
	e := testEngine(t, nil)

	for i := 0; i < 6; i++ {
		insertClosed(t, e, "005930", "2026-08-01", -1.0)
	}

	digest, err := e.GetContext("005930", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if got := strings.Count(digest, "- 2026-08-01"); got != e.Cfg.Retrieval.SameTickerLimit {
		t.Errorf("digest has %d entries, want limit %d", got, e.Cfg.Retrieval.SameTickerLimit)
	}
}

func TestGetContextPrefersCompressedSummary(t *testing.T) {
	e := testEngine(t, nil)

	entry := insertClosed(t, e, "005930", "2026-08-01", -8.0)
	if err := e.DB.UpdateEntryCompaction(entry.ID, "compressed view", 2, 1000); err != nil {
		t.Fatalf("update: %v", err)
	}

	digest, err := e.GetContext("005930", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !strings.Contains(digest, "compressed view") {
		t.Errorf("digest should use compressed summary: %q", digest)
	}
}

func TestGetContextSectorAggregate(t *testing.T) {
	e := testEngine(t, nil)

	recent := time.Now().Format("2006-01-02")
	for _, tc := range []struct {
		ticker string
		rate   float64
	}{
		{"005930", -8.0},
		{"000660", 12.0},
	} {
		entry := &store.JournalEntry{
			Ticker:      tc.ticker,
			TradeDate:   recent,
			TradeType:   "sell",
			ProfitRate:  floatPtr(tc.rate),
			BuyScenario: `{"sector": "반도체"}`,
		}
		if err := e.DB.InsertEntry(entry); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	// Different sector must not count.
	other := &store.JournalEntry{
		Ticker: "035720", TradeDate: recent, TradeType: "sell",
		ProfitRate: floatPtr(50.0), BuyScenario: `{"sector": "인터넷"}`,
	}
	if err := e.DB.InsertEntry(other); err != nil {
		t.Fatalf("insert: %v", err)
	}

	digest, err := e.GetContext("005930", "반도체")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !strings.Contains(digest, "Sector 반도체") {
		t.Errorf("digest missing sector section: %q", digest)
	}
	if !strings.Contains(digest, "2 closed trades") {
		t.Errorf("sector aggregate wrong: %q", digest)
	}
	if !strings.Contains(digest, "+2.00%") {
		t.Errorf("sector average wrong (want (+12-8)/2 = +2.00%%): %q", digest)
	}
}

func TestGetContextTagMatchedIntuitions(t *testing.T) {
	e := testEngine(t, nil)

	entry := &store.JournalEntry{
		Ticker: "005930", TradeDate: "2026-08-01", TradeType: "sell",
		ProfitRate: floatPtr(-8.0), PatternTags: `["손절지연"]`,
	}
	if err := e.DB.InsertEntry(entry); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// One intuition matching the observed tag, one stronger but unrelated.
	if _, err := e.DB.UpsertIntuition(store.IntuitionCandidate{
		Category: "손절지연", Condition: "지지선 이탈 후 반등 기대", Confidence: 0.7,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := e.DB.UpsertIntuition(store.IntuitionCandidate{
		Category: "진입", Subcategory: "바이오", Condition: "임상 발표 전 진입", Confidence: 0.9,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	digest, err := e.GetContext("005930", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !strings.Contains(digest, "지지선 이탈 후 반등 기대") {
		t.Errorf("digest missing tag-matched intuition: %q", digest)
	}
	if strings.Contains(digest, "임상 발표 전 진입") {
		t.Errorf("digest includes unrelated intuition: %q", digest)
	}
}

func TestGetContextUnmatchedSectorLeaksNoIntuitions(t *testing.T) {
	e := testEngine(t, nil)

	if _, err := e.DB.UpsertIntuition(store.IntuitionCandidate{
		Category: "손절", Subcategory: "반도체", Condition: "업황 피크아웃", Confidence: 0.9,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	digest, err := e.GetContext("035720", "바이오")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if digest != "" {
		t.Errorf("digest = %q, want empty when nothing matches the sector", digest)
	}
}

func TestGetContextIntuitions(t *testing.T) {
	e := testEngine(t, nil)

	if _, err := e.DB.UpsertIntuition(store.IntuitionCandidate{
		Category: "손절", Condition: "지지선 이탈", Insight: "즉시 손절",
		Confidence: 0.8, SuccessRate: 0.2,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Below the confidence cut, must not appear.
	if _, err := e.DB.UpsertIntuition(store.IntuitionCandidate{
		Category: "진입", Condition: "저신뢰 조건", Confidence: 0.2,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	digest, err := e.GetContext("없는종목", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if !strings.Contains(digest, "지지선 이탈") {
		t.Errorf("digest missing strong intuition: %q", digest)
	}
	if strings.Contains(digest, "저신뢰 조건") {
		t.Errorf("digest includes weak intuition: %q", digest)
	}
}
