package store

import (
	"math"
	"testing"
	"time"
)

func TestUpsertIntuitionInsert(t *testing.T) {
	db := testDB(t)

	id, err := db.UpsertIntuition(IntuitionCandidate{
		Category:    "손절",
		Condition:   "지지선 이탈 후 반등 기대",
		Insight:     "지지선 이탈 시 즉시 손절이 손실을 줄인다",
		Confidence:  0.6,
		SuccessRate: 0.7,
	}, []int64{1, 2})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id == 0 {
		t.Fatal("expected nonzero id")
	}

	got, err := db.GetIntuition("손절", "지지선 이탈 후 반등 기대")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected intuition, got nil")
	}
	if got.SupportingTrades != 1 {
		t.Errorf("supporting_trades = %d, want 1", got.SupportingTrades)
	}
	if got.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", got.Confidence)
	}
	if len(got.SourceEntryIDs) != 2 {
		t.Errorf("source ids = %v, want [1 2]", got.SourceEntryIDs)
	}
}

func TestUpsertIntuitionRequiresKey(t *testing.T) {
	db := testDB(t)

	if _, err := db.UpsertIntuition(IntuitionCandidate{Condition: "c"}, nil); err == nil {
		t.Error("expected error for missing category")
	}
	if _, err := db.UpsertIntuition(IntuitionCandidate{Category: "손절"}, nil); err == nil {
		t.Error("expected error for missing condition")
	}
}

func TestUpsertIntuitionMerge(t *testing.T) {
	db := testDB(t)

	c := IntuitionCandidate{
		Category:         "손절",
		Condition:        "지지선 이탈",
		Confidence:       0.6,
		SupportingTrades: 2,
		SuccessRate:      0.5,
	}
	id1, err := db.UpsertIntuition(c, []int64{1, 2})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	id2, err := db.UpsertIntuition(IntuitionCandidate{
		Category:         "손절",
		Condition:        "지지선 이탈",
		Insight:          "updated insight",
		Confidence:       0.9,
		SupportingTrades: 1,
		SuccessRate:      0.8,
	}, []int64{2, 3})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("merge created new row: %d != %d", id1, id2)
	}

	got, _ := db.GetIntuition("손절", "지지선 이탈")
	if got.SupportingTrades != 3 {
		t.Errorf("supporting_trades = %d, want 3", got.SupportingTrades)
	}
	// (0.6*2 + 0.9*1) / 3 = 0.7
	if math.Abs(got.Confidence-0.7) > 1e-9 {
		t.Errorf("confidence = %v, want 0.7", got.Confidence)
	}
	// (0.5*2 + 0.8*1) / 3 = 0.6
	if math.Abs(got.SuccessRate-0.6) > 1e-9 {
		t.Errorf("success_rate = %v, want 0.6", got.SuccessRate)
	}
	if got.Insight != "updated insight" {
		t.Errorf("insight = %q", got.Insight)
	}
	if len(got.SourceEntryIDs) != 3 {
		t.Errorf("source ids = %v, want union [1 2 3]", got.SourceEntryIDs)
	}

	n, _ := db.CountIntuitions()
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestUpsertIntuitionKeyNormalization(t *testing.T) {
	db := testDB(t)

	if _, err := db.UpsertIntuition(IntuitionCandidate{
		Category: "Stop Loss", Condition: "support  broken", Confidence: 0.5,
	}, nil); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := db.UpsertIntuition(IntuitionCandidate{
		Category: "stop loss", Condition: "Support Broken", Confidence: 0.5,
	}, nil); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	n, _ := db.CountIntuitions()
	if n != 1 {
		t.Errorf("count = %d, want 1 after normalized duplicate", n)
	}
	got, _ := db.GetIntuition("STOP   LOSS", "support broken")
	if got == nil {
		t.Fatal("lookup with differently-cased key failed")
	}
	if got.SupportingTrades != 2 {
		t.Errorf("supporting_trades = %d, want 2", got.SupportingTrades)
	}
}

func TestUpsertIntuitionClampsConfidence(t *testing.T) {
	db := testDB(t)

	if _, err := db.UpsertIntuition(IntuitionCandidate{
		Category: "손절", Condition: "a", Confidence: 1.7, SuccessRate: -0.4,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, _ := db.GetIntuition("손절", "a")
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped 1.0", got.Confidence)
	}
	if got.SuccessRate != 0.0 {
		t.Errorf("success_rate = %v, want clamped 0.0", got.SuccessRate)
	}
}

func TestGetIntuitionsOrderAndFilter(t *testing.T) {
	db := testDB(t)

	seed := []IntuitionCandidate{
		{Category: "손절", Condition: "a", Confidence: 0.3},
		{Category: "손절", Condition: "b", Confidence: 0.9},
		{Category: "진입", Condition: "c", Confidence: 0.6},
	}
	for _, c := range seed {
		if _, err := db.UpsertIntuition(c, nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := db.GetIntuitions(IntuitionFilter{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d, want 3", len(all))
	}
	if all[0].Confidence != 0.9 || all[2].Confidence != 0.3 {
		t.Errorf("not ordered by confidence desc: %v %v %v",
			all[0].Confidence, all[1].Confidence, all[2].Confidence)
	}

	cut, err := db.GetIntuitions(IntuitionFilter{Category: "손절", MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("get filtered: %v", err)
	}
	if len(cut) != 1 || cut[0].Condition != "b" {
		t.Errorf("filtered = %+v, want single condition b", cut)
	}
}

func TestDecayIntuitions(t *testing.T) {
	db := testDB(t)

	id, err := db.UpsertIntuition(IntuitionCandidate{
		Category: "손절", Condition: "a", Confidence: 0.8,
	}, nil)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Backdate updated_at one half-life into the past.
	halfLife := 180 * 24 * time.Hour
	past := time.Now().Add(-halfLife).UnixMilli()
	if _, err := db.Exec(`UPDATE intuitions SET updated_at = ? WHERE id = ?`, past, id); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := db.DecayIntuitions(halfLife, 0.1)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if n != 1 {
		t.Errorf("decayed %d rows, want 1", n)
	}

	got, _ := db.GetIntuition("손절", "a")
	if math.Abs(got.Confidence-0.4) > 0.01 {
		t.Errorf("confidence = %v, want ~0.4 after one half-life", got.Confidence)
	}
}

func TestDecayIntuitionsFloor(t *testing.T) {
	db := testDB(t)

	id, err := db.UpsertIntuition(IntuitionCandidate{
		Category: "손절", Condition: "a", Confidence: 0.12,
	}, nil)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	past := time.Now().Add(-10 * 365 * 24 * time.Hour).UnixMilli()
	if _, err := db.Exec(`UPDATE intuitions SET updated_at = ? WHERE id = ?`, past, id); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	if _, err := db.DecayIntuitions(180*24*time.Hour, 0.1); err != nil {
		t.Fatalf("decay: %v", err)
	}

	got, _ := db.GetIntuition("손절", "a")
	if got.Confidence != 0.1 {
		t.Errorf("confidence = %v, want floor 0.1", got.Confidence)
	}
}

func TestDecayIntuitionsFreshUntouched(t *testing.T) {
	db := testDB(t)

	if _, err := db.UpsertIntuition(IntuitionCandidate{
		Category: "손절", Condition: "a", Confidence: 0.8,
	}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	n, err := db.DecayIntuitions(180*24*time.Hour, 0.1)
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if n != 0 {
		t.Errorf("decayed %d fresh rows, want 0", n)
	}
}

func TestApplyCompaction(t *testing.T) {
	db := testDB(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		e := &JournalEntry{Ticker: "005930", TradeType: "sell", TradeDate: "2026-08-01"}
		if err := db.InsertEntry(e); err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, e.ID)
	}

	updates := []CompactionUpdate{
		{EntryID: ids[0], Summary: "요약 1", NewLayer: 2},
		{EntryID: ids[1], Summary: "요약 2", NewLayer: 2},
	}
	candidates := []IntuitionCandidate{
		{Category: "손절", Condition: "지지선 이탈", Confidence: 0.6},
	}
	if err := db.ApplyCompaction(updates, candidates, ids[:2]); err != nil {
		t.Fatalf("apply: %v", err)
	}

	for _, id := range ids[:2] {
		got, _ := db.GetEntry(id)
		if got.CompressionLayer != 2 {
			t.Errorf("entry %d layer = %d, want 2", id, got.CompressionLayer)
		}
	}
	untouched, _ := db.GetEntry(ids[2])
	if untouched.CompressionLayer != 1 {
		t.Errorf("entry outside batch advanced to layer %d", untouched.CompressionLayer)
	}

	intu, _ := db.GetIntuition("손절", "지지선 이탈")
	if intu == nil {
		t.Fatal("intuition not created")
	}
	if len(intu.SourceEntryIDs) != 2 {
		t.Errorf("source ids = %v, want batch ids", intu.SourceEntryIDs)
	}
}

func TestApplyCompactionAtomic(t *testing.T) {
	db := testDB(t)

	e := &JournalEntry{Ticker: "005930", TradeType: "sell", TradeDate: "2026-08-01"}
	if err := db.InsertEntry(e); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// An invalid candidate (no category) must roll back the entry update too.
	err := db.ApplyCompaction(
		[]CompactionUpdate{{EntryID: e.ID, Summary: "s", NewLayer: 2}},
		[]IntuitionCandidate{{Condition: "only condition"}},
		[]int64{e.ID},
	)
	if err == nil {
		t.Fatal("expected error from invalid candidate")
	}

	got, _ := db.GetEntry(e.ID)
	if got.CompressionLayer != 1 {
		t.Errorf("layer = %d after rollback, want 1", got.CompressionLayer)
	}
	if got.CompressedSummary != "" {
		t.Errorf("summary = %q after rollback, want empty", got.CompressedSummary)
	}

	n, _ := db.CountIntuitions()
	if n != 0 {
		t.Errorf("intuition count = %d after rollback, want 0", n)
	}
}
