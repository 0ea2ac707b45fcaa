package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// JournalEntry is one stored record of a closed trade or a skipped candidate.
// The structured narrative fields (BuyScenario, SituationAnalysis,
// JudgmentEvaluation, Lessons, PatternTags) hold serialized JSON text.
type JournalEntry struct {
	ID                 int64
	Ticker             string
	CompanyName        string
	TradeDate          string // ISO-8601 date
	TradeType          string // "buy", "sell", "skip"
	BuyPrice           float64
	BuyDate            string
	BuyScenario        string
	BuyMarketContext   string
	SellPrice          float64
	SellReason         string
	ProfitRate         *float64 // nil until closed, and always nil for "skip"
	HoldingDays        int
	SituationAnalysis  string
	JudgmentEvaluation string
	Lessons            string
	PatternTags        string
	OneLineSummary     string
	ConfidenceScore    float64
	CompressionLayer   int
	CompressedSummary  string
	CreatedAt          int64
	LastCompressedAt   *int64
}

// EntryFilter selects journal entries. Zero-valued fields are ignored.
type EntryFilter struct {
	Ticker        string
	Layer         int    // exact compression layer
	TradeDateFrom string // inclusive lower bound on trade_date
	CreatedBefore int64  // exclusive upper bound on created_at (unix ms)
	OldestFirst   bool   // default is most-recent-first
	Limit         int
}

const journalColumns = `id, ticker, company_name, trade_date, trade_type,
	buy_price, buy_date, buy_scenario, buy_market_context,
	sell_price, sell_reason, profit_rate, holding_days,
	situation_analysis, judgment_evaluation, lessons, pattern_tags,
	one_line_summary, confidence_score, compression_layer,
	compressed_summary, created_at, last_compressed_at`

// InsertEntry persists a new journal entry and assigns its ID.
// New entries always start at compression layer 1.
func (db *DB) InsertEntry(e *JournalEntry) error {
	if strings.TrimSpace(e.Ticker) == "" {
		return fmt.Errorf("insert entry: ticker is required")
	}
	now := time.Now().UnixMilli()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	if e.TradeDate == "" {
		e.TradeDate = time.Now().Format("2006-01-02")
	}
	e.CompressionLayer = 1

	result, err := db.Exec(`
		INSERT INTO journal_entries (ticker, company_name, trade_date, trade_type,
			buy_price, buy_date, buy_scenario, buy_market_context,
			sell_price, sell_reason, profit_rate, holding_days,
			situation_analysis, judgment_evaluation, lessons, pattern_tags,
			one_line_summary, confidence_score, compression_layer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, e.Ticker, e.CompanyName, e.TradeDate, e.TradeType,
		e.BuyPrice, e.BuyDate, e.BuyScenario, e.BuyMarketContext,
		e.SellPrice, e.SellReason, nullableFloat(e.ProfitRate), e.HoldingDays,
		e.SituationAnalysis, e.JudgmentEvaluation, e.Lessons, e.PatternTags,
		e.OneLineSummary, e.ConfidenceScore, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	id, _ := result.LastInsertId()
	e.ID = id
	return nil
}

// GetEntry returns an entry by ID, or nil if not found.
func (db *DB) GetEntry(id int64) (*JournalEntry, error) {
	row := db.QueryRow(`SELECT `+journalColumns+` FROM journal_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// GetEntries returns entries matching the filter, most-recent-first by
// trade_date (then created_at) unless OldestFirst is set, in which case
// ordering is by created_at then id for deterministic batch selection.
func (db *DB) GetEntries(f EntryFilter) ([]JournalEntry, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString(`SELECT ` + journalColumns + ` FROM journal_entries WHERE 1=1`)
	if f.Ticker != "" {
		sb.WriteString(" AND ticker = ?")
		args = append(args, f.Ticker)
	}
	if f.Layer > 0 {
		sb.WriteString(" AND compression_layer = ?")
		args = append(args, f.Layer)
	}
	if f.TradeDateFrom != "" {
		sb.WriteString(" AND trade_date >= ?")
		args = append(args, f.TradeDateFrom)
	}
	if f.CreatedBefore > 0 {
		sb.WriteString(" AND created_at < ?")
		args = append(args, f.CreatedBefore)
	}
	if f.OldestFirst {
		sb.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		sb.WriteString(" ORDER BY trade_date DESC, created_at DESC, id DESC")
	}
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// UpdateEntryCompaction records a compaction result on an entry. Idempotent:
// the layer can only advance and a non-empty compressed summary is never
// cleared by a later empty one.
func (db *DB) UpdateEntryCompaction(id int64, summary string, newLayer int, ts int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("update compaction: %w", err)
	}
	if err := updateEntryCompactionTx(tx, id, summary, newLayer, ts); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func updateEntryCompactionTx(tx *sql.Tx, id int64, summary string, newLayer int, ts int64) error {
	_, err := tx.Exec(`
		UPDATE journal_entries SET
			compressed_summary = CASE WHEN ? != '' THEN ? ELSE compressed_summary END,
			compression_layer  = CASE WHEN compression_layer < ? THEN ? ELSE compression_layer END,
			last_compressed_at = ?
		WHERE id = ?
	`, summary, summary, newLayer, newLayer, ts, id)
	if err != nil {
		return fmt.Errorf("update entry %d compaction: %w", id, err)
	}
	return nil
}

// CountEntriesByLayer returns the number of entries per compression layer.
func (db *DB) CountEntriesByLayer() (map[int]int, error) {
	rows, err := db.Query(`
		SELECT compression_layer, COUNT(*) FROM journal_entries GROUP BY compression_layer
	`)
	if err != nil {
		return nil, fmt.Errorf("count by layer: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var layer, n int
		if err := rows.Scan(&layer, &n); err != nil {
			return nil, fmt.Errorf("scan layer count: %w", err)
		}
		counts[layer] = n
	}
	return counts, rows.Err()
}

// OldestUncompressed returns the created_at of the oldest layer-1 entry,
// or nil if everything has been compacted (or the journal is empty).
func (db *DB) OldestUncompressed() (*int64, error) {
	var ts sql.NullInt64
	err := db.QueryRow(`
		SELECT MIN(created_at) FROM journal_entries WHERE compression_layer = 1
	`).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("oldest uncompressed: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Int64, nil
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*JournalEntry, error) {
	var e JournalEntry
	var companyName, buyDate, buyScenario, buyMarket sql.NullString
	var sellReason, situation, judgment, lessons, tags sql.NullString
	var summary, compressed sql.NullString
	var buyPrice, sellPrice, profitRate sql.NullFloat64
	var holdingDays sql.NullInt64
	var lastCompressed sql.NullInt64

	err := row.Scan(&e.ID, &e.Ticker, &companyName, &e.TradeDate, &e.TradeType,
		&buyPrice, &buyDate, &buyScenario, &buyMarket,
		&sellPrice, &sellReason, &profitRate, &holdingDays,
		&situation, &judgment, &lessons, &tags,
		&summary, &e.ConfidenceScore, &e.CompressionLayer,
		&compressed, &e.CreatedAt, &lastCompressed)
	if err != nil {
		return nil, err
	}

	e.CompanyName = companyName.String
	e.BuyDate = buyDate.String
	e.BuyScenario = buyScenario.String
	e.BuyMarketContext = buyMarket.String
	e.SellReason = sellReason.String
	e.SituationAnalysis = situation.String
	e.JudgmentEvaluation = judgment.String
	e.Lessons = lessons.String
	e.PatternTags = tags.String
	e.OneLineSummary = summary.String
	e.CompressedSummary = compressed.String
	e.BuyPrice = buyPrice.Float64
	e.SellPrice = sellPrice.Float64
	e.HoldingDays = int(holdingDays.Int64)
	if profitRate.Valid {
		e.ProfitRate = &profitRate.Float64
	}
	if lastCompressed.Valid {
		e.LastCompressedAt = &lastCompressed.Int64
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]JournalEntry, error) {
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
