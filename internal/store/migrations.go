package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "journal_entries: one record per closed trade or skipped candidate",
		SQL: `
CREATE TABLE journal_entries (
    id                  INTEGER PRIMARY KEY,
    ticker              TEXT NOT NULL,
    company_name        TEXT,
    trade_date          TEXT NOT NULL,
    trade_type          TEXT NOT NULL CHECK (trade_type IN ('buy', 'sell', 'skip')),

    -- Entry-side snapshot
    buy_price           REAL,
    buy_date            TEXT,
    buy_scenario        TEXT,
    buy_market_context  TEXT,

    -- Exit-side outcome
    sell_price          REAL,
    sell_reason         TEXT,
    profit_rate         REAL,
    holding_days        INTEGER,

    -- Structured narrative (JSON text)
    situation_analysis  TEXT,
    judgment_evaluation TEXT,
    lessons             TEXT,
    pattern_tags        TEXT,
    one_line_summary    TEXT,
    confidence_score    REAL NOT NULL DEFAULT 0,

    -- Compaction state
    compression_layer   INTEGER NOT NULL DEFAULT 1,
    compressed_summary  TEXT,
    created_at          INTEGER NOT NULL,
    last_compressed_at  INTEGER
);

CREATE INDEX idx_journal_ticker  ON journal_entries(ticker);
CREATE INDEX idx_journal_layer   ON journal_entries(compression_layer);
CREATE INDEX idx_journal_date    ON journal_entries(trade_date DESC);
CREATE INDEX idx_journal_created ON journal_entries(created_at);
`,
	},
	{
		Version:     2,
		Description: "intuitions: distilled confidence-weighted lessons",
		SQL: `
CREATE TABLE intuitions (
    id                INTEGER PRIMARY KEY,
    category          TEXT NOT NULL,
    subcategory       TEXT,
    condition         TEXT NOT NULL,
    insight           TEXT,
    confidence        REAL NOT NULL DEFAULT 0,
    supporting_trades INTEGER NOT NULL DEFAULT 1,
    success_rate      REAL NOT NULL DEFAULT 0,
    source_entry_ids  TEXT,

    -- Normalized natural key: lowercased, whitespace-collapsed
    category_key      TEXT NOT NULL,
    condition_key     TEXT NOT NULL,

    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL
);

CREATE UNIQUE INDEX idx_intuitions_key        ON intuitions(category_key, condition_key);
CREATE INDEX        idx_intuitions_category   ON intuitions(category);
CREATE INDEX        idx_intuitions_confidence ON intuitions(confidence DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
