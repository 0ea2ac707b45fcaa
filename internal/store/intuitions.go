package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Intuition is a distilled, reusable lesson derived from multiple journal
// entries. At most one live row exists per normalized (category, condition).
type Intuition struct {
	ID               int64
	Category         string
	Subcategory      string
	Condition        string
	Insight          string
	Confidence       float64
	SupportingTrades int
	SuccessRate      float64
	SourceEntryIDs   []int64
	CreatedAt        int64
	UpdatedAt        int64
}

// IntuitionCandidate is a merge input, typically parsed from a compaction
// response. Zero SupportingTrades is treated as 1 so every duplicate save
// strictly increases the stored count.
type IntuitionCandidate struct {
	Category         string  `json:"category"`
	Subcategory      string  `json:"subcategory"`
	Condition        string  `json:"condition"`
	Insight          string  `json:"insight"`
	Confidence       float64 `json:"confidence"`
	SupportingTrades int     `json:"supporting_trades"`
	SuccessRate      float64 `json:"success_rate"`
}

// IntuitionFilter selects intuitions. Zero-valued fields are ignored.
type IntuitionFilter struct {
	Category      string
	Subcategory   string
	MinConfidence float64
	Limit         int
}

// normKey lowercases and collapses internal whitespace for natural-key
// comparison of category and condition.
func normKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

const intuitionColumns = `id, category, subcategory, condition, insight,
	confidence, supporting_trades, success_rate, source_entry_ids,
	created_at, updated_at`

// UpsertIntuition inserts a new intuition or merges into the existing row
// for the same normalized (category, condition). Merging combines confidence
// and success_rate by supporting-trades weighted average, strictly increases
// supporting_trades, and unions the source entry IDs.
func (db *DB) UpsertIntuition(c IntuitionCandidate, sourceIDs []int64) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("upsert intuition: %w", err)
	}
	id, err := upsertIntuitionTx(tx, c, sourceIDs, time.Now().UnixMilli())
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert intuition: %w", err)
	}
	return id, nil
}

func upsertIntuitionTx(tx *sql.Tx, c IntuitionCandidate, sourceIDs []int64, now int64) (int64, error) {
	if strings.TrimSpace(c.Category) == "" || strings.TrimSpace(c.Condition) == "" {
		return 0, fmt.Errorf("upsert intuition: category and condition are required")
	}
	if c.SupportingTrades < 1 {
		c.SupportingTrades = 1
	}
	c.Confidence = clamp01(c.Confidence)
	c.SuccessRate = clamp01(c.SuccessRate)

	catKey := normKey(c.Category)
	condKey := normKey(c.Condition)

	var (
		id         int64
		confidence float64
		supporting int
		success    float64
		sourceJSON sql.NullString
	)
	err := tx.QueryRow(`
		SELECT id, confidence, supporting_trades, success_rate, source_entry_ids
		FROM intuitions WHERE category_key = ? AND condition_key = ?
	`, catKey, condKey).Scan(&id, &confidence, &supporting, &success, &sourceJSON)

	if err == sql.ErrNoRows {
		result, err := tx.Exec(`
			INSERT INTO intuitions (category, subcategory, condition, insight,
				confidence, supporting_trades, success_rate, source_entry_ids,
				category_key, condition_key, created_at, updated_at)
			VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.Category, c.Subcategory, c.Condition, c.Insight,
			c.Confidence, c.SupportingTrades, c.SuccessRate, encodeIDs(sourceIDs),
			catKey, condKey, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert intuition: %w", err)
		}
		newID, _ := result.LastInsertId()
		return newID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup intuition: %w", err)
	}

	// Weighted merge: existing and candidate contribute in proportion to
	// their supporting trade counts.
	total := supporting + c.SupportingTrades
	mergedConfidence := (confidence*float64(supporting) + c.Confidence*float64(c.SupportingTrades)) / float64(total)
	mergedSuccess := (success*float64(supporting) + c.SuccessRate*float64(c.SupportingTrades)) / float64(total)
	mergedSources := unionIDs(decodeIDs(sourceJSON.String), sourceIDs)

	_, err = tx.Exec(`
		UPDATE intuitions SET insight = ?, confidence = ?, supporting_trades = ?,
			success_rate = ?, source_entry_ids = ?, updated_at = ?
		WHERE id = ?
	`, c.Insight, mergedConfidence, total, mergedSuccess, encodeIDs(mergedSources), now, id)
	if err != nil {
		return 0, fmt.Errorf("merge intuition %d: %w", id, err)
	}
	return id, nil
}

// GetIntuition returns the intuition for a normalized (category, condition)
// key, or nil if none exists.
func (db *DB) GetIntuition(category, condition string) (*Intuition, error) {
	row := db.QueryRow(`SELECT `+intuitionColumns+` FROM intuitions
		WHERE category_key = ? AND condition_key = ?`, normKey(category), normKey(condition))
	i, err := scanIntuition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intuition: %w", err)
	}
	return i, nil
}

// GetIntuitions returns intuitions matching the filter, ordered by
// confidence descending.
func (db *DB) GetIntuitions(f IntuitionFilter) ([]Intuition, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString(`SELECT ` + intuitionColumns + ` FROM intuitions WHERE 1=1`)
	if f.Category != "" {
		sb.WriteString(" AND category_key = ?")
		args = append(args, normKey(f.Category))
	}
	if f.Subcategory != "" {
		sb.WriteString(" AND subcategory = ?")
		args = append(args, f.Subcategory)
	}
	if f.MinConfidence > 0 {
		sb.WriteString(" AND confidence >= ?")
		args = append(args, f.MinConfidence)
	}
	sb.WriteString(" ORDER BY confidence DESC, supporting_trades DESC, id ASC")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}

	rows, err := db.Query(sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("get intuitions: %w", err)
	}
	defer rows.Close()

	var list []Intuition
	for rows.Next() {
		i, err := scanIntuition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intuition: %w", err)
		}
		list = append(list, *i)
	}
	return list, rows.Err()
}

// CountIntuitions returns the number of stored intuitions.
func (db *DB) CountIntuitions() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM intuitions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count intuitions: %w", err)
	}
	return count, nil
}

// DecayIntuitions applies time-based confidence decay to all intuitions,
// with the given half-life and floor. Confidence only ever decreases via
// decay; freshly merged rows are unaffected until time passes.
func (db *DB) DecayIntuitions(halfLife time.Duration, floor float64) (int, error) {
	if halfLife <= 0 {
		return 0, nil
	}
	rows, err := db.Query(`SELECT id, confidence, updated_at FROM intuitions`)
	if err != nil {
		return 0, fmt.Errorf("query decayable intuitions: %w", err)
	}
	defer rows.Close()

	type target struct {
		id         int64
		confidence float64
		updatedAt  int64
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.id, &t.confidence, &t.updatedAt); err != nil {
			return 0, fmt.Errorf("scan decay target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now().UnixMilli()
	updated := 0
	for _, t := range targets {
		elapsed := float64(now - t.updatedAt)
		if elapsed <= 0 {
			continue
		}
		decayed := t.confidence * math.Pow(0.5, elapsed/float64(halfLife.Milliseconds()))
		if decayed < floor {
			decayed = floor
		}
		if decayed >= t.confidence {
			continue
		}
		if _, err := db.Exec(`UPDATE intuitions SET confidence = ? WHERE id = ?`, decayed, t.id); err != nil {
			return updated, fmt.Errorf("update decay: %w", err)
		}
		updated++
	}
	return updated, nil
}

// CompactionUpdate is one journal-side write of a compaction batch.
type CompactionUpdate struct {
	EntryID  int64
	Summary  string
	NewLayer int
}

// ApplyCompaction commits one compaction cycle in a single transaction:
// every entry update and every intuition merge succeed or none do.
func (db *DB) ApplyCompaction(updates []CompactionUpdate, candidates []IntuitionCandidate, sourceIDs []int64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("apply compaction: %w", err)
	}
	now := time.Now().UnixMilli()

	for _, u := range updates {
		if err := updateEntryCompactionTx(tx, u.EntryID, u.Summary, u.NewLayer, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, c := range candidates {
		if _, err := upsertIntuitionTx(tx, c, sourceIDs, now); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply compaction: %w", err)
	}
	return nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func encodeIDs(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func unionIDs(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	var out []int64
	for _, id := range a {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range b {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func scanIntuition(row rowScanner) (*Intuition, error) {
	var i Intuition
	var subcategory, insight, sources sql.NullString
	err := row.Scan(&i.ID, &i.Category, &subcategory, &i.Condition, &insight,
		&i.Confidence, &i.SupportingTrades, &i.SuccessRate, &sources,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Subcategory = subcategory.String
	i.Insight = insight.String
	i.SourceEntryIDs = decodeIDs(sources.String)
	return &i, nil
}
