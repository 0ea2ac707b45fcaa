// Package engine orchestrates journal ingestion, context retrieval, score
// adjustment, and batch compaction over the store.
package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/hindsight/internal/config"
	"github.com/quantfold/hindsight/internal/llm"
	"github.com/quantfold/hindsight/internal/store"
)

// Engine ties the journal store to the LLM for reflection and compaction.
type Engine struct {
	DB  *store.DB
	LLM llm.Client
	Cfg config.Config

	log *zap.SugaredLogger

	// compacting serializes compaction cycles. A cycle that finds the lock
	// held returns immediately instead of queueing.
	compacting sync.Mutex

	stopCh chan struct{}
}

// New creates a new Engine. A nil logger disables logging.
func New(db *store.DB, client llm.Client, cfg config.Config, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		DB:     db,
		LLM:    client,
		Cfg:    cfg,
		log:    logger,
		stopCh: make(chan struct{}),
	}
}

// StartDecayTimer runs intuition confidence decay on startup and then on the
// configured interval.
func (e *Engine) StartDecayTimer() {
	halfLife := time.Duration(e.Cfg.Compaction.DecayHalfLifeDays) * 24 * time.Hour
	interval := time.Duration(e.Cfg.Compaction.DecayIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	runDecay := func() {
		if updated, err := e.DB.DecayIntuitions(halfLife, e.Cfg.Compaction.DecayFloor); err != nil {
			e.log.Errorw("intuition decay failed", "error", err)
		} else if updated > 0 {
			e.log.Infow("intuition decay", "updated", updated)
		}
	}

	runDecay()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runDecay()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Stats summarizes the journal's current state.
type Stats struct {
	TotalEntries       int         `json:"total_entries"`
	EntriesByLayer     map[int]int `json:"entries_by_layer"`
	OldestUncompressed *int64      `json:"oldest_uncompressed"`
	ActiveIntuitions   int         `json:"active_intuitions"`
	SchemaVersion      int         `json:"schema_version"`
}

// Stats reports journal and intuition counts.
func (e *Engine) Stats() (*Stats, error) {
	byLayer, err := e.DB.CountEntriesByLayer()
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byLayer {
		total += n
	}

	oldest, err := e.DB.OldestUncompressed()
	if err != nil {
		return nil, err
	}
	intuitions, err := e.DB.CountIntuitions()
	if err != nil {
		return nil, err
	}
	version, err := e.DB.SchemaVersion()
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalEntries:       total,
		EntriesByLayer:     byLayer,
		OldestUncompressed: oldest,
		ActiveIntuitions:   intuitions,
		SchemaVersion:      version,
	}, nil
}
