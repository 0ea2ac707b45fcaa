package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config holds all hindsight configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	LLM        LLMConfig        `toml:"llm"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Adjustment AdjustmentConfig `toml:"adjustment"`
	Compaction CompactionConfig `toml:"compaction"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LLMConfig struct {
	Provider     string `toml:"provider"` // "anthropic", "openai", "ollama"
	Model        string `toml:"model"`
	AnthropicKey string `toml:"anthropic_key"`
	OpenAIKey    string `toml:"openai_key"`
	OpenAIURL    string `toml:"openai_url"` // override for compatible gateways
	OllamaURL    string `toml:"ollama_url"`
	OllamaModel  string `toml:"ollama_model"`
}

// RetrievalConfig bounds the trade context digest.
type RetrievalConfig struct {
	SameTickerLimit    int `toml:"same_ticker_limit"`
	SectorLookbackDays int `toml:"sector_lookback_days"`
	IntuitionLimit     int `toml:"intuition_limit"`
}

// AdjustmentConfig tunes the history-based score adjustment.
type AdjustmentConfig struct {
	RecentEntries          int     `toml:"recent_entries"`   // history window: most recent closed entries considered
	LossThreshold          float64 `toml:"loss_threshold"`   // profit rate at or below counts as a loss
	GainThreshold          float64 `toml:"gain_threshold"`   // profit rate at or above counts as a gain
	PerEntryWeight         float64 `toml:"per_entry_weight"` // score points per qualifying entry
	SampleBonus            float64 `toml:"sample_bonus"`     // extra points per entry beyond the first
	MagnitudeWeight        float64 `toml:"magnitude_weight"` // score points per percent beyond the threshold
	MaxAdjustment          float64 `toml:"max_adjustment"`   // cap on each history term
	IntuitionWeight        float64 `toml:"intuition_weight"` // multiplier on intuition confidence
	MinIntuitionConfidence float64 `toml:"min_intuition_confidence"`
}

// CompactionConfig controls batch compaction and intuition decay.
type CompactionConfig struct {
	BatchSize          int     `toml:"batch_size"`
	MinAgeDays         int     `toml:"min_age_days"`          // entries younger than this are never compacted
	LayerOneThreshold  int     `toml:"layer_one_threshold"`   // layer-1 count that triggers compaction
	DecayHalfLifeDays  int     `toml:"decay_half_life_days"`
	DecayFloor         float64 `toml:"decay_floor"`
	DecayIntervalHours int     `toml:"decay_interval_hours"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38710,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-haiku-4-5-20251001",
		},
		Retrieval: RetrievalConfig{
			SameTickerLimit:    3,
			SectorLookbackDays: 90,
			IntuitionLimit:     5,
		},
		Adjustment: AdjustmentConfig{
			RecentEntries:          3,
			LossThreshold:          -5.0,
			GainThreshold:          5.0,
			PerEntryWeight:         0.15,
			SampleBonus:            0.25,
			MagnitudeWeight:        0.05,
			MaxAdjustment:          3.0,
			IntuitionWeight:        0.5,
			MinIntuitionConfidence: 0.6,
		},
		Compaction: CompactionConfig{
			BatchSize:          10,
			MinAgeDays:         30,
			LayerOneThreshold:  20,
			DecayHalfLifeDays:  180,
			DecayFloor:         0.1,
			DecayIntervalHours: 24,
		},
	}
}

// DefaultPath returns the default config file location: ~/.hindsight/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".hindsight", "config.toml"), nil
}

// Load reads TOML config from path, layered over defaults. A missing file is
// not an error: defaults apply. Environment variables ANTHROPIC_API_KEY and
// OPENAI_API_KEY override file values when the file leaves them empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v := viper.New()
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
			if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
				dc.TagName = "toml"
				dc.WeaklyTypedInput = true
			}); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if cfg.LLM.AnthropicKey == "" {
		cfg.LLM.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.LLM.OpenAIKey == "" {
		cfg.LLM.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Adjustment.RecentEntries < 1 {
		return fmt.Errorf("adjustment.recent_entries must be >= 1")
	}
	if cfg.Adjustment.MaxAdjustment < 0 {
		return fmt.Errorf("adjustment.max_adjustment must be >= 0")
	}
	if cfg.Adjustment.LossThreshold > 0 {
		return fmt.Errorf("adjustment.loss_threshold must be <= 0")
	}
	if cfg.Adjustment.GainThreshold < 0 {
		return fmt.Errorf("adjustment.gain_threshold must be >= 0")
	}
	if cfg.Compaction.BatchSize < 1 {
		return fmt.Errorf("compaction.batch_size must be >= 1")
	}
	if cfg.Compaction.DecayFloor < 0 || cfg.Compaction.DecayFloor > 1 {
		return fmt.Errorf("compaction.decay_floor must be in [0, 1]")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
