package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantfold/hindsight/internal/config"
	"github.com/quantfold/hindsight/internal/engine"
	"github.com/quantfold/hindsight/internal/llm"
	"github.com/quantfold/hindsight/internal/store"
)

var (
	cfgPath string
	dbPath  string
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hindsight",
	Short: "Trading journal with compacting memory",
	Long: `Hindsight records closed trades as journal entries, retrieves past
experience for new candidates, and periodically compresses old entries
into reusable intuitions via an LLM.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.hindsight/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default ~/.hindsight/hindsight.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(adjustCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(intuitionsCmd)
	rootCmd.AddCommand(statsCmd)
}

func loadConfig() (config.Config, error) {
	path := cfgPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}

func openDB(cfg config.Config) (*store.DB, error) {
	path := dbPath
	if path == "" {
		path = cfg.Database.Path
	}
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(path)
}

// newEngine builds the engine. The LLM client may be absent: retrieval and
// adjustment work without one, ingestion degrades to skeleton narratives.
func newEngine(db *store.DB, cfg config.Config) *engine.Engine {
	var client llm.Client
	c, err := llm.NewClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), reflections disabled\n", err)
	} else {
		client = c
	}
	return engine.New(db, client, cfg, logger.Sugar())
}
