package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var compactForce bool

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compress old journal entries into summaries and intuitions",
	RunE:  runCompact,
}

func init() {
	compactCmd.Flags().BoolVar(&compactForce, "force", false, "run even below the layer-1 threshold")
}

func runCompact(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := newEngine(db, cfg)
	if eng.LLM == nil {
		return fmt.Errorf("compaction requires a configured LLM provider")
	}

	ctx := context.Background()
	run := eng.CompactIfDue
	if compactForce {
		run = eng.Compact
	}
	result, err := run(ctx)
	if err != nil {
		return err
	}

	if result.Skipped {
		fmt.Printf("skipped: %s\n", result.Reason)
		return nil
	}
	fmt.Printf("compacted %d entries, %d intuitions (run %s)\n",
		result.Compacted, result.NewIntuitions, result.RunID)
	return nil
}
