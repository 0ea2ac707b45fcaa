package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var adjustSector string

var adjustCmd = &cobra.Command{
	Use:   "adjust <ticker>",
	Short: "Compute the score adjustment for a candidate trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdjust,
}

func init() {
	adjustCmd.Flags().StringVar(&adjustSector, "sector", "", "sector for intuition matching")
}

func runAdjust(cmd *cobra.Command, args []string) error {
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
	delta, reasons, err := eng.GetAdjustment(args[0], adjustSector)
	if err != nil {
		return err
	}

	fmt.Printf("adjustment for %s: %+.2f\n", args[0], delta)
	for _, r := range reasons {
		fmt.Printf("  - %s\n", r)
	}
	return nil
}
