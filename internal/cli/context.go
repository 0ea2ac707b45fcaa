package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var contextSector string

var contextCmd = &cobra.Command{
	Use:   "context <ticker>",
	Short: "Show past experience relevant to a candidate trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

func init() {
	contextCmd.Flags().StringVar(&contextSector, "sector", "", "sector for aggregate history")
}

func runContext(cmd *cobra.Command, args []string) error {
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
	digest, err := eng.GetContext(args[0], contextSector)
	if err != nil {
		return err
	}
	if digest == "" {
		fmt.Println("no relevant history")
		return nil
	}
	fmt.Println(digest)
	return nil
}
