package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/hindsight/internal/store"
)

var intuitionFlags struct {
	category      string
	minConfidence float64
	limit         int
}

var intuitionsCmd = &cobra.Command{
	Use:   "intuitions",
	Short: "List learned intuitions",
	RunE:  runIntuitions,
}

func init() {
	f := intuitionsCmd.Flags()
	f.StringVar(&intuitionFlags.category, "category", "", "filter by category")
	f.Float64Var(&intuitionFlags.minConfidence, "min-confidence", 0, "minimum confidence")
	f.IntVar(&intuitionFlags.limit, "limit", 0, "max results")
}

func runIntuitions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	list, err := db.GetIntuitions(store.IntuitionFilter{
		Category:      intuitionFlags.category,
		MinConfidence: intuitionFlags.minConfidence,
		Limit:         intuitionFlags.limit,
	})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no intuitions yet")
		return nil
	}

	for _, i := range list {
		fmt.Printf("[%s] %s\n", i.Category, i.Condition)
		fmt.Printf("  %s\n", i.Insight)
		fmt.Printf("  confidence %.2f, success %.2f, %d supporting trades\n",
			i.Confidence, i.SuccessRate, i.SupportingTrades)
	}
	return nil
}
