package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal and intuition counts",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
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
	s, err := eng.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("entries: %d\n", s.TotalEntries)
	layers := make([]int, 0, len(s.EntriesByLayer))
	for layer := range s.EntriesByLayer {
		layers = append(layers, layer)
	}
	sort.Ints(layers)
	for _, layer := range layers {
		fmt.Printf("  layer %d: %d\n", layer, s.EntriesByLayer[layer])
	}
	if s.OldestUncompressed != nil {
		fmt.Printf("oldest uncompressed: %s\n",
			time.UnixMilli(*s.OldestUncompressed).Format("2006-01-02"))
	}
	fmt.Printf("intuitions: %d\n", s.ActiveIntuitions)
	fmt.Printf("schema: v%d\n", s.SchemaVersion)
	return nil
}
