package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cogdedup/internal/config"
	"cogdedup/internal/engine"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store, tiering, and drift statistics for the current root",
	Run: func(cmd *cobra.Command, args []string) {
		root, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := checkRoot(filepath.Join(root, ".cogdedup")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v (run 'cogdedup init' first)\n", err)
			os.Exit(1)
		}

		cfg, err := config.NewManager(root).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		e, err := engine.Open(root, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		s := e.Stats()
		fmt.Println("Store:")
		fmt.Printf("  unique chunks:   %d (hot=%d warm=%d cold=%d)\n", s.Store.UniqueChunks, s.Store.HotChunks, s.Store.WarmChunks, s.Store.ColdChunks)
		fmt.Printf("  warm bytes:      %s\n", humanize.Bytes(uint64(maxInt64(s.Store.WarmBytes, 0))))
		fmt.Printf("  cold bytes:      %s (compressed)\n", humanize.Bytes(uint64(maxInt64(s.Store.ColdBytesCompressed, 0))))
		fmt.Printf("  total refs:      %d\n", s.Store.TotalReferences)
		fmt.Printf("  dedup ratio:     %.2fx\n", s.Store.DedupRatio)
		fmt.Printf("  lsh index size:  %d\n", s.Store.LSHIndexSize)
		fmt.Printf("  cooccurrence:    %d pairs\n", s.Store.CooccurrencePairs)

		fmt.Println("Drift:")
		fmt.Printf("  window: %d  mean: %.2f  stddev: %.2f  trend: %.2f  drifting: %v\n",
			s.Drift.WindowSize, s.Drift.Mean, s.Drift.StdDev, s.Drift.Trend, s.Drift.IsDrifting)

		fmt.Println("Predictor:")
		fmt.Printf("  cache size: %d\n", s.PredictorSize)

		fmt.Println("Temporal motifs:")
		fmt.Printf("  events observed: %d  motifs: %d  top occurrences: %d (length %d)\n",
			s.Temporal.EventsObserved, s.Temporal.MotifsDetected, s.Temporal.TopMotifOccurrences, s.Temporal.TopMotifLength)

		fmt.Println("Recursive self-compression:")
		fmt.Printf("  batches: %d  overall ratio: %.2fx (%.1f%% saved)\n",
			s.Recursive.BatchesCompressed, s.Recursive.OverallRatio, s.Recursive.OverallSavingsPct)
	},
}

func maxInt64(v int64, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
