package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cogdedup/internal/config"
	"cogdedup/internal/engine"
)

var (
	encodeDataID string
	encodeOutput string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Compress a file into the UCOG wire format",
	Args:  cobra.ExactArgs(1),
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

		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", args[0], err)
			os.Exit(1)
		}

		dataID := encodeDataID
		if dataID == "" {
			dataID = uuid.NewString()
		}

		blob, stats, err := e.Encode(data, dataID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding: %v\n", err)
			os.Exit(1)
		}

		out := encodeOutput
		if out == "" {
			out = args[0] + ".ucog"
		}
		if err := os.WriteFile(out, blob, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
			os.Exit(1)
		}

		ratio := float64(len(data)) / float64(maxInt(len(blob), 1))
		fmt.Printf("Encoded %s -> %s\n", args[0], out)
		fmt.Printf("  data_id: %s\n", dataID)
		fmt.Printf("  %s -> %s (%.2fx)\n", humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(len(blob))), ratio)
		fmt.Printf("  chunks: %d (ref=%d delta=%d full=%d pred_delta=%d)\n",
			stats.Chunks, stats.Ref, stats.Delta, stats.Full, stats.PredDelta)
	},
}

func init() {
	encodeCmd.Flags().StringVar(&encodeDataID, "data-id", "", "identifier to register this payload's chunks under (default: a generated uuid)")
	encodeCmd.Flags().StringVar(&encodeOutput, "out", "", "output file path (default: <input>.ucog)")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
