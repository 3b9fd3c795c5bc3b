package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cogdedup/internal/config"
	"cogdedup/internal/engine"
)

var decodeOutput string

var decodeCmd = &cobra.Command{
	Use:   "decode <file.ucog>",
	Short: "Expand a UCOG blob back into its original bytes",
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

		blob, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", args[0], err)
			os.Exit(1)
		}

		data, err := e.Decode(blob)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding: %v\n", err)
			os.Exit(1)
		}

		out := decodeOutput
		if out == "" {
			out = strings.TrimSuffix(args[0], ".ucog")
			if out == args[0] {
				out = args[0] + ".out"
			}
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
			os.Exit(1)
		}

		fmt.Printf("Decoded %s -> %s (%d bytes)\n", args[0], out, len(data))
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeOutput, "out", "", "output file path (default: <input> with .ucog stripped)")
}
