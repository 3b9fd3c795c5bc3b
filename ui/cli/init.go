package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cogdedup/internal/config"
	"cogdedup/internal/engine"
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new cogdedup store",
	Long:  "Creates a new durable, SQLite-indexed cogdedup store in the specified directory (current directory if not specified)",
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		absDir, err := filepath.Abs(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cfg := config.Default()
		e, err := engine.Open(absDir, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing store: %v\n", err)
			os.Exit(1)
		}
		defer e.Close()

		mgr := config.NewManager(absDir)
		if err := mgr.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Initialized empty cogdedup store in %s\n", e.Root())
	},
}
