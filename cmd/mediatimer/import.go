package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/storage"
	"github.com/spf13/cobra"
)

var importMerge bool

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a legacy settings and history export",
	Long: `Import settings and history exported from the browser version. The file
may hold both storage keys, a bare history array or a bare settings object.
Records are validated before anything is written. Stop the daemon first when
it uses the same storage.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importMerge, "merge", false, "Append imported sessions to the existing history instead of replacing it")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}

	exp, err := storage.ParseExport(data)
	if err != nil {
		return fmt.Errorf("invalid export: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	green := color.New(color.FgGreen)

	if exp.Settings != nil {
		if err := store.Settings().Put(ctx, *exp.Settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		_, _ = green.Println("✅ Imported settings")
	}

	if exp.History != nil {
		history := exp.History
		if importMerge {
			existing, err := store.History().Get(ctx)
			switch {
			case errors.Is(err, storage.ErrNotFound):
			case err != nil:
				return fmt.Errorf("failed to read existing history: %w", err)
			default:
				history = append(existing, history...)
			}
		}
		if err := store.History().Put(ctx, history); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
		_, _ = green.Printf("✅ Imported %d session(s)\n", len(exp.History))
	}

	return nil
}
