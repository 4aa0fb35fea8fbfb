package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/tui"
	"github.com/goodtune/mediatimer/internal/usage"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer state",
	Long:  `Show the current phase, remaining budgets and today's sessions.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	snap, err := b.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Printf("Phase:      %s", snap.Phase)
	fmt.Printf("  (%s)\n", b.Where())

	switch snap.Phase {
	case usage.PhaseRunning:
		fmt.Printf("Category:   %s %s\n", tui.Icon(snap.Category), snap.Category)
		fmt.Printf("Elapsed:    %s\n", tui.Clock(snap.ElapsedSeconds))
		if snap.UntilBreakSeconds != nil {
			fmt.Printf("Break in:   %s\n", tui.Clock(*snap.UntilBreakSeconds))
		}
	case usage.PhaseBreak:
		fmt.Printf("Break left: %s\n", tui.Clock(snap.BreakRemainingSeconds))
	}

	fmt.Println()
	printBudget("Normal", snap.Normal)
	printBudget("Adult", snap.Adult)

	fmt.Println()
	printSessions(snap.TodaySessions)
	return nil
}
