package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/tui"
	"github.com/goodtune/mediatimer/internal/usage"
	"github.com/spf13/cobra"
)

var checkCategory string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the remaining daily budget",
	Long: `Print the remaining budget of both pools. With --category the command
fails when that category has nothing left today, for use in scripts.`,
	Example: `  mediatimer check
  mediatimer check --category movie && mpv film.mkv`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkCategory, "category", "", "Category to check (normal, adult or movie)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	var category policy.Category
	if checkCategory != "" {
		c, err := policy.ParseCategory(checkCategory)
		if err != nil {
			return err
		}
		category = c
	}

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

	printBudget("Normal", snap.Normal)
	printBudget("Adult", snap.Adult)

	if category == "" {
		return nil
	}

	budget := snap.Normal
	if category.Bucket() == policy.BucketAdult {
		budget = snap.Adult
	}
	if budget.Remaining <= 0 {
		return fmt.Errorf("%s budget spent for today", category)
	}
	return nil
}

// printBudget prints one pool colored by its threshold.
func printBudget(label string, b usage.Budget) {
	var c *color.Color
	switch b.Threshold {
	case policy.ThresholdDanger:
		c = color.New(color.FgRed, color.Bold)
	case policy.ThresholdWarning:
		c = color.New(color.FgYellow, color.Bold)
	default:
		c = color.New(color.FgGreen)
	}

	fmt.Printf("%-7s ", label+":")
	_, _ = c.Printf("%s", tui.Clock(b.Remaining))
	fmt.Printf(" left of %s (%.0f%%)\n", tui.Human(b.Limit), b.Percent)
}
