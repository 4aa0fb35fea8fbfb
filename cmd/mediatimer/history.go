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

var (
	historyDays     int
	historyCategory string
	historyYes      bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and edit the session history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List today's sessions",
	Args:  cobra.NoArgs,
	RunE: withBackend(func(ctx context.Context, b backend, args []string) error {
		snap, err := b.Status(ctx)
		if err != nil {
			return err
		}
		printSessions(snap.TodaySessions)
		return nil
	}),
}

var historyDaysCmd = &cobra.Command{
	Use:   "days",
	Short: "Show per-day totals for the last week",
	Args:  cobra.NoArgs,
	RunE: withBackend(func(ctx context.Context, b backend, args []string) error {
		days, err := b.Days(ctx, historyDays)
		if err != nil {
			return err
		}
		for _, d := range days {
			fmt.Printf("%s  normal %-8s adult %s\n", d.Date, tui.Human(d.Totals.NormalSeconds), tui.Human(d.Totals.AdultSeconds))
		}
		return nil
	}),
}

var historyAddCmd = &cobra.Command{
	Use:   "add HOURS MINUTES",
	Short: "Record time watched away from the timer",
	Example: `  mediatimer history add 1 30
  mediatimer history add 0 45 --category movie`,
	Args: cobra.ExactArgs(2),
	RunE: withBackend(func(ctx context.Context, b backend, args []string) error {
		var hours, minutes int
		if _, err := fmt.Sscanf(args[0], "%d", &hours); err != nil {
			return fmt.Errorf("%w: hours must be a whole number", policy.ErrInvalidInput)
		}
		if _, err := fmt.Sscanf(args[1], "%d", &minutes); err != nil {
			return fmt.Errorf("%w: minutes must be a whole number", policy.ErrInvalidInput)
		}
		category, err := policy.ParseCategory(historyCategory)
		if err != nil {
			return err
		}

		s, err := b.AddManual(ctx, hours, minutes, category)
		if err != nil {
			return err
		}
		_, _ = color.New(color.FgGreen).Printf("Added %s of %s\n", tui.Human(s.Duration), s.Category)
		return nil
	}),
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded session",
	Args:  cobra.NoArgs,
	RunE: withBackend(func(ctx context.Context, b backend, args []string) error {
		if !historyYes {
			return fmt.Errorf("refusing to clear history without --yes")
		}
		if err := b.ClearHistory(ctx); err != nil {
			return err
		}
		_, _ = color.New(color.FgYellow, color.Bold).Println("History cleared")
		return nil
	}),
}

func init() {
	historyDaysCmd.Flags().IntVarP(&historyDays, "days", "n", 7, "Number of days (1-7)")
	historyAddCmd.Flags().StringVar(&historyCategory, "category", string(policy.CategoryNormal), "Category (normal, adult or movie)")
	historyClearCmd.Flags().BoolVar(&historyYes, "yes", false, "Confirm the deletion")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyDaysCmd)
	historyCmd.AddCommand(historyAddCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

// withBackend loads configuration and connects before running fn.
func withBackend(fn func(ctx context.Context, b backend, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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

		return fn(ctx, b, args)
	}
}

// printSessions prints a session list with icons and today's total.
func printSessions(sessions []usage.Session) {
	if len(sessions) == 0 {
		fmt.Println("No sessions today")
		return
	}

	gray := color.New(color.FgHiBlack)
	var total int64
	for _, s := range sessions {
		total += s.Duration
		_, _ = gray.Printf("%s ", s.Timestamp.Local().Format("15:04"))
		fmt.Printf("%s %-6s %8s", tui.Icon(s.Category), s.Category, tui.Human(s.Duration))
		if s.Manual {
			_, _ = gray.Print("  (manual)")
		}
		fmt.Println()
	}
	_, _ = color.New(color.Bold).Printf("Total %s\n", tui.Human(total))
}
