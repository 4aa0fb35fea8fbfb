package main

import (
	"context"
	"fmt"

	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change limits and break timing",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active settings",
	Args:  cobra.NoArgs,
	RunE: withBackend(func(ctx context.Context, b backend, args []string) error {
		s, err := b.Settings(ctx)
		if err != nil {
			return err
		}
		printSettings(s)
		return nil
	}),
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more settings",
	Example: `  mediatimer settings set --daily-limit 2.5
  mediatimer settings set --break-interval 30 --break-duration 5`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

func init() {
	settingsSetCmd.Flags().Float64("daily-limit", 0, "Daily limit in hours for normal and movie content")
	settingsSetCmd.Flags().Float64("adult-limit", 0, "Daily limit in hours for adult content")
	settingsSetCmd.Flags().Int("break-interval", 0, "Minutes of continuous viewing before a break")
	settingsSetCmd.Flags().Int("break-duration", 0, "Break length in minutes")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if !flags.Changed("daily-limit") && !flags.Changed("adult-limit") &&
		!flags.Changed("break-interval") && !flags.Changed("break-duration") {
		return fmt.Errorf("nothing to change; see --help")
	}

	return withBackend(func(ctx context.Context, b backend, args []string) error {
		s, err := b.Settings(ctx)
		if err != nil {
			return err
		}

		if flags.Changed("daily-limit") {
			s.DailyLimitHours, _ = flags.GetFloat64("daily-limit")
		}
		if flags.Changed("adult-limit") {
			s.AdultLimitHours, _ = flags.GetFloat64("adult-limit")
		}
		if flags.Changed("break-interval") {
			s.BreakIntervalMinutes, _ = flags.GetInt("break-interval")
		}
		if flags.Changed("break-duration") {
			s.BreakDurationMinutes, _ = flags.GetInt("break-duration")
		}

		if err := b.SaveSettings(ctx, s); err != nil {
			return err
		}
		printSettings(s)
		return nil
	})(cmd, args)
}

func printSettings(s policy.Settings) {
	fmt.Printf("Daily limit:    %g h\n", s.DailyLimitHours)
	fmt.Printf("Adult limit:    %g h\n", s.AdultLimitHours)
	fmt.Printf("Break interval: %d min\n", s.BreakIntervalMinutes)
	fmt.Printf("Break duration: %d min\n", s.BreakDurationMinutes)
}
