package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rna3dhub/motifatlas/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent pipeline events",
	Long: `Display the pipeline event log: stage starts, completions, failures and
skips, and created releases.

Examples:
  motifatlas events                       # Show last 20 events
  motifatlas events -n 50                 # Show last 50 events
  motifatlas events --run <run-id>        # Show one run
  motifatlas events --type stage_failed   # Show only failures`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		runID, _ := cmd.Flags().GetString("run")
		eventType, _ := cmd.Flags().GetString("type")
		severity, _ := cmd.Flags().GetString("severity")

		filter := events.EventFilter{RunID: runID}
		if eventType != "" {
			filter.Type = events.EventType(eventType)
			if !filter.Type.IsValid() {
				return fmt.Errorf("invalid event type %q", eventType)
			}
		}
		if severity != "" {
			filter.Severity = events.EventSeverity(severity)
			if !filter.Severity.IsValid() {
				return fmt.Errorf("invalid severity %q", severity)
			}
		}

		ctx := context.Background()
		if err := openStore(ctx); err != nil {
			return err
		}
		list, err := store.GetEvents(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}
		if limit > 0 && len(list) > limit {
			list = list[len(list)-limit:]
		}

		if len(list) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No events found matching the criteria\n\n", yellow("✨"))
			return nil
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Pipeline events (%d):\n\n", cyan("📋"), len(list))
		for _, e := range list {
			displayEvent(e)
		}
		fmt.Println()
		return nil
	},
}

var eventsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old pipeline events",
	Long: `Delete pipeline events older than the retention period. Critical events
are kept for their own, longer period.

Defaults come from the events section of the config and ATLAS_EVENT_*.

Examples:
  motifatlas events cleanup
  motifatlas events cleanup --retention-days 7`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc := cfg.Events
		if cmd.Flags().Changed("retention-days") {
			rc.RetentionDays, _ = cmd.Flags().GetInt("retention-days")
		}
		if cmd.Flags().Changed("critical-retention-days") {
			rc.RetentionCriticalDays, _ = cmd.Flags().GetInt("critical-retention-days")
		}
		if err := rc.Validate(); err != nil {
			return err
		}

		ctx := context.Background()
		if err := openStore(ctx); err != nil {
			return err
		}
		n, err := store.CleanupEvents(ctx, rc.RetentionDays, rc.RetentionCriticalDays, rc.CleanupBatchSize)
		if err != nil {
			return fmt.Errorf("event cleanup failed: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %d event(s) (retention: %d days, critical: %d days)\n",
			green("✓"), n, rc.RetentionDays, rc.RetentionCriticalDays)
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show")
	eventsCmd.Flags().String("run", "", "Filter events by run id")
	eventsCmd.Flags().StringP("type", "t", "", "Filter by event type (e.g. stage_failed, release_created)")
	eventsCmd.Flags().StringP("severity", "s", "", "Filter by severity (info, warning, error, critical)")

	eventsCleanupCmd.Flags().Int("retention-days", 0, "Delete events older than this many days")
	eventsCleanupCmd.Flags().Int("critical-retention-days", 0, "Delete critical events older than this many days")

	eventsCmd.AddCommand(eventsCleanupCmd)
	rootCmd.AddCommand(eventsCmd)
}
