package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/config"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past update runs",
	Long: `View the record of past update runs: when they ran, which instance
they updated, and how many operations were applied, skipped or failed.`,
	RunE: runHistory,
}

var historyInstancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List recently updated instances",
	Long:  `List the instance directories that were updated most recently.`,
	RunE:  runHistoryInstances,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs to show")
	historyCmd.AddCommand(historyInstancesCmd)
	rootCmd.AddCommand(historyCmd)
}

// getHistoryStore returns the history store at the configured location.
func getHistoryStore() (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return history.New(filepath.Join(config.DataDir(), "history"), cfg.History.MaxEntries)
}

// runHistory lists recent update runs.
func runHistory(_ *cobra.Command, _ []string) error {
	store, err := getHistoryStore()
	if err != nil {
		return err
	}

	runs, err := store.Runs(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		printInfo("No update runs on record.")
		printInfo("Run 'modpack-updater <instance-path>' to update an instance.")
		return nil
	}

	fmt.Printf("\n%-20s  %-16s  %-8s  %-7s  %-7s  %s\n",
		"WHEN", "STATUS", "APPLIED", "SKIPPED", "FAILED", "INSTANCE")
	fmt.Println(strings.Repeat("-", 90))

	for _, run := range runs {
		fmt.Printf("%-20s  %-16s  %-8d  %-7d  %-7d  %s\n",
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Status,
			run.Applied,
			run.Skipped,
			run.Failed,
			run.InstancePath,
		)
	}

	fmt.Println(strings.Repeat("-", 90))
	fmt.Printf("\nShowing %d runs. Use --limit to see more.\n", len(runs))

	return nil
}

// runHistoryInstances lists recently updated instance paths.
func runHistoryInstances(_ *cobra.Command, _ []string) error {
	store, err := getHistoryStore()
	if err != nil {
		return err
	}

	instances, err := store.Instances()
	if err != nil {
		return fmt.Errorf("failed to list instances: %w", err)
	}

	if len(instances) == 0 {
		printInfo("No instances on record.")
		return nil
	}

	for _, path := range instances {
		fmt.Println(path)
	}
	return nil
}
