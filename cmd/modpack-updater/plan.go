package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/logging"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/output"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/reconcile"
)

var planCmd = &cobra.Command{
	Use:   "plan [instance-path]",
	Short: "Show what an update would change without applying it",
	Long: `Compute the reconciliation plan between the pack repository and the
instance and print it. Nothing on disk is modified.

The plan lists every file that would be created, overwritten or
deleted inside the managed folders, plus the files that are reset to
their shipped defaults on every update.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

// runPlan computes and prints the plan.
func runPlan(_ *cobra.Command, args []string) error {
	env, err := setupRun(args)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	formatter, err := output.Get(flagOutput)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", flagOutput, output.Available())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	commit, err := fetchSnapshot(ctx, env)
	if err != nil {
		return err
	}

	plan, err := reconcile.Plan(ctx, env.snapshotDir, env.instanceRoot, &env.cfg.Zones)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, &output.Report{Plan: plan, Commit: commit, Branch: env.branch}); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}
