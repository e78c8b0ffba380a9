package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/config"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/snapshot"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List branches available in the pack repository",
	Long: `Query the pack repository for its branches. Pass one of them with
--branch to track a different pack variant or Minecraft version.`,
	RunE: runBranches,
}

func init() {
	rootCmd.AddCommand(branchesCmd)
}

// runBranches lists the remote branches.
func runBranches(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if !snapshot.IsGitAvailable() {
		return fmt.Errorf("git is not installed or not on PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider := snapshot.NewGitProvider(cfg.Repo.URL)
	branches, err := provider.Branches(ctx)
	if err != nil {
		return fmt.Errorf("failed to list branches: %w", err)
	}

	if len(branches) == 0 {
		printInfo("No branches found at %s", cfg.Repo.URL)
		return nil
	}

	for _, branch := range branches {
		marker := "  "
		if branch == cfg.Repo.Branch {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, branch)
	}
	return nil
}
