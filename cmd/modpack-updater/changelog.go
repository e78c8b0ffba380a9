package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/logging"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/snapshot"
)

var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Show the pack changelog",
	Long: `Print the CHANGELOG.md shipped in the pack repository, fetching the
latest snapshot first unless --no-fetch is given.`,
	RunE: runChangelog,
}

func init() {
	rootCmd.AddCommand(changelogCmd)
}

// runChangelog fetches the snapshot and prints its changelog.
func runChangelog(_ *cobra.Command, _ []string) error {
	// The changelog lives in the snapshot, not the instance, so the
	// instance argument is not required here.
	env, err := setupChangelogEnv()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if _, err := fetchSnapshot(ctx, env); err != nil {
		return err
	}

	changelog, err := snapshot.Changelog(env.snapshotDir)
	if err != nil {
		return err
	}
	if changelog == "" {
		printInfo("The pack ships no changelog.")
		return nil
	}

	fmt.Print(changelog)
	return nil
}

// setupChangelogEnv is setupRun without the instance path requirement.
// The working directory stands in as the instance; this flow never
// touches it.
func setupChangelogEnv() (*updateEnv, error) {
	return setupRun([]string{"."})
}
