package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minecraftwithtwink/modpack-updater/cmd/modpack-updater/tui"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/config"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/history"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/logging"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/output"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/reconcile"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/snapshot"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
)

// updateEnv bundles everything a run needs after setup.
type updateEnv struct {
	cfg          *config.Config
	instanceRoot string
	snapshotDir  string
	branch       string
	provider     snapshot.Provider
	store        *history.Store
}

// runUpdate is the root command handler.
func runUpdate(_ *cobra.Command, args []string) error {
	env, err := setupRun(args)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Close() }()

	if flagNoInteractive || flagOutput != "plain" {
		return runNonInteractive(env)
	}
	return runInteractive(env)
}

// setupRun resolves the instance path, loads configuration, and
// initializes logging and the history store.
func setupRun(args []string) (*updateEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := history.New(filepath.Join(config.DataDir(), "history"), cfg.History.MaxEntries)
	if err != nil {
		return nil, err
	}

	instanceRoot, err := resolveInstancePath(args, store)
	if err != nil {
		return nil, err
	}

	branch := cfg.Repo.Branch
	if flagBranch != "" {
		branch = flagBranch
	}

	snapshotDir := flagSnapshotDir
	if snapshotDir == "" {
		snapshotDir = config.DefaultSnapshotDir()
	}

	interactive := !flagNoInteractive && flagOutput == "plain"
	logCfg := logging.Config{
		Level:   cfg.Logging.Level,
		Path:    cfg.Logging.Path,
		TUIMode: interactive,
	}
	if flagVerbose && !interactive {
		logCfg.ConsoleLevel = "debug"
	}
	if err := logging.Init(logCfg); err != nil {
		return nil, err
	}

	if !flagNoFetch && !snapshot.IsGitAvailable() {
		return nil, fmt.Errorf("git is not installed or not on PATH; install git or rerun with --no-fetch against an existing snapshot")
	}

	if err := config.EnsureDataDir(); err != nil {
		return nil, err
	}

	return &updateEnv{
		cfg:          cfg,
		instanceRoot: instanceRoot,
		snapshotDir:  snapshotDir,
		branch:       branch,
		provider:     snapshot.NewGitProvider(cfg.Repo.URL),
		store:        store,
	}, nil
}

// resolveInstancePath picks the instance directory from the argument,
// falling back to the most recently updated instance.
func resolveInstancePath(args []string, store *history.Store) (string, error) {
	if len(args) > 0 {
		expanded, err := config.ExpandPath(args[0])
		if err != nil {
			return "", err
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return "", fmt.Errorf("failed to resolve instance path: %w", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("instance path does not exist: %s", abs)
			}
			return "", fmt.Errorf("cannot access instance path: %w", err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("instance path is not a directory: %s", abs)
		}
		return abs, nil
	}

	recent, err := store.Instances()
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return "", fmt.Errorf("no instance path given and no previous instance on record; run 'modpack-updater <instance-path>'")
	}
	printVerbose("Using most recent instance: %s", recent[0])
	return recent[0], nil
}

// runInteractive hands the whole flow to the TUI.
func runInteractive(env *updateEnv) error {
	result, err := tui.Run(tui.Options{
		InstanceRoot: env.instanceRoot,
		SnapshotDir:  env.snapshotDir,
		Branch:       env.branch,
		Zones:        &env.cfg.Zones,
		Provider:     env.provider,
		History:      env.store,
		DryRun:       flagDryRun,
		NoFetch:      flagNoFetch,
	})
	if err != nil {
		return err
	}
	if result != nil && result.Status == types.RunPartialFailure {
		return fmt.Errorf("some operations failed; see the log at %s", logging.DefaultLogPath())
	}
	return nil
}

// runNonInteractive fetches, plans, optionally executes, and prints a
// report in the selected format.
func runNonInteractive(env *updateEnv) error {
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
		printInfo("\nInterrupted, stopping...")
		cancel()
	}()

	commit, err := fetchSnapshot(ctx, env)
	if err != nil {
		return err
	}

	printVerbose("Planning against snapshot %s", env.snapshotDir)
	plan, err := reconcile.Plan(ctx, env.snapshotDir, env.instanceRoot, &env.cfg.Zones)
	if err != nil {
		return err
	}

	report := &output.Report{Plan: plan, Commit: commit, Branch: env.branch}

	if !flagDryRun {
		result, execErr := reconcile.Execute(ctx, plan, env.instanceRoot)
		if execErr != nil {
			return execErr
		}
		report.Result = result

		if hErr := env.store.Touch(env.instanceRoot); hErr != nil {
			printVerbose("Failed to record instance path: %v", hErr)
		}
		if _, hErr := env.store.LogRun(env.instanceRoot, env.branch, result); hErr != nil {
			printVerbose("Failed to record run: %v", hErr)
		}
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, report); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())

	if report.Result != nil && report.Result.Status != types.RunSuccess {
		return fmt.Errorf("run finished with status %q", report.Result.Status)
	}
	return nil
}

// fetchSnapshot materializes the snapshot unless --no-fetch was given,
// returning the checked-out commit when known.
func fetchSnapshot(ctx context.Context, env *updateEnv) (string, error) {
	if flagNoFetch {
		if _, err := os.Stat(env.snapshotDir); err != nil {
			return "", fmt.Errorf("--no-fetch requires an existing snapshot at %s", env.snapshotDir)
		}
		return "", nil
	}

	printInfo("Fetching snapshot (branch %s)...", env.branch)
	commit, err := env.provider.Fetch(ctx, env.branch, env.snapshotDir)
	if err != nil {
		return "", fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	logging.Get("snapshot").Info("snapshot fetched", "commit", commit, "branch", env.branch)
	return commit, nil
}
