package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagBranch        string
	flagSnapshotDir   string
	flagOutput        string
	flagNoInteractive bool
	flagDryRun        bool
	flagNoFetch       bool
	flagQuiet         bool
	flagVerbose       bool

	rootCmd = &cobra.Command{
		Use:   "modpack-updater [instance-path]",
		Short: "Keep a Minecraft instance in sync with the pack repository",
		Long: `Modpack-updater reconciles a Minecraft instance directory against the
pack's git repository. Managed folders (mods, kubejs, resource packs)
are mirrored exactly; saves, screenshots and personal settings are
never touched.

By default the updater launches an interactive TUI that shows the
planned changes before applying them. Use --no-interactive or
--output json for scripted runs.

Examples:
  modpack-updater ~/minecraft/instance    # Interactive update
  modpack-updater                         # Re-update the last instance
  modpack-updater -b 1.21-neoforge .      # Track a different branch
  modpack-updater plan .                  # Preview without applying
  modpack-updater -n -o json .            # Scripted update, JSON report
  modpack-updater history                 # Past runs and instances`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runUpdate,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBranch, "branch", "b", "", "repository branch to sync against (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagSnapshotDir, "snapshot-dir", "", "snapshot clone directory (default: XDG data dir)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "plain", "output format for non-interactive runs (plain, json)")
	rootCmd.PersistentFlags().BoolVarP(&flagNoInteractive, "no-interactive", "n", false, "disable TUI, use text output")
	rootCmd.PersistentFlags().BoolVarP(&flagDryRun, "dry-run", "d", false, "compute and show the plan without applying it")
	rootCmd.PersistentFlags().BoolVar(&flagNoFetch, "no-fetch", false, "use the existing snapshot clone without fetching")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug output")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if flagVerbose && !flagQuiet {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !flagQuiet {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
