package cmd

import (
	"github.com/Turbootzz/mrpack-installer/internal/config"
	"github.com/Turbootzz/mrpack-installer/internal/installer"
	"github.com/Turbootzz/mrpack-installer/internal/logging"
	"github.com/spf13/cobra"
)

var (
	dryRun      bool
	concurrency int
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the configured modpack into the instance directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(false)
	},
}

func init() {
	addRunFlags(installCmd)
	rootCmd.AddCommand(installCmd)
}

// addRunFlags registers the flags shared by install, update and force-update.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would change without modifying anything")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of concurrent downloads (0 uses the config value)")
}

// runPipeline backs install, update and force-update: the flow is identical,
// force only bypasses the up-to-date short circuit.
func runPipeline(force bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := commandContext()
	defer stop()

	bar := &downloadBar{}
	result, err := installer.Run(ctx, cfg, installer.Options{
		Force:       force,
		DryRun:      dryRun,
		Concurrency: concurrency,
		OnProgress:  bar.update,
	})
	bar.finish()
	if err != nil {
		return err
	}

	if dryRun || (result.OldVersion == result.NewVersion && !force) {
		return nil
	}

	if result.OldVersion == "" {
		logging.Infof("Install complete: %s %s", cfg.ModpackID, result.NewVersion)
	} else {
		logging.Infof("Update complete: %s → %s", result.OldVersion, result.NewVersion)
	}
	logging.Infof("  Mods: %d downloaded, %d removed, %d preserved, %d unchanged",
		result.Downloaded, result.Removed, result.Preserved, result.Unchanged)
	logging.Infof("  Overrides: %d applied", result.OverridesApplied)
	if result.ExcludedClient > 0 {
		logging.Infof("  Excluded client-only entries: %d", result.ExcludedClient)
	}
	return nil
}
