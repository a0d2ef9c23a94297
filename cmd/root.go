package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Turbootzz/mrpack-installer/internal/config"
	"github.com/Turbootzz/mrpack-installer/internal/installer"
	"github.com/Turbootzz/mrpack-installer/internal/logging"
	"github.com/Turbootzz/mrpack-installer/internal/profile"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	profileName string
	verbose     bool
	logFile     string
)

var rootCmd = &cobra.Command{
	Use:           "mrpack-installer",
	Short:         "Install and update Modrinth modpacks on servers",
	Long:          "Installs the server-side files of a Modrinth modpack into a server instance and keeps them up to date: mods are reconciled against the pack manifest, overrides are applied on top, and mods the pack no longer ships are removed.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyProfile(cmd); err != nil {
			return err
		}

		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}
		return nil
	},
}

// applyProfile fills flag values from the named profile. A flag the user
// set explicitly always wins over the saved value.
func applyProfile(cmd *cobra.Command) error {
	if profileName == "" {
		return nil
	}

	p, err := profile.Load(profileName)
	if err != nil {
		return err
	}
	if p.ConfigPath != nil && !cmd.Flags().Changed("config") {
		configPath = *p.ConfigPath
	}
	if p.Concurrency != nil && !cmd.Flags().Changed("concurrency") {
		concurrency = *p.Concurrency
	}
	if p.Verbose != nil && !cmd.Flags().Changed("verbose") {
		verbose = *p.Verbose
	}
	if p.LogFile != nil && !cmd.Flags().Changed("log-file") {
		logFile = *p.LogFile
	}
	return nil
}

// Execute runs the CLI. Exit codes: 0 on success (including an already
// up-to-date instance), 2 when some files failed while the rest of the run
// went through, 1 for everything fatal.
func Execute() {
	err := rootCmd.Execute()
	closeErr := logging.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		if err == nil {
			os.Exit(1)
		}
	}
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if isUsageError(err) {
		if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
			_ = cmd.Usage()
		} else {
			_ = rootCmd.Usage()
		}
		os.Exit(1)
	}
	if errors.Is(err, installer.ErrPartialFailure) {
		os.Exit(2)
	}
	os.Exit(1)
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "Path to the instance config file")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Load a saved option profile by name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write command output to a log file")
}

// commandContext cancels on SIGINT/SIGTERM so in-flight downloads stop and
// the run concludes without recording the interrupted version.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
