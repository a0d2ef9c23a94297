package cmd

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/Turbootzz/mrpack-installer/internal/logging"
	"github.com/Turbootzz/mrpack-installer/internal/profile"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Save and reuse sets of command-line options",
	Long: `Profiles store flag values (config path, concurrency, logging) under a
name. Pass --profile <name> to any command to apply them.`,
}

// create's flag values, bound in init.
var (
	profConfigPath  *string
	profConcurrency *int
	profVerbose     *bool
)

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Save the given options under a name",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := &profile.Profile{}

		if cmd.Flags().Changed("config") {
			p.ConfigPath = profConfigPath
		}
		if cmd.Flags().Changed("concurrency") {
			p.Concurrency = profConcurrency
		}
		if cmd.Flags().Changed("verbose") {
			p.Verbose = profVerbose
		}
		if cmd.Flags().Changed("log-file") {
			p.LogFile = &logFile
		}

		if err := profile.Save(args[0], p); err != nil {
			return err
		}
		logging.Infof("Profile %q saved to %s", args[0], profile.Path())
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Print the names of saved profiles",
	Args:    usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			logging.Info("No profiles saved.")
			return nil
		}
		for _, n := range names {
			logging.Info(n)
		}
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a profile's saved options",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return err
		}
		if buf.Len() == 0 {
			logging.Infof("Profile %q has no saved options.", args[0])
			return nil
		}
		logging.Infof("%s", buf.String())
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := profile.Delete(args[0]); err != nil {
			return err
		}
		logging.Infof("Profile %q deleted.", args[0])
		return nil
	},
}

func init() {
	// create registers local flags that shadow the persistent ones by name,
	// so "profile create --verbose" records the value instead of enabling it.
	profConfigPath = profileCreateCmd.Flags().String("config", "", "Config file path to save")
	profConcurrency = profileCreateCmd.Flags().Int("concurrency", 0, "Download concurrency to save")
	profVerbose = profileCreateCmd.Flags().Bool("verbose", false, "Verbose logging setting to save")

	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileShowCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
