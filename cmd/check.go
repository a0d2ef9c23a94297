package cmd

import (
	"github.com/Turbootzz/mrpack-installer/internal/config"
	"github.com/Turbootzz/mrpack-installer/internal/installer"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show the installed version against the newest available one",
	Long:  "Resolves the newest modpack version matching the config and reports what an update would change. Nothing on disk is touched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		ctx, stop := commandContext()
		defer stop()

		return installer.Check(ctx, cfg, installer.Options{})
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
