package cmd

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the instance to the newest version matching the config",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(false)
	},
}

var forceUpdateCmd = &cobra.Command{
	Use:   "force-update",
	Short: "Run the update even when the installed version already matches",
	Long:  "Runs the full pipeline regardless of the recorded version: missing mods are fetched, stale ones removed and every override is applied again. Mods already in place are not downloaded twice.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(true)
	},
}

func init() {
	addRunFlags(updateCmd)
	addRunFlags(forceUpdateCmd)
	rootCmd.AddCommand(updateCmd, forceUpdateCmd)
}
