package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bootstack/bootstack/internal/constants"
	"github.com/bootstack/bootstack/internal/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(_ *cobra.Command, _ []string) {
		output.Println(constants.ProjectName, *constants.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
