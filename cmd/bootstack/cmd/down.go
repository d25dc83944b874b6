package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bootstack/bootstack/internal/config"
	"github.com/bootstack/bootstack/internal/output"
	"github.com/bootstack/bootstack/internal/provision"
)

var downForce bool

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Delete the provisioned application stack",
	Long: `Deletes the application stack through CloudFormation and waits for
deletion to complete. All resources the template created are removed.`,
	RunE: downRun,
}

func init() {
	rootCmd.AddCommand(downCmd)
	downCmd.Flags().BoolVar(&downForce, "force", false, "Skip the confirmation prompt")
}

func downRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if !downForce && !output.Confirm("Delete stack "+cfg.StackName+" and all its resources?") {
		output.Info("Aborted")
		return nil
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return err
	}

	deployer := provision.NewStackDeployer(awsCfg, cfg.StackTimeout, slog.Default())

	output.Info("Deleting stack %s...", cfg.StackName)
	if err := deployer.Delete(ctx, cfg.StackName); err != nil {
		return err
	}

	output.Success("Stack %s deleted", cfg.StackName)
	return nil
}
