package cmd

import (
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bootstack/bootstack/internal/config"
	"github.com/bootstack/bootstack/internal/output"
	"github.com/bootstack/bootstack/internal/provision"
)

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "Print the outputs of the provisioned stack",
	RunE:  outputsRun,
}

func init() {
	rootCmd.AddCommand(outputsCmd)
}

func outputsRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return err
	}

	deployer := provision.NewStackDeployer(awsCfg, cfg.StackTimeout, slog.Default())
	outputs, err := deployer.Outputs(ctx, cfg.StackName)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	output.Header("Stack outputs: " + cfg.StackName)
	for _, key := range keys {
		output.KeyValue(key, outputs[key])
	}

	return nil
}
