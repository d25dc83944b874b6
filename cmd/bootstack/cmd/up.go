package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/bootstack/bootstack/internal/config"
	"github.com/bootstack/bootstack/internal/output"
	"github.com/bootstack/bootstack/internal/project"
	"github.com/bootstack/bootstack/internal/provision"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision the application stack and trigger the first deploy",
	Long: `Verifies credentials, ensures the deploy token secret exists,
discovers the network topology, applies the application stack template
and starts the first pipeline execution.

Configuration comes from compiled-in defaults, ~/.bootstack/config.yaml
and BOOTSTACK_* environment variables.`,
	RunE: upRun,
}

func init() {
	rootCmd.AddCommand(upCmd)
}

func upRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if project.ExistsInCurrentDir() {
		proj, err := project.LoadFromCurrentDir()
		if err != nil {
			return err
		}
		proj.ApplyTo(cfg)
		if verbose {
			output.Info("Using %s from the current directory", project.FileName)
		}
	}

	if verbose {
		output.Info("Target region: %s", output.Bold(cfg.Region))
		output.Info("Stack name: %s", output.Bold(cfg.StackName))
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return err
	}

	return newOrchestrator(cfg, awsCfg).Run(ctx)
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return awsCfg, nil
}

func newOrchestrator(cfg *config.Config, awsCfg aws.Config) *provision.Orchestrator {
	log := slog.Default()
	prompter := &provision.TerminalPrompter{Region: awsCfg.Region}

	return provision.NewOrchestrator(
		cfg,
		provision.NewCredentialProbe(awsCfg, log),
		provision.NewSecretLookup(awsCfg, prompter, log),
		provision.NewNetworkDiscovery(awsCfg, log),
		provision.NewStackDeployer(awsCfg, cfg.StackTimeout, log),
		provision.NewPipelineTrigger(awsCfg, log),
		log,
	)
}
