// Package cmd implements the bootstack CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bootstack/bootstack/internal/constants"
	"github.com/bootstack/bootstack/internal/logger"
	"github.com/bootstack/bootstack/internal/output"

	"github.com/spf13/cobra"
)

var (
	debug         bool
	verbose       bool
	timeout       string
	timeoutCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   constants.ProjectName,
	Short: "One-shot application stack provisioner",
	Long: fmt.Sprintf(`%s %s
Provisions a templated application stack (pipeline, registry, cluster,
load balancer, IAM) into an AWS account and triggers the first deploy.`,
		constants.ProjectName, *constants.GetVersion()),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}
		logger.Initialize(logLevel)

		if verbose {
			output.Info("CLI build: %s", output.Bold(*constants.GetVersion()))
		}

		if timeout == "0" {
			return nil
		}

		timeoutDuration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("error parsing timeout: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeoutDuration)
		timeoutCancel = cancel // Cleaned up in Execute()
		cmd.SetContext(ctx)

		return nil
	},
}

// Execute runs the root command and handles cleanup of the timeout context.
func Execute() {
	err := rootCmd.Execute()
	if timeoutCancel != nil {
		timeoutCancel()
	}

	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "45m",
		"Timeout for command execution (e.g. 45m, 30s, 1h); 0 disables")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}
