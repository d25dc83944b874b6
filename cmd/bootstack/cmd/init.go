package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bootstack/bootstack/internal/output"
	"github.com/bootstack/bootstack/internal/project"
)

var (
	initRepoOwner   string
	initRepoName    string
	initRepoBranch  string
	initEnvironment string
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a project configuration file in the current directory",
	Long: `Creates a ` + project.FileName + ` in the current directory pinning the
repository and environment this project deploys. The up command picks
it up automatically.`,
	RunE: initRun,
}

func init() {
	initCmd.Flags().StringVar(&initRepoOwner, "repo-owner", "", "GitHub owner of the application repository")
	initCmd.Flags().StringVar(&initRepoName, "repo-name", "", "name of the application repository")
	initCmd.Flags().StringVar(&initRepoBranch, "branch", "", "branch the pipeline watches")
	initCmd.Flags().StringVar(&initEnvironment, "environment", "", "target environment name")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing project file")
	rootCmd.AddCommand(initCmd)
}

func initRun(_ *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	if project.Exists(cwd) && !initForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", project.FileName)
	}

	cfg := &project.Config{
		RepoOwner:   initRepoOwner,
		RepoName:    initRepoName,
		RepoBranch:  initRepoBranch,
		Environment: initEnvironment,
	}
	if err := project.Save(cfg, cwd); err != nil {
		return err
	}

	output.Success("Wrote %s", project.FileName)
	return nil
}
