// Package project handles the per-repository configuration file.
// A .bootstack.yaml in the working directory pins deployment settings
// to the repository being provisioned, overriding the global config.
package project

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bootstack/bootstack/internal/config"
	"github.com/bootstack/bootstack/internal/constants"
)

// FileName is the name of the per-repository configuration file.
const FileName = "." + constants.ProjectName + ".yaml"

// Config represents the .bootstack.yaml project configuration file.
// Only the fields that vary per repository are exposed here; account
// level settings stay in the global config.
type Config struct {
	RepoOwner   string `yaml:"repo_owner,omitempty"`
	RepoName    string `yaml:"repo_name,omitempty"`
	RepoBranch  string `yaml:"repo_branch,omitempty"`
	Environment string `yaml:"environment,omitempty"`
	StackName   string `yaml:"stack_name,omitempty"`
	Template    string `yaml:"template,omitempty"`
}

// Load reads the project file from the specified directory.
func Load(dir string) (*Config, error) {
	path := dir + "/" + FileName

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found in %s", FileName, dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	return &cfg, nil
}

// LoadFromCurrentDir loads the project file from the current working directory.
func LoadFromCurrentDir() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return Load(cwd)
}

// Exists checks if the project file exists in the specified directory.
func Exists(dir string) bool {
	_, err := os.Stat(dir + "/" + FileName)
	return err == nil
}

// ExistsInCurrentDir checks if the project file exists in the current
// working directory.
func ExistsInCurrentDir() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	return Exists(cwd)
}

// Save writes the configuration to the project file in dir.
func Save(cfg *Config, dir string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(dir+"/"+FileName, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}

	return nil
}

// ApplyTo overlays the project file's non-empty fields onto the global
// configuration. Project values take precedence.
func (c *Config) ApplyTo(cfg *config.Config) {
	if c.RepoOwner != "" {
		cfg.RepoOwner = c.RepoOwner
	}
	if c.RepoName != "" {
		cfg.RepoName = c.RepoName
	}
	if c.RepoBranch != "" {
		cfg.RepoBranch = c.RepoBranch
	}
	if c.Environment != "" {
		cfg.Environment = c.Environment
	}
	if c.StackName != "" {
		cfg.StackName = c.StackName
	}
	if c.Template != "" {
		cfg.Template = c.Template
	}
}
