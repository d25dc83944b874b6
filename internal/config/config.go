// Package config manages configuration for the bootstack CLI.
// It uses Viper for unified configuration management from files and
// environment variables, layered over compiled-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bootstack/bootstack/internal/constants"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the immutable run configuration threaded into the
// orchestrator. It is built once at startup and never mutated, so
// multiple target environments can be exercised in the same process.
type Config struct {
	// Target account/region
	Region      string `mapstructure:"region" yaml:"region" validate:"required"`
	Environment string `mapstructure:"environment" yaml:"environment" validate:"required"`

	// Stack identity and template source. Template may be a local file
	// path, an HTTPS URL or an s3:// URI; empty uses the bundled default.
	StackName string `mapstructure:"stack_name" yaml:"stack_name" validate:"required"`
	Template  string `mapstructure:"template" yaml:"template"`

	// Source repository the build pipeline watches.
	RepoOwner  string `mapstructure:"repo_owner" yaml:"repo_owner" validate:"required"`
	RepoName   string `mapstructure:"repo_name" yaml:"repo_name" validate:"required"`
	RepoBranch string `mapstructure:"repo_branch" yaml:"repo_branch" validate:"required"`

	// Service sizing passed to the template as parameters.
	DesiredCount int    `mapstructure:"desired_count" yaml:"desired_count" validate:"min=1"`
	TaskCPU      string `mapstructure:"task_cpu" yaml:"task_cpu" validate:"required"`
	TaskMemory   string `mapstructure:"task_memory" yaml:"task_memory" validate:"required"`

	// Name of the deploy token secret in the secret store.
	SecretName string `mapstructure:"secret_name" yaml:"secret_name" validate:"required"`

	// Topology precondition.
	MinSubnets int `mapstructure:"min_subnets" yaml:"min_subnets" validate:"min=1"`

	// Upper bound on waiting for a terminal stack status. The provider
	// operation itself is not cancelled when the bound expires.
	StackTimeout time.Duration `mapstructure:"stack_timeout" yaml:"stack_timeout" validate:"min=1m"`
}

var validate = validator.New()

// Load builds the configuration from defaults, an optional
// ~/.bootstack/config.yaml, and BOOTSTACK_* environment variables.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := loadConfigFile(v); err != nil {
		// Config file not found is acceptable; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(constants.ProjectName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// GetConfigPath returns the path of the user configuration file.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return constants.ConfigFilePath(home), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region", constants.DefaultRegion)
	v.SetDefault("environment", constants.DefaultEnvironment)
	v.SetDefault("stack_name", constants.DefaultStackName)
	v.SetDefault("template", "")
	v.SetDefault("repo_owner", constants.DefaultRepoOwner)
	v.SetDefault("repo_name", constants.DefaultRepoName)
	v.SetDefault("repo_branch", constants.DefaultRepoBranch)
	v.SetDefault("desired_count", constants.DefaultDesiredCount)
	v.SetDefault("task_cpu", constants.DefaultTaskCPU)
	v.SetDefault("task_memory", constants.DefaultTaskMemory)
	v.SetDefault("secret_name", constants.DeployTokenSecretName)
	v.SetDefault("min_subnets", constants.MinSubnets)
	v.SetDefault("stack_timeout", 30*time.Minute)
}

func loadConfigFile(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to determine home directory: %w", err)
	}

	v.SetConfigName(strings.TrimSuffix(constants.ConfigFileName, ".yaml"))
	v.SetConfigType("yaml")
	v.AddConfigPath(constants.ConfigDirPath(home))

	return v.ReadInConfig()
}

// bindEnvVars binds each key explicitly so env-only overrides survive
// Unmarshal even when the key is absent from the config file.
func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"region", "environment", "stack_name", "template",
		"repo_owner", "repo_name", "repo_branch",
		"desired_count", "task_cpu", "task_memory",
		"secret_name", "min_subnets", "stack_timeout",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}
