// Package constants defines global constants used throughout bootstack.
// It includes version information, naming defaults and stack sizing.
package constants

var version = "0.0.0-development" // Updated by CI/CD pipeline at build time

// GetVersion returns the current version of bootstack.
func GetVersion() *string {
	return &version
}

// ProjectName is the name of the CLI tool and the default resource prefix.
const ProjectName = "bootstack"

// ConfigDirName is the name of the configuration directory in the user's home directory.
const ConfigDirName = "." + ProjectName

// ConfigFileName is the name of the global configuration file.
const ConfigFileName = "config.yaml"

// ConfigDirPath returns the full path to the global configuration directory.
func ConfigDirPath(homeDir string) string {
	return homeDir + "/" + ConfigDirName
}

// ConfigFilePath returns the full path to the global configuration file.
func ConfigFilePath(homeDir string) string {
	return ConfigDirPath(homeDir) + "/" + ConfigFileName
}

// Default deployment target. Everything here can be overridden through
// configuration; these values describe the reference application stack.
const (
	DefaultRegion      = "us-east-1"
	DefaultEnvironment = "dev"
	DefaultStackName   = ProjectName + "-app"

	// Source repository wired into the build pipeline.
	DefaultRepoOwner  = "bootstack"
	DefaultRepoName   = "sample-app"
	DefaultRepoBranch = "main"

	// ECS service sizing passed through to the template.
	DefaultDesiredCount = 2
	DefaultTaskCPU      = "256"
	DefaultTaskMemory   = "512"
)

// MinSubnets is the minimum number of subnets the application load
// balancer requires. Fewer than this is a hard precondition failure.
const MinSubnets = 2

// DeployTokenSecretName is the Parameter Store name of the repository
// access token the pipeline needs. Created by an operator, read once per run.
const DeployTokenSecretName = "/" + ProjectName + "/deploy-token"

// Stack output keys the orchestrator consumes.
const (
	OutputLoadBalancerURL = "LoadBalancerURL"
	OutputPipelineName    = "PipelineName"
	OutputRegistryURI     = "ECRRepositoryURI"
)

// FrontendEndpointVar is the environment variable assignment printed in
// the final summary for the frontend consumer.
const FrontendEndpointVar = "BACKEND_API_ENDPOINT"

// ManagedByTag is the value of the ManagedBy tag applied to created stacks.
const ManagedByTag = ProjectName + "-cli"
