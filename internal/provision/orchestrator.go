package provision

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bootstack/bootstack/internal/config"
	"github.com/bootstack/bootstack/internal/constants"
	apperrors "github.com/bootstack/bootstack/internal/errors"
	"github.com/bootstack/bootstack/internal/output"
)

// State is the orchestrator's position in the workflow. Transitions
// are strictly forward; there is no backward transition and no
// parallel execution between states.
type State string

const (
	StateInit             State = "init"
	StateAuthenticated    State = "authenticated"
	StateSecretReady      State = "secret-ready"
	StateTopologyResolved State = "topology-resolved"
	StateStackApplied     State = "stack-applied"
	StateOutputsResolved  State = "outputs-resolved"
	StatePipelineStarted  State = "pipeline-started"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Per-component collaborator contracts, narrowed to exactly what the
// orchestrator consumes so each can be a canned test double.
type (
	identityVerifier interface {
		Verify(ctx context.Context) (*Identity, error)
	}
	secretFetcher interface {
		Fetch(ctx context.Context, name string) (Secret, error)
	}
	networkResolver interface {
		Resolve(ctx context.Context, minSubnets int) (*Network, error)
	}
	stackApplier interface {
		Apply(ctx context.Context, req *StackRequest) (*StackResult, error)
	}
	pipelineStarter interface {
		Start(ctx context.Context, pipelineName string) (*PipelineRun, error)
	}
)

// Orchestrator sequences the provisioning stages and stops at the
// first unrecoverable failure. Each stage's result is a precondition
// for the next; no stage is retried once failed.
type Orchestrator struct {
	cfg       *config.Config
	identity  identityVerifier
	secrets   secretFetcher
	network   networkResolver
	stacks    stackApplier
	pipelines pipelineStarter
	logger    *slog.Logger

	state State
}

// NewOrchestrator wires the stage components under one immutable
// configuration value.
func NewOrchestrator(
	cfg *config.Config,
	identity identityVerifier,
	secrets secretFetcher,
	network networkResolver,
	stacks stackApplier,
	pipelines pipelineStarter,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		identity:  identity,
		secrets:   secrets,
		network:   network,
		stacks:    stacks,
		pipelines: pipelines,
		logger:    log,
		state:     StateInit,
	}
}

// State returns the orchestrator's current workflow state.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the full workflow: credential check, secret lookup,
// network discovery, stack apply, output resolution and the initial
// pipeline trigger, then prints the connection summary.
func (o *Orchestrator) Run(ctx context.Context) error {
	output.Header("Provisioning " + o.cfg.StackName + " (" + o.cfg.Environment + ")")

	identity, err := o.identity.Verify(ctx)
	if err != nil {
		return o.fail(err)
	}
	o.advance(StateAuthenticated)
	output.Success("Authenticated as account %s", output.Bold(identity.AccountID))

	if _, err := o.secrets.Fetch(ctx, o.cfg.SecretName); err != nil {
		return o.fail(err)
	}
	o.advance(StateSecretReady)
	output.Success("Deploy token %s is available", o.cfg.SecretName)

	network, err := o.network.Resolve(ctx, o.cfg.MinSubnets)
	if err != nil {
		return o.fail(err)
	}
	o.advance(StateTopologyResolved)
	o.reportTopology(network)

	result, err := o.applyStack(ctx, network)
	if err != nil {
		return o.fail(err)
	}
	o.advance(StateStackApplied)
	if result.Status == StackNoOp {
		output.Success("Stack %s is already up to date", result.Name)
	} else {
		output.Success("Stack %s applied", result.Name)
	}

	outputs, err := ExtractOutputs(result, []string{
		constants.OutputLoadBalancerURL,
		constants.OutputPipelineName,
		constants.OutputRegistryURI,
	})
	if err != nil {
		return o.fail(err)
	}
	o.advance(StateOutputsResolved)

	run, err := o.pipelines.Start(ctx, outputs[constants.OutputPipelineName])
	if err != nil {
		return o.fail(err)
	}
	o.advance(StatePipelineStarted)
	output.Success("Pipeline %s started (execution %s)", run.Pipeline, run.ID)

	o.advance(StateDone)
	o.printSummary(network, outputs)

	return nil
}

func (o *Orchestrator) applyStack(ctx context.Context, network *Network) (*StackResult, error) {
	template, err := ResolveTemplate(o.cfg.Template, *constants.GetVersion())
	if err != nil {
		return nil, apperrors.ErrStackApplyFailed("failed to resolve template", err)
	}

	req := &StackRequest{
		Name:     o.cfg.StackName,
		Template: template,
		Parameters: map[string]string{
			"ProjectName":           constants.ProjectName,
			"EnvironmentName":       o.cfg.Environment,
			"RepoOwner":             o.cfg.RepoOwner,
			"RepoName":              o.cfg.RepoName,
			"RepoBranch":            o.cfg.RepoBranch,
			"DeployTokenSecretName": o.cfg.SecretName,
			"VpcId":                 network.VpcID,
			"Subnets":               strings.Join(network.SubnetIDs, ","),
			"DesiredCount":          strconv.Itoa(o.cfg.DesiredCount),
			"TaskCpu":               o.cfg.TaskCPU,
			"TaskMemory":            o.cfg.TaskMemory,
		},
		// The reference template declares named IAM roles for the
		// pipeline and task execution.
		AcknowledgeIAM: true,
	}

	output.Info("Applying stack %s, waiting for terminal status...", req.Name)
	return o.stacks.Apply(ctx, req)
}

func (o *Orchestrator) reportTopology(network *Network) {
	if network.UsedFallbackVPC {
		output.Warning("No default VPC in account, using %s", network.VpcID)
	}
	if network.UsedAllSubnets {
		output.Warning("No public subnets in %s, using all subnets in the VPC", network.VpcID)
	}
	output.Success("Resolved VPC %s with %d subnets", network.VpcID, len(network.SubnetIDs))
}

func (o *Orchestrator) advance(next State) {
	o.logger.Debug("state transition", "from", o.state, "to", next)
	o.state = next
}

// fail moves to the terminal Failed state and emits a diagnostic
// naming the failing stage and the underlying error.
func (o *Orchestrator) fail(err error) error {
	o.logger.Error("provisioning failed",
		"state", o.state,
		"stage", apperrors.GetStage(err),
		"code", apperrors.GetErrorCode(err),
		"error", apperrors.GetErrorDetails(err),
	)
	o.state = StateFailed
	output.Error("%v", err)
	return err
}

func (o *Orchestrator) printSummary(network *Network, outputs map[string]string) {
	output.Header("Deployment complete")
	output.KeyValue("VPC", network.VpcID)
	output.KeyValue("Subnets", strings.Join(network.SubnetIDs, ", "))
	output.KeyValue("Service URL", outputs[constants.OutputLoadBalancerURL])
	output.KeyValue("Pipeline", outputs[constants.OutputPipelineName])
	output.KeyValue("Registry", outputs[constants.OutputRegistryURI])
	output.Blank()
	output.Println("Frontend configuration:")
	output.Println("  " + output.Bold(constants.FrontendEndpointVar+"="+outputs[constants.OutputLoadBalancerURL]))
}
