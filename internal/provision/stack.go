package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/bootstack/bootstack/internal/constants"
	apperrors "github.com/bootstack/bootstack/internal/errors"
)

const (
	stackPollInterval = 5 * time.Second

	// DefaultStackTimeout bounds the wait for a terminal stack status.
	// The provider operation keeps running when the bound expires;
	// only local waiting stops.
	DefaultStackTimeout = 30 * time.Minute
)

// CloudFormationClient defines the CloudFormation operations used by
// the stack deployer. This interface enables mocking for unit tests.
type CloudFormationClient interface {
	DescribeStacks(
		ctx context.Context,
		params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeStacksOutput, error)
	DescribeStackEvents(
		ctx context.Context,
		params *cloudformation.DescribeStackEventsInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeStackEventsOutput, error)
	GetTemplateSummary(
		ctx context.Context,
		params *cloudformation.GetTemplateSummaryInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.GetTemplateSummaryOutput, error)
	CreateStack(
		ctx context.Context,
		params *cloudformation.CreateStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.CreateStackOutput, error)
	UpdateStack(
		ctx context.Context,
		params *cloudformation.UpdateStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(
		ctx context.Context,
		params *cloudformation.DeleteStackInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DeleteStackOutput, error)
}

// StackDeployer applies declarative templates through CloudFormation
// in create-or-update mode and blocks until the provider reports a
// terminal status.
//
// Two simultaneous runs targeting the same stack name race at the
// provider: CloudFormation itself serializes conflicting updates, and
// no additional locking happens here. Once an apply is submitted the
// side effect is in flight regardless of local cancellation.
type StackDeployer struct {
	client       CloudFormationClient
	region       string
	timeout      time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewStackDeployer creates a deployer backed by the real CloudFormation client.
// A non-positive timeout selects DefaultStackTimeout.
func NewStackDeployer(cfg aws.Config, timeout time.Duration, log *slog.Logger) *StackDeployer {
	return newStackDeployer(cloudformation.NewFromConfig(cfg), cfg.Region, timeout, log)
}

// NewStackDeployerWithClient creates a deployer with a custom client (for testing).
func NewStackDeployerWithClient(
	client CloudFormationClient,
	region string,
	timeout time.Duration,
	log *slog.Logger,
) *StackDeployer {
	return newStackDeployer(client, region, timeout, log)
}

func newStackDeployer(client CloudFormationClient, region string, timeout time.Duration, log *slog.Logger) *StackDeployer {
	if timeout <= 0 {
		timeout = DefaultStackTimeout
	}
	return &StackDeployer{
		client:       client,
		region:       region,
		timeout:      timeout,
		pollInterval: stackPollInterval,
		logger:       log,
	}
}

// Region returns the AWS region being used.
func (d *StackDeployer) Region() string {
	return d.region
}

// Apply submits the request in create-or-update mode and waits for a
// terminal status. An update with nothing to change is reported as a
// no-op success, never an error. Outputs are populated for both
// succeeded and no-op results.
func (d *StackDeployer) Apply(ctx context.Context, req *StackRequest) (*StackResult, error) {
	if err := d.validateRequest(ctx, req); err != nil {
		return nil, err
	}

	exists, err := d.CheckExists(ctx, req.Name)
	if err != nil {
		return nil, apperrors.ErrStackApplyFailed("failed to check stack status", err)
	}

	result := &StackResult{Name: req.Name}

	var operation string
	if exists {
		operation = "update"
		err = d.updateStack(ctx, req)
	} else {
		operation = "create"
		err = d.createStack(ctx, req)
	}

	if err != nil {
		if strings.Contains(err.Error(), "No updates are to be performed") {
			result.Status = StackNoOp
			return d.withOutputs(ctx, result)
		}
		return nil, apperrors.ErrStackApplyFailed(fmt.Sprintf("failed to %s stack %s", operation, req.Name), err)
	}

	if err := d.waitForTerminal(ctx, req.Name); err != nil {
		return nil, err
	}

	result.Status = StackSucceeded
	return d.withOutputs(ctx, result)
}

// validateRequest checks the request against the template's declared
// surface before anything is submitted: undeclared parameters and
// unacknowledged privileged capabilities are precondition failures,
// not provider errors.
func (d *StackDeployer) validateRequest(ctx context.Context, req *StackRequest) error {
	input := &cloudformation.GetTemplateSummaryInput{}
	if req.Template.URL != "" {
		input.TemplateURL = aws.String(req.Template.URL)
	} else {
		input.TemplateBody = aws.String(req.Template.Body)
	}

	summary, err := d.client.GetTemplateSummary(ctx, input)
	if err != nil {
		return apperrors.ErrStackApplyFailed("failed to inspect template", err)
	}

	declared := make(map[string]struct{}, len(summary.Parameters))
	for _, p := range summary.Parameters {
		if p.ParameterKey != nil {
			declared[*p.ParameterKey] = struct{}{}
		}
	}
	for key := range req.Parameters {
		if _, ok := declared[key]; !ok {
			return apperrors.ErrStackApplyFailed(
				fmt.Sprintf("parameter %q is not declared by the template", key), nil)
		}
	}

	if len(summary.Capabilities) > 0 && !req.AcknowledgeIAM {
		return apperrors.ErrStackApplyFailed(
			fmt.Sprintf("template requires capabilities %v which were not acknowledged", summary.Capabilities), nil)
	}

	return nil
}

// CheckExists checks if a CloudFormation stack exists.
func (d *StackDeployer) CheckExists(ctx context.Context, stackName string) (bool, error) {
	_, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isStackMissing reports whether the error is CloudFormation's
// DescribeStacks rejection for a stack that does not exist. The API
// signals this as a ValidationError rather than a dedicated type.
func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		return strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

func (d *StackDeployer) createStack(ctx context.Context, req *StackRequest) error {
	input := &cloudformation.CreateStackInput{
		StackName:  aws.String(req.Name),
		Parameters: toCFNParameters(req.Parameters),
		Tags: []cfntypes.Tag{
			{Key: aws.String("ManagedBy"), Value: aws.String(constants.ManagedByTag)},
		},
	}
	if req.AcknowledgeIAM {
		input.Capabilities = []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam}
	}
	if req.Template.URL != "" {
		input.TemplateURL = aws.String(req.Template.URL)
	} else {
		input.TemplateBody = aws.String(req.Template.Body)
	}

	d.logger.Debug("calling external service", "operation", "CloudFormation.CreateStack", "stack", req.Name)
	_, err := d.client.CreateStack(ctx, input)
	return err
}

func (d *StackDeployer) updateStack(ctx context.Context, req *StackRequest) error {
	input := &cloudformation.UpdateStackInput{
		StackName:  aws.String(req.Name),
		Parameters: toCFNParameters(req.Parameters),
	}
	if req.AcknowledgeIAM {
		input.Capabilities = []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam}
	}
	if req.Template.URL != "" {
		input.TemplateURL = aws.String(req.Template.URL)
	} else {
		input.TemplateBody = aws.String(req.Template.Body)
	}

	d.logger.Debug("calling external service", "operation", "CloudFormation.UpdateStack", "stack", req.Name)
	_, err := d.client.UpdateStack(ctx, input)
	return err
}

// waitForTerminal polls until the stack reaches a terminal status.
// Cancelling the context stops the wait only; the submitted operation
// keeps running provider-side.
func (d *StackDeployer) waitForTerminal(ctx context.Context, stackName string) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	deadline := time.After(d.timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return apperrors.ErrTimeout(apperrors.StageStack,
				fmt.Sprintf("stack %s did not reach a terminal status within %s", stackName, d.timeout), nil)
		case <-ticker.C:
			status, reason, err := d.stackStatus(ctx, stackName)
			if err != nil {
				return apperrors.ErrStackApplyFailed("failed to poll stack status", err)
			}

			d.logger.Debug("stack status", "stack", stackName, "status", status)

			switch cfntypes.StackStatus(status) {
			case cfntypes.StackStatusCreateComplete, cfntypes.StackStatusUpdateComplete:
				return nil
			case cfntypes.StackStatusCreateFailed, cfntypes.StackStatusRollbackComplete,
				cfntypes.StackStatusRollbackFailed, cfntypes.StackStatusUpdateRollbackComplete,
				cfntypes.StackStatusUpdateRollbackFailed, cfntypes.StackStatusDeleteComplete,
				cfntypes.StackStatusDeleteFailed, cfntypes.StackStatusUpdateFailed:
				msg := fmt.Sprintf("stack %s reached %s: %s", stackName, status, reason)
				if details := d.failedResourceEvents(ctx, stackName); details != "" {
					msg += "\n\nResource failures:\n" + details
				}
				return apperrors.ErrStackApplyFailed(msg, nil)
			default:
				// Still in progress.
			}
		}
	}
}

// stackStatus returns the current status of a stack.
func (d *StackDeployer) stackStatus(ctx context.Context, stackName string) (status, reason string, err error) {
	result, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return
	}

	if len(result.Stacks) == 0 {
		err = errors.New("stack not found")
		return
	}

	status = string(result.Stacks[0].StackStatus)
	if result.Stacks[0].StackStatusReason != nil {
		reason = *result.Stacks[0].StackStatusReason
	}

	return
}

// failedResourceEvents retrieves detailed failure information from stack events.
func (d *StackDeployer) failedResourceEvents(ctx context.Context, stackName string) string {
	result, err := d.client.DescribeStackEvents(ctx, &cloudformation.DescribeStackEventsInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return ""
	}

	var failures []string
	for i := range result.StackEvents {
		event := &result.StackEvents[i]
		status := string(event.ResourceStatus)
		if !strings.Contains(status, "FAILED") || event.ResourceStatusReason == nil || *event.ResourceStatusReason == "" {
			continue
		}
		resourceID := ""
		if event.LogicalResourceId != nil {
			resourceID = *event.LogicalResourceId
		}
		resourceType := ""
		if event.ResourceType != nil {
			resourceType = *event.ResourceType
		}
		failures = append(failures, fmt.Sprintf("  - %s (%s): %s",
			resourceID, resourceType, *event.ResourceStatusReason))
	}

	return strings.Join(failures, "\n")
}

// Outputs retrieves the output mapping of an existing stack.
func (d *StackDeployer) Outputs(ctx context.Context, stackName string) (map[string]string, error) {
	result, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, err
	}

	if len(result.Stacks) == 0 {
		return nil, errors.New("stack not found")
	}

	outputs := make(map[string]string)
	for _, out := range result.Stacks[0].Outputs {
		if out.OutputKey != nil && out.OutputValue != nil {
			outputs[*out.OutputKey] = *out.OutputValue
		}
	}

	return outputs, nil
}

// Delete removes the stack and waits for deletion to finish. A stack
// that does not exist is not an error.
func (d *StackDeployer) Delete(ctx context.Context, stackName string) error {
	exists, err := d.CheckExists(ctx, stackName)
	if err != nil {
		return fmt.Errorf("failed to check stack status: %w", err)
	}
	if !exists {
		return nil
	}

	d.logger.Debug("calling external service", "operation", "CloudFormation.DeleteStack", "stack", stackName)
	if _, err := d.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	}); err != nil {
		return fmt.Errorf("failed to delete stack: %w", err)
	}

	return d.waitForDeletion(ctx, stackName)
}

func (d *StackDeployer) waitForDeletion(ctx context.Context, stackName string) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	deadline := time.After(d.timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return apperrors.ErrTimeout(apperrors.StageStack,
				fmt.Sprintf("stack %s deletion did not finish within %s", stackName, d.timeout), nil)
		case <-ticker.C:
			status, reason, err := d.stackStatus(ctx, stackName)
			if err != nil {
				if isStackMissing(err) {
					return nil
				}
				return err
			}

			switch cfntypes.StackStatus(status) {
			case cfntypes.StackStatusDeleteComplete:
				return nil
			case cfntypes.StackStatusDeleteFailed:
				return fmt.Errorf("stack deletion failed: %s", reason)
			default:
				// Still deleting.
			}
		}
	}
}

func (d *StackDeployer) withOutputs(ctx context.Context, result *StackResult) (*StackResult, error) {
	outputs, err := d.Outputs(ctx, result.Name)
	if err != nil {
		return nil, apperrors.ErrStackApplyFailed(
			fmt.Sprintf("stack %s finished but outputs could not be retrieved", result.Name), err)
	}
	result.Outputs = outputs
	return result, nil
}

func toCFNParameters(params map[string]string) []cfntypes.Parameter {
	cfnParams := make([]cfntypes.Parameter, 0, len(params))
	for key, value := range params {
		cfnParams = append(cfnParams, cfntypes.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(value),
		})
	}
	return cfnParams
}
