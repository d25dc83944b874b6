package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"

	apperrors "github.com/bootstack/bootstack/internal/errors"
)

// CodePipelineClient defines the CodePipeline operations used by the
// pipeline trigger. This interface enables mocking for unit tests.
type CodePipelineClient interface {
	StartPipelineExecution(
		ctx context.Context,
		params *codepipeline.StartPipelineExecutionInput,
		optFns ...func(*codepipeline.Options),
	) (*codepipeline.StartPipelineExecutionOutput, error)
}

// PipelineTrigger starts an asynchronous execution of a named
// pipeline. Fire-and-forget: completion is never awaited or polled.
type PipelineTrigger struct {
	client CodePipelineClient
	logger *slog.Logger
}

// NewPipelineTrigger creates a trigger backed by the real CodePipeline client.
func NewPipelineTrigger(cfg aws.Config, log *slog.Logger) *PipelineTrigger {
	return &PipelineTrigger{
		client: codepipeline.NewFromConfig(cfg),
		logger: log,
	}
}

// NewPipelineTriggerWithClient creates a trigger with a custom client (for testing).
func NewPipelineTriggerWithClient(client CodePipelineClient, log *slog.Logger) *PipelineTrigger {
	return &PipelineTrigger{client: client, logger: log}
}

// Start begins an execution of the named pipeline and returns its run identifier.
func (t *PipelineTrigger) Start(ctx context.Context, pipelineName string) (*PipelineRun, error) {
	t.logger.Debug("calling external service",
		"operation", "CodePipeline.StartPipelineExecution", "pipeline", pipelineName)

	out, err := t.client.StartPipelineExecution(ctx, &codepipeline.StartPipelineExecutionInput{
		Name: aws.String(pipelineName),
	})
	if err != nil {
		return nil, apperrors.ErrTriggerFailed(
			fmt.Sprintf("failed to start pipeline %s", pipelineName), err)
	}

	run := &PipelineRun{Pipeline: pipelineName}
	if out.PipelineExecutionId != nil {
		run.ID = *out.PipelineExecutionId
	}

	return run, nil
}
