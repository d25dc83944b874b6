package provision

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootstack/bootstack/internal/config"
	apperrors "github.com/bootstack/bootstack/internal/errors"
	"github.com/bootstack/bootstack/internal/output"
)

type stubIdentityVerifier struct {
	verifyFunc func(ctx context.Context) (*Identity, error)
	calls      int
}

func (s *stubIdentityVerifier) Verify(ctx context.Context) (*Identity, error) {
	s.calls++
	return s.verifyFunc(ctx)
}

type stubSecretFetcher struct {
	fetchFunc func(ctx context.Context, name string) (Secret, error)
	calls     int
}

func (s *stubSecretFetcher) Fetch(ctx context.Context, name string) (Secret, error) {
	s.calls++
	return s.fetchFunc(ctx, name)
}

type stubNetworkResolver struct {
	resolveFunc func(ctx context.Context, minSubnets int) (*Network, error)
	calls       int
}

func (s *stubNetworkResolver) Resolve(ctx context.Context, minSubnets int) (*Network, error) {
	s.calls++
	return s.resolveFunc(ctx, minSubnets)
}

type stubStackApplier struct {
	applyFunc func(ctx context.Context, req *StackRequest) (*StackResult, error)
	requests  []*StackRequest
}

func (s *stubStackApplier) Apply(ctx context.Context, req *StackRequest) (*StackResult, error) {
	s.requests = append(s.requests, req)
	return s.applyFunc(ctx, req)
}

type stubPipelineStarter struct {
	startFunc func(ctx context.Context, pipelineName string) (*PipelineRun, error)
	names     []string
}

func (s *stubPipelineStarter) Start(ctx context.Context, pipelineName string) (*PipelineRun, error) {
	s.names = append(s.names, pipelineName)
	return s.startFunc(ctx, pipelineName)
}

func testConfig() *config.Config {
	return &config.Config{
		Region:       "us-east-1",
		Environment:  "production",
		StackName:    "bootstack-app",
		RepoOwner:    "acme",
		RepoName:     "backend",
		RepoBranch:   "main",
		DesiredCount: 1,
		TaskCPU:      "256",
		TaskMemory:   "512",
		SecretName:   "/bootstack/deploy-token",
		MinSubnets:   2,
	}
}

// captureOutput redirects terminal output to a buffer for the duration
// of the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := output.Stdout
	output.Stdout = &buf
	t.Cleanup(func() { output.Stdout = prev })
	return &buf
}

func happyComponents() (*stubIdentityVerifier, *stubSecretFetcher, *stubNetworkResolver, *stubStackApplier, *stubPipelineStarter) {
	identity := &stubIdentityVerifier{
		verifyFunc: func(context.Context) (*Identity, error) {
			return &Identity{AccountID: "123456789012", ARN: "arn:aws:iam::123456789012:user/deployer"}, nil
		},
	}
	secrets := &stubSecretFetcher{
		fetchFunc: func(_ context.Context, name string) (Secret, error) {
			return Secret{Name: name, Value: "token123"}, nil
		},
	}
	network := &stubNetworkResolver{
		resolveFunc: func(context.Context, int) (*Network, error) {
			return &Network{
				VpcID:        "vpc-default",
				SubnetIDs:    []string{"subnet-a", "subnet-b", "subnet-c"},
				IsDefaultVPC: true,
			}, nil
		},
	}
	stacks := &stubStackApplier{
		applyFunc: func(_ context.Context, req *StackRequest) (*StackResult, error) {
			return &StackResult{
				Name:   req.Name,
				Status: StackSucceeded,
				Outputs: map[string]string{
					"LoadBalancerURL":  "http://lb.example",
					"PipelineName":     "pipe-1",
					"ECRRepositoryURI": "123456789012.dkr.ecr.us-east-1.amazonaws.com/app",
				},
			}, nil
		},
	}
	pipelines := &stubPipelineStarter{
		startFunc: func(_ context.Context, name string) (*PipelineRun, error) {
			return &PipelineRun{Pipeline: name, ID: "exec-42"}, nil
		},
	}
	return identity, secrets, network, stacks, pipelines
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("full workflow reaches done", func(t *testing.T) {
		buf := captureOutput(t)
		identity, secrets, network, stacks, pipelines := happyComponents()

		orch := NewOrchestrator(testConfig(), identity, secrets, network, stacks, pipelines, testLogger())
		err := orch.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, StateDone, orch.State())

		require.Len(t, stacks.requests, 1)
		req := stacks.requests[0]
		assert.Equal(t, "bootstack-app", req.Name)
		assert.Equal(t, "vpc-default", req.Parameters["VpcId"])
		assert.Equal(t, "subnet-a,subnet-b,subnet-c", req.Parameters["Subnets"])
		assert.Equal(t, "/bootstack/deploy-token", req.Parameters["DeployTokenSecretName"])
		assert.True(t, req.AcknowledgeIAM)

		assert.Equal(t, []string{"pipe-1"}, pipelines.names)
		assert.Contains(t, buf.String(), "BACKEND_API_ENDPOINT=http://lb.example")
	})

	t.Run("credential failure stops the workflow", func(t *testing.T) {
		captureOutput(t)
		identity, secrets, network, stacks, pipelines := happyComponents()
		identity.verifyFunc = func(context.Context) (*Identity, error) {
			return nil, apperrors.ErrAuthFailed("no valid AWS credentials", errors.New("no providers"))
		}

		orch := NewOrchestrator(testConfig(), identity, secrets, network, stacks, pipelines, testLogger())
		err := orch.Run(context.Background())

		require.Error(t, err)
		assert.Equal(t, StateFailed, orch.State())
		assert.Equal(t, apperrors.ErrCodeAuthFailed, apperrors.GetErrorCode(err))
		assert.Zero(t, secrets.calls)
		assert.Zero(t, network.calls)
		assert.Empty(t, stacks.requests)
		assert.Empty(t, pipelines.names)
	})

	t.Run("missing secret stops before network discovery", func(t *testing.T) {
		captureOutput(t)
		identity, secrets, network, stacks, pipelines := happyComponents()
		secrets.fetchFunc = func(_ context.Context, name string) (Secret, error) {
			return Secret{}, apperrors.ErrSecretMissing("deploy token "+name+" not found", nil)
		}

		orch := NewOrchestrator(testConfig(), identity, secrets, network, stacks, pipelines, testLogger())
		err := orch.Run(context.Background())

		require.Error(t, err)
		assert.Equal(t, StateFailed, orch.State())
		assert.Zero(t, network.calls)
	})

	t.Run("missing stack output stops before the pipeline trigger", func(t *testing.T) {
		captureOutput(t)
		identity, secrets, network, stacks, pipelines := happyComponents()
		stacks.applyFunc = func(_ context.Context, req *StackRequest) (*StackResult, error) {
			return &StackResult{
				Name:    req.Name,
				Status:  StackSucceeded,
				Outputs: map[string]string{"PipelineName": "pipe-1"},
			}, nil
		}

		orch := NewOrchestrator(testConfig(), identity, secrets, network, stacks, pipelines, testLogger())
		err := orch.Run(context.Background())

		require.Error(t, err)
		assert.Equal(t, StateFailed, orch.State())
		assert.Equal(t, apperrors.ErrCodeOutputMissing, apperrors.GetErrorCode(err))
		assert.Empty(t, pipelines.names)
	})

	t.Run("no-op apply still reaches done", func(t *testing.T) {
		buf := captureOutput(t)
		identity, secrets, network, stacks, pipelines := happyComponents()
		base := stacks.applyFunc
		stacks.applyFunc = func(ctx context.Context, req *StackRequest) (*StackResult, error) {
			result, err := base(ctx, req)
			if err != nil {
				return nil, err
			}
			result.Status = StackNoOp
			return result, nil
		}

		orch := NewOrchestrator(testConfig(), identity, secrets, network, stacks, pipelines, testLogger())
		err := orch.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, StateDone, orch.State())
		assert.Contains(t, buf.String(), "already up to date")
		assert.Equal(t, []string{"pipe-1"}, pipelines.names)
	})

	t.Run("fallback topology is reported", func(t *testing.T) {
		buf := captureOutput(t)
		identity, secrets, network, stacks, pipelines := happyComponents()
		network.resolveFunc = func(context.Context, int) (*Network, error) {
			return &Network{
				VpcID:           "vpc-other",
				SubnetIDs:       []string{"subnet-a", "subnet-b"},
				UsedFallbackVPC: true,
				UsedAllSubnets:  true,
			}, nil
		}

		orch := NewOrchestrator(testConfig(), identity, secrets, network, stacks, pipelines, testLogger())
		err := orch.Run(context.Background())

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "No default VPC")
		assert.Contains(t, buf.String(), "No public subnets")
	})
}
