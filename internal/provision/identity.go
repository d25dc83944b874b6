package provision

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	apperrors "github.com/bootstack/bootstack/internal/errors"
)

// STSClient defines the STS operations used by the credential probe.
// This interface enables mocking for unit tests.
type STSClient interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// CredentialProbe confirms an authenticated identity is available from
// the ambient environment. Authentication failure is always fatal to
// the run; there is no retry.
type CredentialProbe struct {
	client STSClient
	logger *slog.Logger
}

// NewCredentialProbe creates a probe backed by the real STS client.
func NewCredentialProbe(cfg aws.Config, log *slog.Logger) *CredentialProbe {
	return &CredentialProbe{
		client: sts.NewFromConfig(cfg),
		logger: log,
	}
}

// NewCredentialProbeWithClient creates a probe with a custom client (for testing).
func NewCredentialProbeWithClient(client STSClient, log *slog.Logger) *CredentialProbe {
	return &CredentialProbe{client: client, logger: log}
}

// Verify calls the provider's identity endpoint and returns the
// resolved account identity.
func (p *CredentialProbe) Verify(ctx context.Context) (*Identity, error) {
	p.logger.Debug("calling external service", "operation", "STS.GetCallerIdentity")

	out, err := p.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, apperrors.ErrAuthFailed("no usable AWS credentials in the environment", err)
	}

	if out.Account == nil || *out.Account == "" {
		return nil, apperrors.ErrAuthFailed("identity endpoint returned an empty account ID", nil)
	}

	identity := &Identity{AccountID: *out.Account}
	if out.Arn != nil {
		identity.ARN = *out.Arn
	}

	p.logger.Debug("identity verified", "account", identity.AccountID)
	return identity, nil
}
