package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	apperrors "github.com/bootstack/bootstack/internal/errors"
	"github.com/bootstack/bootstack/internal/output"
)

// SSMClient defines the Parameter Store operations used by SecretLookup.
// This interface enables mocking for unit tests.
type SSMClient interface {
	GetParameter(
		ctx context.Context,
		params *ssm.GetParameterInput,
		optFns ...func(*ssm.Options),
	) (*ssm.GetParameterOutput, error)
}

// Prompter gates the single interactive remediation cycle on an
// external confirmation signal. Implementations block until the
// operator responds; the retry policy itself lives in SecretLookup so
// the workflow stays testable without a terminal.
type Prompter interface {
	// ConfirmSecretCreated asks the operator to create the named secret
	// out-of-band and reports whether they claim to have done so.
	ConfirmSecretCreated(name string) bool
}

// TerminalPrompter implements Prompter with a blocking terminal prompt.
type TerminalPrompter struct {
	Region string
}

// ConfirmSecretCreated prints creation instructions and waits for a
// yes/no answer.
func (p *TerminalPrompter) ConfirmSecretCreated(name string) bool {
	output.Warning("Secret %s was not found in Parameter Store", output.Bold(name))
	output.Println("  Create it in another terminal, then confirm:")
	output.Println()
	output.Println("    aws ssm put-parameter --type SecureString \\")
	output.Println(fmt.Sprintf("      --region %s --name %q --value <token>", p.Region, name))
	output.Println()
	return output.Confirm("Secret created, retry lookup?")
}

// SecretLookup retrieves decrypted secrets from SSM Parameter Store.
// A missing secret is offered exactly one remediation cycle; this is
// the only retry anywhere in the workflow.
type SecretLookup struct {
	client   SSMClient
	prompter Prompter
	logger   *slog.Logger
}

// NewSecretLookup creates a lookup backed by the real SSM client.
func NewSecretLookup(cfg aws.Config, prompter Prompter, log *slog.Logger) *SecretLookup {
	return &SecretLookup{
		client:   ssm.NewFromConfig(cfg),
		prompter: prompter,
		logger:   log,
	}
}

// NewSecretLookupWithClient creates a lookup with a custom client (for testing).
func NewSecretLookupWithClient(client SSMClient, prompter Prompter, log *slog.Logger) *SecretLookup {
	return &SecretLookup{client: client, prompter: prompter, logger: log}
}

// Fetch attempts decrypted retrieval of the named secret. If absent,
// the operator is prompted to create it out-of-band and the retrieval
// is attempted exactly once more.
func (l *SecretLookup) Fetch(ctx context.Context, name string) (Secret, error) {
	value, err := l.getValue(ctx, name)
	if err == nil {
		return Secret{Name: name, Value: value}, nil
	}

	var notFound *ssmtypes.ParameterNotFound
	if !errors.As(err, &notFound) {
		return Secret{}, apperrors.ErrSecretMissing(fmt.Sprintf("failed to retrieve secret %q", name), err)
	}

	l.logger.Warn("secret not found, offering remediation", "name", name)
	if !l.prompter.ConfirmSecretCreated(name) {
		return Secret{}, apperrors.ErrSecretMissing(fmt.Sprintf("secret %q does not exist", name), err)
	}

	value, err = l.getValue(ctx, name)
	if err != nil {
		return Secret{}, apperrors.ErrSecretMissing(
			fmt.Sprintf("secret %q still absent after remediation", name), err)
	}

	return Secret{Name: name, Value: value}, nil
}

func (l *SecretLookup) getValue(ctx context.Context, name string) (string, error) {
	l.logger.Debug("calling external service", "operation", "SSM.GetParameter", "name", name)

	result, err := l.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("unexpected response from parameter store")
	}

	return *result.Parameter.Value, nil
}
