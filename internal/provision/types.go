// Package provision implements the one-shot deployment workflow:
// credential verification, secret lookup, network discovery, stack
// application and the initial pipeline trigger.
package provision

// Identity is the authenticated principal resolved from the ambient
// environment. It exists only as a probe result and is never persisted.
type Identity struct {
	AccountID string
	ARN       string
}

// Secret is a named value retrieved from the secret store. The value
// is sensitive and must never be logged or serialized.
type Secret struct {
	Name  string
	Value string
}

// String redacts the secret value so accidental printing is harmless.
func (s Secret) String() string {
	return s.Name + "=[redacted]"
}

// Network is the resolved placement topology: a VPC and the subnets
// selected for the load balancer and tasks. Subnet IDs keep provider
// order and contain no duplicates.
type Network struct {
	VpcID     string
	SubnetIDs []string

	// Fallback markers, used to warn the operator when selection degraded.
	UsedFallbackVPC bool
	UsedAllSubnets  bool
	IsDefaultVPC    bool
}

// TemplateSource represents the resolved template source.
type TemplateSource struct {
	URL  string // For remote templates (S3/HTTPS)
	Body string // For local file templates
}

// StackRequest describes one create-or-update application of a template.
type StackRequest struct {
	Name     string
	Template *TemplateSource
	// Parameters must all be declared by the template; an undeclared
	// key is a precondition failure, not a provider error.
	Parameters map[string]string
	// AcknowledgeIAM must be set when the template declares privileged
	// roles (CAPABILITY_NAMED_IAM).
	AcknowledgeIAM bool
}

// StackStatus is the terminal state of a stack application.
type StackStatus string

const (
	// StackSucceeded means the provider reached CREATE_COMPLETE or UPDATE_COMPLETE.
	StackSucceeded StackStatus = "succeeded"
	// StackFailed means the provider reported a terminal failure state.
	StackFailed StackStatus = "failed"
	// StackNoOp means the live state already matched the request.
	// Re-running an identical apply is success, not an error.
	StackNoOp StackStatus = "no-op"
)

// StackResult is the terminal outcome of a stack application, only
// produced once the provider reports a terminal status.
type StackResult struct {
	Name    string
	Status  StackStatus
	Outputs map[string]string
}

// PipelineRun is the opaque identifier of a started pipeline
// execution. Fire-and-forget; completion is never awaited.
type PipelineRun struct {
	Pipeline string
	ID       string
}
