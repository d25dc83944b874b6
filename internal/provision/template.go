package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bootstack/bootstack/internal/constants"
)

const (
	releaseBucket    = constants.ProjectName + "-releases"
	templateFileName = "app-stack.yaml"

	splitParts = 2
)

// ResolveTemplate determines the template source from the given input.
// An empty template selects the official release template for the
// given version; otherwise the input may be an HTTPS URL, an s3:// URI
// or a local file path.
func ResolveTemplate(template, version string) (*TemplateSource, error) {
	if template == "" {
		url := fmt.Sprintf("https://%s.s3.amazonaws.com/%s/%s",
			releaseBucket, strings.TrimPrefix(version, "v"), templateFileName)
		return &TemplateSource{URL: url}, nil
	}

	if strings.HasPrefix(template, "http://") || strings.HasPrefix(template, "https://") {
		return &TemplateSource{URL: template}, nil
	}

	if s3Path, ok := strings.CutPrefix(template, "s3://"); ok {
		// Convert s3://bucket/key to https://bucket.s3.amazonaws.com/key
		parts := strings.SplitN(s3Path, "/", splitParts)
		if len(parts) < splitParts {
			return nil, fmt.Errorf("invalid S3 URI: %s", template)
		}
		url := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", parts[0], parts[1])
		return &TemplateSource{URL: url}, nil
	}

	content, err := os.ReadFile(filepath.Clean(template))
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	return &TemplateSource{Body: string(content)}, nil
}
