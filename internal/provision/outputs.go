package provision

import (
	"fmt"

	apperrors "github.com/bootstack/bootstack/internal/errors"
)

// ExtractOutputs returns the requested output values from a completed
// stack result. Pure function over already-fetched data; no remote
// call. The first requested name absent from the result is reported in
// the error.
func ExtractOutputs(result *StackResult, names []string) (map[string]string, error) {
	extracted := make(map[string]string, len(names))
	for _, name := range names {
		value, ok := result.Outputs[name]
		if !ok {
			return nil, apperrors.ErrOutputMissing(
				fmt.Sprintf("stack %s has no output %q", result.Name, name), nil)
		}
		extracted[name] = value
	}
	return extracted, nil
}
