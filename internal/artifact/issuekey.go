package artifact

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	heralderrors "github.com/mrz1836/herald/internal/errors"
)

// ReadIssueKey reads the issue-key side artifact. The file must hold exactly
// one identifier with no embedded whitespace; surrounding whitespace and a
// trailing newline are ignored.
func ReadIssueKey(path string) (string, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from configuration
	if err != nil {
		return "", fmt.Errorf("failed to read issue key file: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%w: %s is empty", heralderrors.ErrInvalidIssueKey, path)
	}
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: %s holds more than one token", heralderrors.ErrInvalidIssueKey, path)
	}
	return key, nil
}
