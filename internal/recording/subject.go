package recording

import (
	"fmt"
	"path/filepath"
	"strings"

	"mobiqc/internal/services"
)

const subjectToken = "sub-"

// ParseSubjectID returns the identifier from the last "sub-<ID>" token in
// path. The ID ends at the next underscore, path separator, or dot.
func ParseSubjectID(path string) (string, error) {
	clean := filepath.ToSlash(path)
	idx := strings.LastIndex(clean, subjectToken)
	if idx < 0 {
		return "", services.Wrap(services.ErrValidation, "recording", "subject id", fmt.Sprintf("no %q token in %s", subjectToken, path), nil)
	}
	rest := clean[idx+len(subjectToken):]
	if end := strings.IndexAny(rest, "_/."); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", services.Wrap(services.ErrValidation, "recording", "subject id", "empty subject id in "+path, nil)
	}
	return rest, nil
}
