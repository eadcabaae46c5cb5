package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// ResolveOne expands pattern and returns the single matching path.
// Zero matches yield *NotFoundError, several yield *AmbiguousMatchError.
func ResolveOne(what, pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", Wrap(ErrValidation, what, "glob", fmt.Sprintf("bad pattern %q", pattern), err)
	}
	switch len(matches) {
	case 0:
		return "", &NotFoundError{What: what, Pattern: pattern}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousMatchError{What: what, Pattern: pattern, Matches: matches}
	}
}

// ResolveOptional is ResolveOne where zero matches is not an error; it
// returns "" and nil instead.
func ResolveOptional(what, pattern string) (string, error) {
	path, err := ResolveOne(what, pattern)
	var missing *NotFoundError
	if errors.As(err, &missing) {
		return "", nil
	}
	return path, err
}
