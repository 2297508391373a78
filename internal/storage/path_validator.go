package storage

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"helixdesk/pkg/apierror"
)

// PathValidator confines stored attachment names to a single flat directory.
type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

// ResolveName maps a stored attachment name to its absolute path. Names
// containing separators, traversal segments or control characters are refused.
func (v *PathValidator) ResolveName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return "", apierror.BadRequest("invalid attachment name", name)
	}

	if strings.ContainsAny(trimmed, `/\`) || hasControlCharacters(trimmed) {
		return "", apierror.New("PATH_TRAVERSAL", "attachment name must not contain path segments", name, http.StatusForbidden)
	}

	resolved := filepath.Join(v.rootAbs, trimmed)
	if !isWithinRoot(v.rootAbs, resolved) {
		return "", apierror.New("PATH_TRAVERSAL", "resolved path is outside storage root", name, http.StatusForbidden)
	}

	return resolved, nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	return strings.HasPrefix(candidateAbs, rootAbs+string(filepath.Separator))
}
