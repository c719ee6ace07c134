package codegen

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath normalizes a generated file path to a slash-separated path
// relative to the project root. Absolute paths and paths that climb out of the
// root are rejected.
func CleanPath(p string) (string, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if raw == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(raw, "/") || (len(raw) > 1 && raw[1] == ':') {
		return "", fmt.Errorf("path %q must be relative", p)
	}
	cleaned := path.Clean(raw)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the project root", p)
	}
	return cleaned, nil
}
