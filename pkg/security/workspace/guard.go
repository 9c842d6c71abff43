// Package workspace confines model-supplied file paths to a designated
// root directory. The model can name paths for screenshots and storage
// state files; without a boundary check it could write or read anywhere
// the process can.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guard validates that artifact paths stay inside the workspace root.
type Guard struct {
	root string
}

// NewGuard creates a guard rooted at the given directory.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	return &Guard{root: filepath.Clean(absRoot)}, nil
}

// Root returns the absolute workspace root.
func (g *Guard) Root() string {
	return g.root
}

// Resolve converts a path to an absolute path inside the workspace.
// Relative paths are joined to the root; absolute paths are accepted only
// when already inside it. Traversal components are cleaned away before the
// boundary check.
func (g *Guard) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(g.root, cleaned)
	}

	if !g.contains(cleaned) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return cleaned, nil
}

func (g *Guard) contains(absPath string) bool {
	if absPath == g.root {
		return true
	}
	return strings.HasPrefix(absPath, g.root+string(filepath.Separator))
}
