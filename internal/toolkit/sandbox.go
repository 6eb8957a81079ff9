package toolkit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

var errOutsideRoot = errors.New("path escapes sandbox root")

// Sandbox confines paths to a single canonical root directory.
type Sandbox struct {
	root string
}

// NewSandbox resolves root to an absolute, symlink-free directory.
func NewSandbox(root string) (Sandbox, error) {
	if strings.TrimSpace(root) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Sandbox{}, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Sandbox{}, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}
	rootReal, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return Sandbox{}, fmt.Errorf("failed to resolve sandbox root: %w", err)
	}
	info, err := os.Stat(rootReal)
	if err != nil {
		return Sandbox{}, fmt.Errorf("failed to access sandbox root: %w", err)
	}
	if !info.IsDir() {
		return Sandbox{}, fmt.Errorf("sandbox root %q is not a directory", root)
	}
	return Sandbox{root: rootReal}, nil
}

// Root returns the canonical root directory.
func (s Sandbox) Root() string {
	return s.root
}

// Resolve maps a caller-supplied path onto an absolute path under the root.
// The path is cleaned lexically, symlinks on its existing prefix are
// resolved, and the result must stay inside the root componentwise.
func (s Sandbox) Resolve(candidate string) (string, error) {
	if s.root == "" {
		return "", errors.New("sandbox root is not configured")
	}
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		trimmed = "."
	}
	if isWindowsAbsPath(trimmed) && !filepath.IsAbs(trimmed) {
		return "", errOutsideRoot
	}

	absCandidate := trimmed
	if !filepath.IsAbs(absCandidate) {
		absCandidate = filepath.Join(s.root, absCandidate)
	}
	absCandidate = filepath.Clean(absCandidate)

	resolved, err := resolveExistingPrefix(absCandidate)
	if err != nil {
		return "", err
	}
	rel, err := s.relative(resolved)
	if err != nil {
		return "", err
	}

	safe, err := securejoin.SecureJoin(s.root, rel)
	if err != nil {
		return "", fmt.Errorf("failed to join sandbox path: %w", err)
	}
	if _, err := s.relative(safe); err != nil {
		return "", err
	}
	return safe, nil
}

// Rel returns target relative to the root, or an error when it lies outside.
func (s Sandbox) Rel(target string) (string, error) {
	return s.relative(target)
}

func (s Sandbox) relative(target string) (string, error) {
	rel, err := filepath.Rel(s.root, target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sandbox relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", errOutsideRoot
	}
	return rel, nil
}

// resolveExistingPrefix evaluates symlinks on the deepest existing ancestor
// of path and re-appends the components that do not exist yet.
func resolveExistingPrefix(path string) (string, error) {
	var missing []string
	current := path
	for {
		if _, err := os.Lstat(current); err == nil {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}

	resolved, err := filepath.EvalSymlinks(current)
	if err != nil {
		if os.IsNotExist(err) {
			// dangling symlink: refuse rather than guess its target
			return "", errOutsideRoot
		}
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, missing[i])
	}
	return resolved, nil
}

func isWindowsAbsPath(path string) bool {
	if strings.HasPrefix(path, `\\`) {
		return true
	}
	if len(path) < 3 {
		return false
	}
	drive := path[0]
	if !((drive >= 'a' && drive <= 'z') || (drive >= 'A' && drive <= 'Z')) {
		return false
	}
	if path[1] != ':' {
		return false
	}
	return path[2] == '\\' || path[2] == '/'
}
