package toolkit

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gotest.tools/v3/assert"
)

func TestSandboxAcceptsRelative(t *testing.T) {
	root := t.TempDir()
	sandbox, err := NewSandbox(root)
	assert.NilError(t, err)
	target, err := sandbox.Resolve("notes.txt")
	assert.NilError(t, err)
	assert.Equal(t, target, filepath.Join(sandbox.Root(), "notes.txt"))
}

func TestSandboxAcceptsRootItself(t *testing.T) {
	sandbox, err := NewSandbox(t.TempDir())
	assert.NilError(t, err)
	for _, candidate := range []string{"", ".", "./", "sub/.."} {
		target, err := sandbox.Resolve(candidate)
		assert.NilError(t, err, "candidate %q", candidate)
		assert.Equal(t, target, sandbox.Root(), "candidate %q", candidate)
	}
}

func TestSandboxRejectsTraversal(t *testing.T) {
	sandbox, err := NewSandbox(t.TempDir())
	assert.NilError(t, err)
	for _, candidate := range []string{"../secrets", "..", "../", "../../../../../etc/passwd", "a/../../b"} {
		_, err := sandbox.Resolve(candidate)
		assert.ErrorIs(t, err, errOutsideRoot, "candidate %q", candidate)
	}
}

func TestSandboxAcceptsInternalDotDot(t *testing.T) {
	sandbox, err := NewSandbox(t.TempDir())
	assert.NilError(t, err)
	target, err := sandbox.Resolve("a/b/../c.txt")
	assert.NilError(t, err)
	assert.Equal(t, target, filepath.Join(sandbox.Root(), "a", "c.txt"))
}

func TestSandboxRejectsSiblingWithSharedPrefix(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "work")
	sibling := filepath.Join(parent, "workspace")
	assert.NilError(t, os.Mkdir(root, 0755))
	assert.NilError(t, os.Mkdir(sibling, 0755))

	sandbox, err := NewSandbox(root)
	assert.NilError(t, err)
	_, err = sandbox.Resolve("../workspace/file.txt")
	assert.ErrorIs(t, err, errOutsideRoot)
	_, err = sandbox.Resolve(filepath.Join(sibling, "file.txt"))
	assert.ErrorIs(t, err, errOutsideRoot)
}

func TestSandboxAbsolutePaths(t *testing.T) {
	sandbox, err := NewSandbox(t.TempDir())
	assert.NilError(t, err)

	inside := filepath.Join(sandbox.Root(), "inside.txt")
	target, err := sandbox.Resolve(inside)
	assert.NilError(t, err)
	assert.Equal(t, target, inside)

	outside := filepath.Join(filepath.Dir(sandbox.Root()), "outside.txt")
	_, err = sandbox.Resolve(outside)
	assert.ErrorIs(t, err, errOutsideRoot)
}

func TestSandboxRejectsWindowsAbsolute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("windows absolute paths are handled by platform-specific logic")
	}
	sandbox, err := NewSandbox(t.TempDir())
	assert.NilError(t, err)
	_, err = sandbox.Resolve(`C:\Windows\system32`)
	assert.ErrorIs(t, err, errOutsideRoot)
	_, err = sandbox.Resolve(`\\server\share\file`)
	assert.ErrorIs(t, err, errOutsideRoot)
}

func TestSandboxRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink tests are unreliable on Windows")
	}
	root := t.TempDir()
	outsideDir := t.TempDir()
	outsideFile := filepath.Join(outsideDir, "secret.txt")
	assert.NilError(t, os.WriteFile(outsideFile, []byte("secret"), 0644))
	if err := os.Symlink(outsideFile, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	if err := os.Symlink(outsideDir, filepath.Join(root, "linkdir")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	sandbox, err := NewSandbox(root)
	assert.NilError(t, err)
	_, err = sandbox.Resolve("link")
	assert.ErrorIs(t, err, errOutsideRoot)
	_, err = sandbox.Resolve("linkdir/new/file.txt")
	assert.ErrorIs(t, err, errOutsideRoot)
}

func TestSandboxFollowsSymlinkInsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink tests are unreliable on Windows")
	}
	root := t.TempDir()
	assert.NilError(t, os.Mkdir(filepath.Join(root, "real"), 0755))
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}
	sandbox, err := NewSandbox(root)
	assert.NilError(t, err)
	target, err := sandbox.Resolve("alias/missing/file.txt")
	assert.NilError(t, err)
	assert.Equal(t, target, filepath.Join(sandbox.Root(), "real", "missing", "file.txt"))
}

func TestNewSandboxRejectsMissingRoot(t *testing.T) {
	_, err := NewSandbox(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "sandbox root")
}

func TestNewSandboxRejectsFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	assert.NilError(t, os.WriteFile(path, []byte("x"), 0644))
	_, err := NewSandbox(path)
	assert.ErrorContains(t, err, "not a directory")
}

func TestNewSandboxDefaultsToWorkingDirectory(t *testing.T) {
	sandbox, err := NewSandbox("")
	assert.NilError(t, err)
	wd, err := os.Getwd()
	assert.NilError(t, err)
	wdReal, err := filepath.EvalSymlinks(wd)
	assert.NilError(t, err)
	assert.Equal(t, sandbox.Root(), wdReal)
}
