package toolkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func newTestToolkit(t *testing.T) (*Toolkit, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "test_workspace")
	assert.NilError(t, os.Mkdir(dir, 0755))
	tk, err := New(dir, Options{})
	assert.NilError(t, err)
	return tk, tk.Root()
}

func touch(t *testing.T, path string) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.NilError(t, os.WriteFile(path, nil, 0644))
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	tk, _ := newTestToolkit(t)
	for _, content := range []string{"Hello, World!", "", "line1\r\nline2\n", "ünïcødé ✓"} {
		out := tk.WriteFile("test_file.txt", content)
		assert.Assert(t, is.Contains(out, "Success"))
		assert.Equal(t, tk.ReadFile("test_file.txt"), content)
	}
}

func TestWriteOverwrites(t *testing.T) {
	tk, _ := newTestToolkit(t)
	tk.WriteFile("overwrite_test.txt", "Original Content")
	tk.WriteFile("overwrite_test.txt", "New Content")
	assert.Equal(t, tk.ReadFile("overwrite_test.txt"), "New Content")
}

func TestWriteCreatesParentDirectories(t *testing.T) {
	tk, root := newTestToolkit(t)
	out := tk.WriteFile("a/b/c/deep.txt", "deep")
	assert.Assert(t, is.Contains(out, "Success: File 'a/b/c/deep.txt' written"))
	data, err := os.ReadFile(filepath.Join(root, "a", "b", "c", "deep.txt"))
	assert.NilError(t, err)
	assert.Equal(t, string(data), "deep")
}

func TestWritePreservesMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on Windows")
	}
	tk, root := newTestToolkit(t)
	path := filepath.Join(root, "run.sh")
	assert.NilError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	tk.WriteFile("run.sh", "#!/bin/sh\necho hi\n")
	info, err := os.Stat(path)
	assert.NilError(t, err)
	assert.Equal(t, info.Mode().Perm(), os.FileMode(0755))
}

func TestWriteRejectsDirectory(t *testing.T) {
	tk, root := newTestToolkit(t)
	assert.NilError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))
	res := tk.Write("dir", "x")
	assert.Assert(t, is.Contains(res.Text, "Error writing file"))
	assert.Assert(t, res.Failed)
}

func TestReadNonexistentFile(t *testing.T) {
	tk, _ := newTestToolkit(t)
	out := tk.ReadFile("fake_ghost_file.txt")
	assert.Assert(t, is.Contains(out, "Error"))
	assert.Assert(t, is.Contains(out, "does not exist"))
}

func TestReadRejectsInvalidUTF8(t *testing.T) {
	tk, root := newTestToolkit(t)
	assert.NilError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0xff, 0xfe, 0x00}, 0644))
	out := tk.ReadFile("blob.bin")
	assert.Assert(t, strings.HasPrefix(out, "Error reading file: "), out)
}

func TestReadDirectoryIsError(t *testing.T) {
	tk, root := newTestToolkit(t)
	assert.NilError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))
	out := tk.ReadFile("dir")
	assert.Assert(t, strings.HasPrefix(out, "Error reading file: "), out)
	assert.Assert(t, !strings.Contains(out, root), "error leaks absolute path: %s", out)
}

func TestEveryOperationDeniesEscape(t *testing.T) {
	tk, root := newTestToolkit(t)
	outside := filepath.Join(filepath.Dir(root), "outside.txt")
	assert.NilError(t, os.WriteFile(outside, []byte("secret"), 0644))

	for _, path := range []string{"../../../../../etc/passwd", "../", "../outside.txt", outside} {
		assert.Assert(t, is.Contains(tk.ReadFile(path), "Error: Access denied"), path)
		assert.Assert(t, is.Contains(tk.ListFiles(path, false), "Error: Access denied"), path)
		assert.Assert(t, is.Contains(tk.ListFiles(path, true), "Error: Access denied"), path)
		assert.Assert(t, is.Contains(tk.SearchFiles("secret", path), "Error: Access denied"), path)
		assert.Assert(t, is.Contains(tk.WriteFile(path, "pwned"), "Error: Access denied"), path)
	}

	data, err := os.ReadFile(outside)
	assert.NilError(t, err)
	assert.Equal(t, string(data), "secret")
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escaped"))
	assert.Assert(t, os.IsNotExist(err))
	assert.Assert(t, is.Contains(tk.WriteFile("../escaped/new.txt", "x"), "Error: Access denied"))
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escaped"))
	assert.Assert(t, os.IsNotExist(err))
}

func TestListEmptyDirectory(t *testing.T) {
	tk, _ := newTestToolkit(t)
	assert.Equal(t, tk.ListFiles(".", false), "(No files found)")
	assert.Equal(t, tk.ListFiles("", true), "(No files found)")
}

func TestListFlatAndRecursive(t *testing.T) {
	tk, root := newTestToolkit(t)
	touch(t, filepath.Join(root, "file1.txt"))
	touch(t, filepath.Join(root, "file2.py"))
	touch(t, filepath.Join(root, "subdir", "file3.md"))

	assert.Equal(t, tk.ListFiles(".", false), "file1.txt\nfile2.py\nsubdir")

	recursive := tk.ListFiles(".", true)
	assert.Assert(t, is.Contains(recursive, "file1.txt"))
	assert.Assert(t, is.Contains(recursive, filepath.Join("subdir", "file3.md")))
	assert.Equal(t, recursive, strings.Join([]string{"file1.txt", "file2.py", filepath.Join("subdir", "file3.md")}, "\n"))
}

func TestListRecursiveSubdirIsRootRelative(t *testing.T) {
	tk, root := newTestToolkit(t)
	touch(t, filepath.Join(root, "subdir", "nested", "file4.go"))
	out := tk.ListFiles("subdir", true)
	want := filepath.Join("subdir", "nested", "file4.go")
	assert.Equal(t, out, want)
	assert.Equal(t, tk.ReadFile(out), "")
}

func TestListExcludesHiddenAtAnyDepth(t *testing.T) {
	tk, root := newTestToolkit(t)
	touch(t, filepath.Join(root, ".env"))
	touch(t, filepath.Join(root, ".git", "config"))
	touch(t, filepath.Join(root, "src", ".cache", "blob"))
	touch(t, filepath.Join(root, "src", ".hidden.txt"))
	touch(t, filepath.Join(root, "src", "main.go"))

	assert.Equal(t, tk.ListFiles(".", false), "src")
	assert.Equal(t, tk.ListFiles(".", true), filepath.Join("src", "main.go"))
}

func TestListMissingDirectory(t *testing.T) {
	tk, _ := newTestToolkit(t)
	assert.Equal(t, tk.ListFiles("nope", false), "Error: Directory 'nope' does not exist.")
}

func TestListFileArgument(t *testing.T) {
	tk, root := newTestToolkit(t)
	touch(t, filepath.Join(root, "file1.txt"))
	assert.Equal(t, tk.ListFiles("file1.txt", false), "Error: 'file1.txt' is not a directory.")
}

func TestConcurrentUse(t *testing.T) {
	tk, _ := newTestToolkit(t)
	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("dir%d/file%d.txt", i%4, i)
			content := fmt.Sprintf("content-%d", i)
			if res := tk.Write(name, content); res.Failed {
				errs <- res.Text
				return
			}
			if got := tk.ReadFile(name); got != content {
				errs <- fmt.Sprintf("read %s: got %q", name, got)
			}
			_ = tk.ListFiles(".", true)
			_ = tk.SearchFiles("content", ".")
		}(i)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
	assert.Equal(t, len(strings.Split(tk.ListFiles(".", true), "\n")), 16)
}

func TestResultsStartingWithErrorAreSuccesses(t *testing.T) {
	tk, root := newTestToolkit(t)
	touch(t, filepath.Join(root, "ErrorCodes.go"))
	touch(t, filepath.Join(root, "main.go"))
	assert.NilError(t, os.WriteFile(filepath.Join(root, "NOTES.md"), []byte("Error handling notes"), 0644))

	list := tk.List(".", false)
	assert.Assert(t, !list.Failed, list.Text)
	assert.Equal(t, list.Text, "ErrorCodes.go\nNOTES.md\nmain.go")

	read := tk.Read("NOTES.md")
	assert.Assert(t, !read.Failed, read.Text)
	assert.Equal(t, read.Text, "Error handling notes")

	search := tk.Search("Error", ".")
	assert.Assert(t, !search.Failed, search.Text)
	assert.Equal(t, search.Text, "NOTES.md:1: Error handling notes")

	missing := tk.Search("nothing-here", ".")
	assert.Assert(t, !missing.Failed)
	assert.Equal(t, missing.Text, "No matches found.")
}

func TestFailuresAreClassified(t *testing.T) {
	tk, root := newTestToolkit(t)
	assert.NilError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))
	touch(t, filepath.Join(root, "file.txt"))

	for name, res := range map[string]Result{
		"denied read":     tk.Read("../outside.txt"),
		"missing read":    tk.Read("ghost.txt"),
		"missing list":    tk.List("ghost", false),
		"file list":       tk.List("file.txt", false),
		"directory write": tk.Write("dir", "x"),
		"empty keyword":   tk.Search("", "."),
		"missing search":  tk.Search("x", "ghost"),
	} {
		assert.Assert(t, res.Failed, "%s: %s", name, res.Text)
		assert.Assert(t, strings.HasPrefix(res.Text, "Error"), "%s: %s", name, res.Text)
	}
	assert.Assert(t, !tk.Write("ok.txt", "x").Failed)
	assert.Assert(t, !tk.List("dir", true).Failed)
}

func TestSymlinkLoopIsNotAccessDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	tk, root := newTestToolkit(t)
	assert.NilError(t, os.Symlink("loop", filepath.Join(root, "loop")))

	res := tk.Read("loop")
	assert.Assert(t, res.Failed)
	assert.Assert(t, res.Text != accessDeniedResult, res.Text)
	assert.Assert(t, strings.HasPrefix(res.Text, "Error: Cannot resolve path 'loop'"), res.Text)
	assert.Assert(t, !strings.Contains(res.Text, root), "error leaks absolute path: %s", res.Text)
}
