package toolkit

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ListFiles lists a directory under the root. Flat listings return entry
// names; recursive listings return file paths relative to the root so they
// can be passed straight back to ReadFile and WriteFile. Hidden names are
// excluded, and hidden directories are pruned with their contents.
func (t *Toolkit) ListFiles(directory string, recursive bool) string {
	return t.List(directory, recursive).Text
}

// List is ListFiles with the outcome classified.
func (t *Toolkit) List(directory string, recursive bool) Result {
	if strings.TrimSpace(directory) == "" {
		directory = "."
	}
	target, err := t.sandbox.Resolve(directory)
	if err != nil {
		return t.rejectPath("list_files", directory, err)
	}
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return failure("Error: Directory '%s' does not exist.", directory)
		}
		return failure("Error listing directory: %s", describeError(err))
	}
	if !info.IsDir() {
		return failure("Error: '%s' is not a directory.", directory)
	}

	var entries []string
	if recursive {
		entries = t.walkFiles(target)
	} else {
		entries, err = t.readEntries(target)
		if err != nil {
			return failure("Error listing directory: %s", describeError(err))
		}
	}

	if len(entries) == 0 {
		return success(noFilesResult)
	}
	sort.Strings(entries)
	return success(strings.Join(entries, "\n"))
}

func (t *Toolkit) readEntries(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if isHidden(entry.Name()) {
			continue
		}
		// only regular files and directories, following symlinks like stat would
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (t *Toolkit) walkFiles(start string) []string {
	var files []string
	skipped := 0
	_ = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skipped++
			t.log.WithFields(logrus.Fields{"op": "list_files", "path": path}).Debugf("skipping unreadable entry: %v", err)
			if d != nil && d.IsDir() && path != start {
				return filepath.SkipDir
			}
			return nil
		}
		if path == start {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := t.sandbox.Rel(path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if skipped > 0 {
		t.log.WithField("op", "list_files").Infof("recursive listing skipped %s", pluralFiles(skipped))
	}
	return files
}
