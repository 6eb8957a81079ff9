package toolkit

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

const defaultFileMode fs.FileMode = 0644

// WriteFile creates or overwrites a file under the root, creating missing
// parent directories. Existing content is replaced without any check.
func (t *Toolkit) WriteFile(path, content string) string {
	return t.Write(path, content).Text
}

// Write is WriteFile with the outcome classified.
func (t *Toolkit) Write(path, content string) Result {
	target, err := t.sandbox.Resolve(path)
	if err != nil {
		return t.rejectPath("write_file", path, err)
	}

	mode := defaultFileMode
	if info, err := os.Stat(target); err == nil {
		if info.IsDir() {
			return failure("Error writing file: path is a directory")
		}
		mode = info.Mode().Perm()
	} else if !os.IsNotExist(err) {
		return failure("Error writing file: %s", describeError(err))
	}

	if err := writeFileAtomic(target, []byte(content), mode); err != nil {
		t.log.WithFields(logrus.Fields{"op": "write_file", "path": path}).Warnf("write failed: %v", err)
		return failure("Error writing file: %s", describeError(err))
	}
	return success(fmt.Sprintf("Success: File '%s' written (%s).", path, humanize.Bytes(uint64(len(content)))))
}

// writeFileAtomic writes data to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}
