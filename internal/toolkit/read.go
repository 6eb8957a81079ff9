package toolkit

import (
	"os"
	"unicode/utf8"
)

// ReadFile returns the full UTF-8 content of a file under the root.
func (t *Toolkit) ReadFile(filepath string) string {
	return t.Read(filepath).Text
}

// Read is ReadFile with the outcome classified.
func (t *Toolkit) Read(filepath string) Result {
	target, err := t.sandbox.Resolve(filepath)
	if err != nil {
		return t.rejectPath("read_file", filepath, err)
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return failure("Error: File '%s' does not exist.", filepath)
		}
		return failure("Error reading file: %s", describeError(err))
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return failure("Error reading file: %s", describeError(err))
	}
	if !utf8.Valid(data) {
		return failure("Error reading file: content is not valid UTF-8")
	}
	return success(string(data))
}
