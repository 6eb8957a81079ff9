// Package toolkit gives language-model agents bounded access to one
// directory tree. Every operation checks that its path argument stays under
// the root before touching the filesystem, and every ordinary failure is
// returned as text the calling agent can read.
//
// A Toolkit holds only its immutable root and options, so it may be shared
// between goroutines. Concurrent writes to the same file are not arbitrated.
package toolkit

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	accessDeniedResult = "Error: Access denied. Path is outside the project root."
	noFilesResult      = "(No files found)"
	noMatchesResult    = "No matches found."
	truncatedNotice    = "...(truncated)"
)

// Toolset is the capability handed to an agent framework.
type Toolset interface {
	ListFiles(directory string, recursive bool) string
	ReadFile(filepath string) string
	WriteFile(filepath, content string) string
	SearchFiles(keyword, directory string) string
}

// Operations mirrors Toolset but reports whether each call failed.
type Operations interface {
	List(directory string, recursive bool) Result
	Read(filepath string) Result
	Write(filepath, content string) Result
	Search(keyword, directory string) Result
}

// Options tunes a Toolkit. The zero value is usable.
type Options struct {
	// SearchMaxMatches caps search output; zero means unlimited.
	SearchMaxMatches int
	// ExcludedExtensions overrides the default binary-extension list.
	ExcludedExtensions []string
	Logger             logrus.FieldLogger
}

// Toolkit implements Toolset against a sandboxed root directory.
type Toolkit struct {
	sandbox    Sandbox
	maxMatches int
	excluded   map[string]struct{}
	log        logrus.FieldLogger
}

var (
	_ Toolset    = (*Toolkit)(nil)
	_ Operations = (*Toolkit)(nil)
)

// New binds a toolkit to root. An empty root means the working directory.
func New(root string, opts Options) (*Toolkit, error) {
	sandbox, err := NewSandbox(root)
	if err != nil {
		return nil, err
	}
	exts := opts.ExcludedExtensions
	if len(exts) == 0 {
		exts = defaultExcludedExtensions
	}
	excluded := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		excluded[ext] = struct{}{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxMatches := opts.SearchMaxMatches
	if maxMatches < 0 {
		maxMatches = 0
	}
	return &Toolkit{
		sandbox:    sandbox,
		maxMatches: maxMatches,
		excluded:   excluded,
		log:        logger.WithField("root", sandbox.Root()),
	}, nil
}

// Root returns the canonical root directory.
func (t *Toolkit) Root() string {
	return t.sandbox.Root()
}

// Result is the text of an operation together with whether it failed.
// Failed is set where the failure happens; the text is never inspected.
type Result struct {
	Text   string
	Failed bool
}

func (r Result) String() string {
	return r.Text
}

func success(text string) Result {
	return Result{Text: text}
}

func failure(format string, args ...any) Result {
	return Result{Text: fmt.Sprintf(format, args...), Failed: true}
}

// rejectPath turns a Resolve error into a result. Only containment
// violations are reported as access denied.
func (t *Toolkit) rejectPath(op, path string, err error) Result {
	fields := logrus.Fields{"op": op, "path": path}
	if errors.Is(err, errOutsideRoot) {
		t.log.WithFields(fields).Warnf("access denied: %v", err)
		return Result{Text: accessDeniedResult, Failed: true}
	}
	t.log.WithFields(fields).Warnf("path resolution failed: %v", err)
	return failure("Error: Cannot resolve path '%s': %s", path, describeError(err))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// describeError strips the absolute path from filesystem errors so results
// do not leak the host layout.
func describeError(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err.Error()
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return linkErr.Err.Error()
	}
	return err.Error()
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}
