package toolkit

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const searchMaxLineRunes = 100

var defaultExcludedExtensions = []string{
	".pyc", ".pyo", ".class", ".o", ".so", ".dylib", ".dll", ".exe", ".bin",
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp",
	".git",
}

// SearchReport is the structured outcome of a search.
type SearchReport struct {
	Matches   []Match
	Skipped   int
	Truncated bool
}

// Match is one line containing the keyword.
type Match struct {
	Path string
	Line int
	Text string
}

func (m Match) String() string {
	return fmt.Sprintf("%s:%d: %s", m.Path, m.Line, m.Text)
}

// SearchFiles reports every line under directory that contains keyword as a
// literal, case-sensitive substring.
func (t *Toolkit) SearchFiles(keyword, directory string) string {
	return t.Search(keyword, directory).Text
}

// Search is SearchFiles with the outcome classified. A search that ran is a
// success even when nothing matched or some files were skipped.
func (t *Toolkit) Search(keyword, directory string) Result {
	if strings.TrimSpace(directory) == "" {
		directory = "."
	}
	if keyword == "" {
		return failure("Error: Keyword is required.")
	}
	target, err := t.sandbox.Resolve(directory)
	if err != nil {
		return t.rejectPath("search_files", directory, err)
	}
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return failure("Error: Directory '%s' does not exist.", directory)
		}
		return failure("Error searching files: %s", describeError(err))
	}

	report := &SearchReport{}
	if info.IsDir() {
		t.searchTree(target, keyword, report)
	} else {
		t.searchOne(target, keyword, report)
	}
	return success(report.render())
}

func (r *SearchReport) render() string {
	lines := make([]string, 0, len(r.Matches)+2)
	for _, m := range r.Matches {
		lines = append(lines, m.String())
	}
	if len(lines) == 0 {
		lines = append(lines, noMatchesResult)
	}
	if r.Truncated {
		lines = append(lines, truncatedNotice)
	}
	if r.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("(%s skipped)", pluralFiles(r.Skipped)))
	}
	return strings.Join(lines, "\n")
}

func (t *Toolkit) searchTree(start, keyword string, report *SearchReport) {
	_ = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if report.Truncated {
			return filepath.SkipAll
		}
		if err != nil {
			report.Skipped++
			t.logSkip(path, err)
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
		if d.IsDir() || t.isExcluded(d.Name()) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := t.sandbox.Resolve(path)
			if err != nil {
				return nil
			}
			info, err := os.Stat(resolved)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
			t.searchFile(resolved, path, keyword, report)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		t.searchFile(path, path, keyword, report)
		return nil
	})
}

func (t *Toolkit) searchOne(path, keyword string, report *SearchReport) {
	if t.isExcluded(filepath.Base(path)) {
		return
	}
	t.searchFile(path, path, keyword, report)
}

// searchFile scans one file. displayPath is what the match is reported as;
// read failures are counted and the file is skipped.
func (t *Toolkit) searchFile(path, displayPath, keyword string, report *SearchReport) {
	rel, err := t.sandbox.Rel(displayPath)
	if err != nil {
		return
	}
	file, err := os.Open(path)
	if err != nil {
		report.Skipped++
		t.logSkip(path, err)
		return
	}
	defer file.Close()

	reader := bufio.NewReader(transform.NewReader(file, unicode.UTF8.NewDecoder()))
	lineNum := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			report.Skipped++
			t.logSkip(path, err)
			return
		}
		for _, text := range splitLines(line) {
			lineNum++
			if !strings.Contains(text, keyword) {
				continue
			}
			if t.maxMatches > 0 && len(report.Matches) >= t.maxMatches {
				report.Truncated = true
				return
			}
			report.Matches = append(report.Matches, Match{
				Path: filepath.ToSlash(rel),
				Line: lineNum,
				Text: truncateRunes(strings.TrimSpace(text), searchMaxLineRunes),
			})
		}
		if err == io.EOF {
			return
		}
	}
}

// splitLines breaks one ReadString chunk into lines. "\n", "\r\n" and a lone
// "\r" all end a line; a chunk never splits a "\r\n" pair because it ends
// at the "\n".
func splitLines(chunk string) []string {
	if chunk == "" {
		return nil
	}
	chunk = strings.TrimSuffix(chunk, "\n")
	chunk = strings.TrimSuffix(chunk, "\r")
	return strings.Split(chunk, "\r")
}

func (t *Toolkit) isExcluded(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	_, ok := t.excluded[ext]
	return ok
}

func (t *Toolkit) logSkip(path string, err error) {
	t.log.WithFields(logrus.Fields{"op": "search_files", "path": path}).Debugf("skipping file: %v", err)
}

func truncateRunes(s string, max int) string {
	count := 0
	for idx := range s {
		if count == max {
			return s[:idx]
		}
		count++
	}
	return s
}
