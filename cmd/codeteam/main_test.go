package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fractalmind-ai/codeteam/internal/config"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "codeteam.yaml")
	assert.NilError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunMissingConfig(t *testing.T) {
	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{"tools", "--config", "/nope/config.yaml"}, &buf)
	assert.Assert(t, code != 0)
	assert.Check(t, is.Contains(buf.String(), "failed to load config"))
}

func TestRunCallWriteThenRead(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{
		"--root", root, "call", "write_file", `{"filepath":"docs/readme.md","content":"hello team"}`,
	}, &buf)
	assert.Equal(t, code, 0, buf.String())
	assert.Check(t, is.Contains(buf.String(), "Success: File 'docs/readme.md' written"))

	buf.Reset()
	code = runWithContext(context.Background(), []string{
		"--root", root, "call", "read_file", `{"filepath":"docs/readme.md"}`,
	}, &buf)
	assert.Equal(t, code, 0, buf.String())
	assert.Equal(t, buf.String(), "hello team\n")
}

func TestRunCallReportsToolErrors(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{
		"--root", root, "call", "read_file", `{"filepath":"../outside.txt"}`,
	}, &buf)
	assert.Equal(t, code, 1)
	assert.Equal(t, buf.String(), "Error: Access denied. Path is outside the project root.\n")

	buf.Reset()
	code = runWithContext(context.Background(), []string{"--root", root, "call", "delete_file"}, &buf)
	assert.Equal(t, code, 1)
	assert.Check(t, is.Contains(buf.String(), "unknown tool"))

	buf.Reset()
	code = runWithContext(context.Background(), []string{"--root", root, "call", "list_files", "{not json"}, &buf)
	assert.Equal(t, code, 1)
	assert.Check(t, is.Contains(buf.String(), "JSON object"))
}

func TestRunCallSucceedsOnTextStartingWithError(t *testing.T) {
	root := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(root, "ErrorCodes.go"), []byte("package errs\n"), 0644))
	assert.NilError(t, os.WriteFile(filepath.Join(root, "NOTES.md"), []byte("Error handling notes"), 0644))

	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{"--root", root, "call", "list_files"}, &buf)
	assert.Equal(t, code, 0, buf.String())
	assert.Equal(t, buf.String(), "ErrorCodes.go\nNOTES.md\n")

	buf.Reset()
	code = runWithContext(context.Background(), []string{
		"--root", root, "call", "read_file", `{"filepath":"NOTES.md"}`,
	}, &buf)
	assert.Equal(t, code, 0, buf.String())
	assert.Equal(t, buf.String(), "Error handling notes\n")
}

func TestRunToolsListsDescriptions(t *testing.T) {
	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{"--root", t.TempDir(), "tools"}, &buf)
	assert.Equal(t, code, 0, buf.String())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.DeepEqual(t, lines, []string{
		"list_files: List files in a directory. Args: directory, recursive (bool)",
		"read_file: Read file content. Args: filepath",
		"search_files: Search for a keyword in files. Args: keyword, directory",
		"write_file: Write content to a file. Args: filepath, content",
	})
}

func TestRunInitConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codeteam.yaml")

	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{"init-config", "--path", path}, &buf)
	assert.Equal(t, code, 0, buf.String())

	cfg, err := config.LoadConfig(path)
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg, config.DefaultConfig())

	buf.Reset()
	code = runWithContext(context.Background(), []string{"init-config", "--path", path}, &buf)
	assert.Equal(t, code, 1)
	assert.Check(t, is.Contains(buf.String(), "already exists"))
}

func TestRunAuditRecordsCalls(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "workspace")
	assert.NilError(t, os.Mkdir(root, 0755))
	configPath := writeConfig(t, dir, "workspace:\n  root: "+root+"\naudit:\n  enabled: true\n  path: "+filepath.Join(dir, "audit.db")+"\n")

	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{"--config", configPath, "call", "list_files"}, &buf)
	assert.Equal(t, code, 0, buf.String())
	assert.Equal(t, buf.String(), "(No files found)\n")

	buf.Reset()
	code = runWithContext(context.Background(), []string{"--config", configPath, "audit", "--limit", "5"}, &buf)
	assert.Equal(t, code, 0, buf.String())
	assert.Check(t, is.Contains(buf.String(), "Admin"))
	assert.Check(t, is.Contains(buf.String(), "list_files"))
}

func TestRunAuditDisabled(t *testing.T) {
	var buf bytes.Buffer
	code := runWithContext(context.Background(), []string{"--root", t.TempDir(), "audit"}, &buf)
	assert.Equal(t, code, 1)
	assert.Check(t, is.Contains(buf.String(), "audit log is disabled"))
}

func TestRunServeExitsOnCancel(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "workspace:\n  root: "+dir+"\ngateway:\n  bind: 127.0.0.1\n  port: 0\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var buf bytes.Buffer
	code := runWithContext(ctx, []string{"serve", "--config", configPath}, &buf)
	assert.Equal(t, code, 0, buf.String())
}
