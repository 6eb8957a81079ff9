package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/fractalmind-ai/codeteam/internal/toolkit"
)

const (
	ListFilesName   = "list_files"
	ReadFileName    = "read_file"
	WriteFileName   = "write_file"
	SearchFilesName = "search_files"
)

// NewFileTools binds the four filesystem tools to a toolkit.
func NewFileTools(ts toolkit.Operations) []Tool {
	return []Tool{
		listFilesTool{ts: ts},
		readFileTool{ts: ts},
		writeFileTool{ts: ts},
		searchFilesTool{ts: ts},
	}
}

// decodeArgs unmarshals a JSON object; empty input leaves dst untouched.
func decodeArgs(raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type listFilesTool struct{ ts toolkit.Operations }

func (listFilesTool) Name() string { return ListFilesName }

func (listFilesTool) Description() string {
	return "List files in a directory. Args: directory, recursive (bool)"
}

func (listFilesTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "directory", Type: "string", Description: "Directory relative to the project root.", Default: "."},
		{Name: "recursive", Type: "boolean", Description: "List files in all subdirectories.", Default: false},
	}
}

func (t listFilesTool) Execute(ctx context.Context, req Request) (toolkit.Result, error) {
	_ = ctx
	args := struct {
		Directory *string `json:"directory"`
		Recursive *bool   `json:"recursive"`
	}{}
	if err := decodeArgs(req.Args, &args); err != nil {
		return toolkit.Result{}, err
	}
	directory := "."
	if args.Directory != nil {
		directory = *args.Directory
	}
	recursive := false
	if args.Recursive != nil {
		recursive = *args.Recursive
	}
	return t.ts.List(directory, recursive), nil
}

type readFileTool struct{ ts toolkit.Operations }

func (readFileTool) Name() string { return ReadFileName }

func (readFileTool) Description() string { return "Read file content. Args: filepath" }

func (readFileTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "filepath", Type: "string", Description: "File path relative to the project root.", Required: true},
	}
}

func (t readFileTool) Execute(ctx context.Context, req Request) (toolkit.Result, error) {
	_ = ctx
	args := struct {
		Filepath *string `json:"filepath"`
	}{}
	if err := decodeArgs(req.Args, &args); err != nil {
		return toolkit.Result{}, err
	}
	if args.Filepath == nil {
		return toolkit.Result{}, fmt.Errorf("filepath is required")
	}
	return t.ts.Read(*args.Filepath), nil
}

type writeFileTool struct{ ts toolkit.Operations }

func (writeFileTool) Name() string { return WriteFileName }

func (writeFileTool) Description() string { return "Write content to a file. Args: filepath, content" }

func (writeFileTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "filepath", Type: "string", Description: "File path relative to the project root.", Required: true},
		{Name: "content", Type: "string", Description: "Full file content; existing files are overwritten.", Required: true},
	}
}

func (t writeFileTool) Execute(ctx context.Context, req Request) (toolkit.Result, error) {
	_ = ctx
	args := struct {
		Filepath *string `json:"filepath"`
		Content  *string `json:"content"`
	}{}
	if err := decodeArgs(req.Args, &args); err != nil {
		return toolkit.Result{}, err
	}
	if args.Filepath == nil {
		return toolkit.Result{}, fmt.Errorf("filepath is required")
	}
	if args.Content == nil {
		return toolkit.Result{}, fmt.Errorf("content is required")
	}
	return t.ts.Write(*args.Filepath, *args.Content), nil
}

type searchFilesTool struct{ ts toolkit.Operations }

func (searchFilesTool) Name() string { return SearchFilesName }

func (searchFilesTool) Description() string {
	return "Search for a keyword in files. Args: keyword, directory"
}

func (searchFilesTool) Parameters() []Parameter {
	return []Parameter{
		{Name: "keyword", Type: "string", Description: "Literal, case-sensitive text to find.", Required: true},
		{Name: "directory", Type: "string", Description: "Directory relative to the project root.", Default: "."},
	}
}

func (t searchFilesTool) Execute(ctx context.Context, req Request) (toolkit.Result, error) {
	_ = ctx
	args := struct {
		Keyword   *string `json:"keyword"`
		Directory *string `json:"directory"`
	}{}
	if err := decodeArgs(req.Args, &args); err != nil {
		return toolkit.Result{}, err
	}
	if args.Keyword == nil {
		return toolkit.Result{}, fmt.Errorf("keyword is required")
	}
	directory := "."
	if args.Directory != nil {
		directory = *args.Directory
	}
	return t.ts.Search(*args.Keyword, directory), nil
}
