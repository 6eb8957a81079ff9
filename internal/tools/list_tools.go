package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/fractalmind-ai/codeteam/internal/toolkit"
)

const listToolsName = "list_tools"

// ListTools describes the tools an agent may call.
type ListTools struct {
	registry *Registry
}

// NewListTools creates a list_tools tool backed by registry.
func NewListTools(registry *Registry) Tool {
	return ListTools{registry: registry}
}

// Name returns the tool name.
func (ListTools) Name() string { return listToolsName }

// Description returns the tool description.
func (ListTools) Description() string { return "List the available tools and their arguments." }

// Parameters returns no parameters.
func (ListTools) Parameters() []Parameter { return nil }

// Execute lists every allowed tool except itself.
func (t ListTools) Execute(ctx context.Context, req Request) (toolkit.Result, error) {
	_ = ctx
	_ = req
	if t.registry == nil {
		return toolkit.Result{}, nil
	}
	lines := make([]string, 0)
	for _, info := range t.registry.Describe() {
		if info.Name == listToolsName {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", info.Name, info.Description))
	}
	return toolkit.Result{Text: strings.Join(lines, "\n")}, nil
}
