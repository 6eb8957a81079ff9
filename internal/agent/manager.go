package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fractalmind-ai/codeteam/internal/config"
	"github.com/fractalmind-ai/codeteam/internal/toolkit"
	"github.com/fractalmind-ai/codeteam/internal/tools"
	"github.com/fractalmind-ai/codeteam/pkg/protocol"
)

// Manager tracks the agent roster and mediates tool calls.
type Manager struct {
	registry *tools.Registry
	mu       sync.RWMutex
	agents   map[string]member
}

type member struct {
	name string
	cfg  config.AgentConfig
}

// NewManager creates a manager for the configured agents.
func NewManager(agents map[string]*config.AgentConfig, registry *tools.Registry) *Manager {
	roster := make(map[string]member, len(agents))
	for name, cfg := range agents {
		if cfg == nil {
			continue
		}
		roster[strings.ToLower(name)] = member{name: name, cfg: *cfg}
	}
	return &Manager{
		registry: registry,
		agents:   roster,
	}
}

// List returns known agents sorted by name.
func (m *Manager) List() []protocol.AgentInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]protocol.AgentInfo, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, protocol.AgentInfo{
			Name:           a.name,
			Role:           a.cfg.Role,
			Model:          a.cfg.Model,
			CanCall:        a.cfg.Tools,
			Endpoint:       a.cfg.BaseURL,
			Temperature:    a.cfg.Temperature,
			TimeoutSeconds: a.cfg.TimeoutSeconds,
		})
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].Name < agents[j].Name
	})
	return agents
}

// ExecuteTool runs a tool on behalf of agentName if that agent may call tools.
func (m *Manager) ExecuteTool(ctx context.Context, agentName, tool string, args json.RawMessage) (toolkit.Result, error) {
	if m == nil || m.registry == nil {
		return toolkit.Result{}, fmt.Errorf("tool registry not configured")
	}
	name := strings.TrimSpace(agentName)
	if name == "" {
		return toolkit.Result{}, fmt.Errorf("agent name is required")
	}
	m.mu.RLock()
	a, ok := m.agents[strings.ToLower(name)]
	m.mu.RUnlock()
	if !ok {
		return toolkit.Result{}, fmt.Errorf("unknown agent %q", name)
	}
	if !a.cfg.Tools {
		return toolkit.Result{}, fmt.Errorf("agent %q is not permitted to call tools", name)
	}
	return m.registry.Execute(ctx, tool, tools.Request{Args: args, Agent: a.name})
}

// Tools returns the tool descriptions available to callers.
func (m *Manager) Tools() []protocol.ToolInfo {
	if m == nil || m.registry == nil {
		return nil
	}
	infos := m.registry.Describe()
	out := make([]protocol.ToolInfo, 0, len(infos))
	for _, info := range infos {
		params := make([]protocol.ToolParameter, 0, len(info.Parameters))
		for _, p := range info.Parameters {
			params = append(params, protocol.ToolParameter{
				Name:        p.Name,
				Type:        p.Type,
				Description: p.Description,
				Required:    p.Required,
				Default:     p.Default,
			})
		}
		out = append(out, protocol.ToolInfo{Name: info.Name, Description: info.Description, Parameters: params})
	}
	return out
}
