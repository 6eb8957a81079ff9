// Package tools exposes named, described operations to agent frameworks.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fractalmind-ai/codeteam/internal/toolkit"
	"github.com/sirupsen/logrus"
)

// Tool executes a single named operation.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Parameter
	Execute(ctx context.Context, req Request) (toolkit.Result, error)
}

// Parameter describes one argument of a tool.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// Request carries the raw JSON arguments and the calling agent.
type Request struct {
	Args  json.RawMessage
	Agent string
}

// Invocation is reported to a Recorder after every execution.
type Invocation struct {
	Agent       string
	Tool        string
	Args        string
	Outcome     string
	OutputBytes int
	Duration    time.Duration
	Time        time.Time
}

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder persists invocations, e.g. an audit log.
type Recorder interface {
	Record(ctx context.Context, inv Invocation) error
}

// Info is the public description of a registered tool.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Registry dispatches tool invocations with allowlist checks.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	allowed  map[string]struct{}
	recorder Recorder
	log      logrus.FieldLogger
}

// NewRegistry creates a registry. An empty allowlist allows every tool.
func NewRegistry(allowed []string) *Registry {
	allow := make(map[string]struct{})
	for _, name := range allowed {
		trimmed := normalizeName(name)
		if trimmed == "" {
			continue
		}
		allow[trimmed] = struct{}{}
	}
	return &Registry{
		tools:   make(map[string]Tool),
		allowed: allow,
		log:     logrus.StandardLogger(),
	}
}

// SetLogger replaces the registry logger.
func (r *Registry) SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	r.log = logger
	r.mu.Unlock()
}

// SetRecorder installs an invocation recorder.
func (r *Registry) SetRecorder(rec Recorder) {
	r.mu.Lock()
	r.recorder = rec
	r.mu.Unlock()
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("tool is nil")
	}
	name := normalizeName(tool.Name())
	if name == "" {
		return errors.New("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// RegisterAll adds several tools, stopping at the first failure.
func (r *Registry) RegisterAll(tools ...Tool) error {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs an allowed tool and reports the invocation. A failed
// operation is a result with Failed set; the error is reserved for unknown
// tools, refused tools and bad arguments.
func (r *Registry) Execute(ctx context.Context, name string, req Request) (toolkit.Result, error) {
	if r == nil {
		return toolkit.Result{}, errors.New("tool registry is nil")
	}
	trimmed := normalizeName(name)
	if trimmed == "" {
		return toolkit.Result{}, errors.New("tool name is required")
	}
	r.mu.RLock()
	tool, ok := r.tools[trimmed]
	recorder := r.recorder
	logger := r.log
	r.mu.RUnlock()
	if !ok {
		return toolkit.Result{}, fmt.Errorf("unknown tool %q (see %s)", trimmed, listToolsName)
	}
	if !r.isAllowed(trimmed) {
		return toolkit.Result{}, fmt.Errorf("tool %q is not allowed by tools.allowed (see %s)", trimmed, listToolsName)
	}
	if err := ctx.Err(); err != nil {
		return toolkit.Result{}, err
	}

	started := time.Now()
	out, err := tool.Execute(ctx, req)
	elapsed := time.Since(started)

	fields := logrus.Fields{"tool": trimmed, "agent": req.Agent, "duration": elapsed}
	if err != nil {
		logger.WithFields(fields).Warnf("tool call failed: %v", err)
		return toolkit.Result{}, err
	}
	outcome := OutcomeOK
	if out.Failed {
		outcome = OutcomeError
	}
	logger.WithFields(fields).WithField("outcome", outcome).Debug("tool executed")

	if recorder != nil {
		inv := Invocation{
			Agent:       req.Agent,
			Tool:        trimmed,
			Args:        string(req.Args),
			Outcome:     outcome,
			OutputBytes: len(out.Text),
			Duration:    elapsed,
			Time:        started.UTC(),
		}
		if err := recorder.Record(ctx, inv); err != nil {
			logger.WithFields(fields).Warnf("failed to record invocation: %v", err)
		}
	}
	return out, nil
}

func (r *Registry) isAllowed(name string) bool {
	if len(r.allowed) == 0 || name == listToolsName {
		return true
	}
	_, ok := r.allowed[name]
	return ok
}

// Tools returns registered, allowed tools sorted by name.
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for name, tool := range r.tools {
		if r.isAllowed(name) {
			out = append(out, tool)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}

// Describe returns the public info for every allowed tool.
func (r *Registry) Describe() []Info {
	tools := r.Tools()
	out := make([]Info, 0, len(tools))
	for _, tool := range tools {
		out = append(out, Info{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return out
}

// Names returns the sorted names of every allowed tool.
func (r *Registry) Names() []string {
	tools := r.Tools()
	out := make([]string, 0, len(tools))
	for _, tool := range tools {
		out = append(out, tool.Name())
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
