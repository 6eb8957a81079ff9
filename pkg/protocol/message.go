package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageKind defines type of message
type MessageKind string

const (
	MessageKindAgent MessageKind = "agent"
	MessageKindTool  MessageKind = "tool"
	MessageKindEvent MessageKind = "event"
)

// Action defines action within a message kind
type Action string

const (
	ActionList   Action = "list"
	ActionCall   Action = "call"
	ActionResult Action = "result"
	ActionEcho   Action = "echo"
)

// Message represents a protocol message
type Message struct {
	Kind   MessageKind `json:"kind"`
	Action Action      `json:"action,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// DecodeData converts the loosely typed Data payload into v.
func (m *Message) DecodeData(v interface{}) error {
	if m == nil || m.Data == nil {
		return fmt.Errorf("message data is empty")
	}
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return fmt.Errorf("failed to encode message data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode message data: %w", err)
	}
	return nil
}

// AgentInfo contains information about an agent
type AgentInfo struct {
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	Model          string  `json:"model,omitempty"`
	CanCall        bool    `json:"can_call_tools"`
	Endpoint       string  `json:"endpoint,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
}

// ToolInfo contains information about a tool
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

// ToolParameter describes one tool argument
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolCall asks the gateway to run a tool on behalf of an agent
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Agent     string          `json:"agent"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the plain-text outcome of a tool call
type ToolResult struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}
