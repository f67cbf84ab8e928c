// Package remote provides the collaborator stub spec §6/§9 describe: a
// node that dispatches an opaque call to an external system over an
// injected Transport, producing REMOTE_* FlowErrors on failure and
// recording successful dispatches via flowmesh.StateStore.SaveRemoteBinding.
//
// Adapted from the teacher's llm package (ClaudeCLI, CompletionRequest/
// Response, TokenUsage), generalized from "LLM completion over a CLI
// subprocess" to "opaque remote call over an injected transport" — the
// concrete Claude-CLI subprocess transport and its llmkit dependency are
// dropped (spec.md keeps LLM provider adapters out of core scope), but the
// request/response/usage/duration shape survives unchanged.
package remote

import (
	"context"
	"encoding/json"
	"time"
)

// Role identifies a Turn's sender, carried over from the teacher's
// llm.Role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Turn is one conversation turn in a Request, carried over from the
// teacher's llm.Message (renamed to avoid colliding with flowmesh.Message).
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Tool describes a callable tool a remote collaborator may invoke,
// carried over from the teacher's llm.Tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is the opaque call dispatched to a Transport.
type Request struct {
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Turns        []Turn         `json:"turns"`
	Target       string         `json:"target,omitempty"` // e.g. model name or endpoint ID
	MaxTokens    int            `json:"max_tokens,omitempty"`
	Temperature  float64        `json:"temperature,omitempty"`
	Tools        []Tool         `json:"tools,omitempty"`
	Options      map[string]any `json:"options,omitempty"`
}

// ToolCall is a tool invocation requested by the remote collaborator,
// carried over from the teacher's llm.ToolCall.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Usage tracks consumption for a Response, carried over from the teacher's
// llm.TokenUsage.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Response is a Transport's successful result.
type Response struct {
	Content      string        `json:"content"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	Usage        Usage         `json:"usage"`
	Target       string        `json:"target"`
	FinishReason string        `json:"finish_reason"`
	Duration     time.Duration `json:"duration"`
}

// Transport dispatches one Request to an external collaborator. A caller
// passes a concrete Transport (an HTTP client, a gRPC stub, a test double)
// directly to NewNode.
type Transport interface {
	Call(ctx context.Context, req Request) (Response, error)
}
