// Package llm provides the agent runtime behind the run coordinator: an LLM
// conversation that exposes exactly one callable tool (search) and advances
// in discrete steps so budget and deadline checks can be inserted between
// every step.
package llm

import (
	"context"
	"errors"
	"time"
)

// TimeoutLLMCall bounds every LLM API call.
const TimeoutLLMCall = 60 * time.Second

// ErrRuntime wraps agent runtime failures. Infrastructure, not policy: the
// coordinator reports it as Failed, never as Rejected.
var ErrRuntime = errors.New("agent runtime failure")

// SearchToolName is the single tool the runtime exposes to the model.
const SearchToolName = "search"

// ToolCall is a search request emitted by the agent during a step.
type ToolCall struct {
	ID    string
	Query string
}

// ToolResult is the mediated outcome of one tool call, fed back into the
// conversation. Content is either serialized search results or a structured
// refusal the agent can reason about.
type ToolResult struct {
	ID      string
	Content string
}

// Step is one discrete advance of the agent: either tool calls to mediate
// or the final report text, never both.
type Step struct {
	FinalText  string
	ToolCalls  []ToolCall
	TokensUsed int
}

// Conversation is one agent run's dialogue state. Not safe for concurrent
// use; the coordinator drives it strictly sequentially.
type Conversation interface {
	// Step advances the agent by one reasoning turn. results carries the
	// outcomes of the previous step's tool calls; nil on the first call.
	Step(ctx context.Context, results []ToolResult) (*Step, error)
}

// Runtime creates conversations. One Runtime serves all runs.
type Runtime interface {
	NewConversation(systemPrompt, userPrompt string) Conversation
}
