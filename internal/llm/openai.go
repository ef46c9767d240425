package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	aivetotel "github.com/aivet-io/aivet/internal/otel"
)

var tracer = aivetotel.Tracer("github.com/aivet-io/aivet/internal/llm")

// OpenAIRuntime implements Runtime over the OpenAI chat completions API.
type OpenAIRuntime struct {
	client *openai.Client
	model  string
	tokens *tokenCounter
}

// NewOpenAIRuntime creates a runtime with the given API key and model.
func NewOpenAIRuntime(apiKey, model string) *OpenAIRuntime {
	return &OpenAIRuntime{
		client: openai.NewClient(apiKey),
		model:  model,
		tokens: newTokenCounter(model),
	}
}

// NewOpenAIRuntimeWithBaseURL creates a runtime pointed at a custom base URL
// (e.g. an httptest mock or an OpenAI-compatible endpoint). baseURL should
// be scheme+host without path.
func NewOpenAIRuntimeWithBaseURL(apiKey, baseURL, model string) *OpenAIRuntime {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"
	return &OpenAIRuntime{
		client: openai.NewClientWithConfig(config),
		model:  model,
		tokens: newTokenCounter(model),
	}
}

// searchToolDef is the single function tool exposed to the model. Its error
// set and semantics are the search gateway's contract.
var searchToolDef = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        SearchToolName,
		Description: "Web search for compliance evidence about the AI tool under assessment. Returns tiered results (primary/secondary) as JSON.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The compliance-related search query."}
			},
			"required": ["query"]
		}`),
	},
}

// NewConversation starts a conversation with the system and user prompts.
func (r *OpenAIRuntime) NewConversation(systemPrompt, userPrompt string) Conversation {
	return &openAIConversation{
		runtime: r,
		messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
}

type openAIConversation struct {
	runtime  *OpenAIRuntime
	messages []openai.ChatCompletionMessage
}

type searchArgs struct {
	Query string `json:"query"`
}

// Step appends the previous step's tool results and requests the next
// assistant turn.
func (c *openAIConversation) Step(ctx context.Context, results []ToolResult) (*Step, error) {
	ctx, span := tracer.Start(ctx, "gen_ai.step",
		trace.WithAttributes(
			attribute.String("gen_ai.system", "openai"),
			attribute.String("gen_ai.request.model", c.runtime.model),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, TimeoutLLMCall)
	defer cancel()

	for _, res := range results {
		c.messages = append(c.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: res.ID,
			Content:    res.Content,
		})
	}

	resp, err := c.runtime.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.runtime.model,
		Messages: c.messages,
		Tools:    []openai.Tool{searchToolDef},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("openai api call: %v: %w", err, ErrRuntime)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api call: no choices returned: %w", ErrRuntime)
	}

	msg := resp.Choices[0].Message
	c.messages = append(c.messages, msg)

	step := &Step{TokensUsed: resp.Usage.TotalTokens}
	if step.TokensUsed == 0 {
		step.TokensUsed = c.runtime.tokens.estimateMessages(c.messages)
	}
	span.SetAttributes(attribute.Int("gen_ai.usage.total_tokens", step.TokensUsed))

	if len(msg.ToolCalls) == 0 {
		step.FinalText = msg.Content
		return step, nil
	}

	for _, tc := range msg.ToolCalls {
		if tc.Function.Name != SearchToolName {
			// The model can only be offered one tool; anything else is a
			// runtime fault.
			return nil, fmt.Errorf("unexpected tool %q requested: %w", tc.Function.Name, ErrRuntime)
		}
		var args searchArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("decoding tool arguments: %v: %w", err, ErrRuntime)
		}
		step.ToolCalls = append(step.ToolCalls, ToolCall{ID: tc.ID, Query: args.Query})
	}
	return step, nil
}
