package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAPI serves canned chat completion responses in order and records
// the requests it received.
type scriptedAPI struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
}

func (s *scriptedAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		idx := len(s.requests)
		s.requests = append(s.requests, req)
		require.Less(t, idx, len(s.responses), "more API calls than scripted responses")
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(s.responses[idx]))
	}
}

func toolCallResponse(id, query string) openai.ChatCompletionResponse {
	args, _ := json.Marshal(map[string]string{"query": query})
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      SearchToolName,
						Arguments: string(args),
					},
				}},
			},
		}},
		Usage: openai.Usage{TotalTokens: 120},
	}
}

func finalResponse(text string, tokens int) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: text,
			},
		}},
		Usage: openai.Usage{TotalTokens: tokens},
	}
}

func TestStep_ToolCallThenFinalAnswer(t *testing.T) {
	api := &scriptedAPI{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call-1", "Notion AI GDPR compliance"),
		finalResponse("the report", 240),
	}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	rt := NewOpenAIRuntimeWithBaseURL("test-key", srv.URL, "gpt-4o-mini")
	conv := rt.NewConversation(SystemPrompt(), UserPrompt("Notion AI"))

	step, err := conv.Step(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, step.FinalText)
	require.Len(t, step.ToolCalls, 1)
	assert.Equal(t, "call-1", step.ToolCalls[0].ID)
	assert.Equal(t, "Notion AI GDPR compliance", step.ToolCalls[0].Query)
	assert.Equal(t, 120, step.TokensUsed)

	step, err = conv.Step(context.Background(), []ToolResult{
		{ID: "call-1", Content: `[{"title":"t","url":"u"}]`},
	})
	require.NoError(t, err)
	assert.Equal(t, "the report", step.FinalText)
	assert.Empty(t, step.ToolCalls)

	// Second request carries the full transcript: system, user, assistant
	// tool call, and the tool result.
	require.Len(t, api.requests, 2)
	msgs := api.requests[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call-1", msgs[3].ToolCallID)
}

func TestStep_OffersExactlyTheSearchTool(t *testing.T) {
	api := &scriptedAPI{responses: []openai.ChatCompletionResponse{
		finalResponse("done", 50),
	}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	rt := NewOpenAIRuntimeWithBaseURL("test-key", srv.URL, "gpt-4o-mini")
	_, err := rt.NewConversation("sys", "user").Step(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, api.requests[0].Tools, 1)
	assert.Equal(t, SearchToolName, api.requests[0].Tools[0].Function.Name)
}

func TestStep_UnexpectedToolNameIsRuntimeError(t *testing.T) {
	resp := toolCallResponse("call-1", "q")
	resp.Choices[0].Message.ToolCalls[0].Function.Name = "shell_exec"
	api := &scriptedAPI{responses: []openai.ChatCompletionResponse{resp}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	rt := NewOpenAIRuntimeWithBaseURL("test-key", srv.URL, "gpt-4o-mini")
	_, err := rt.NewConversation("sys", "user").Step(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRuntime)
}

func TestStep_APIFailureIsRuntimeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	rt := NewOpenAIRuntimeWithBaseURL("test-key", srv.URL, "gpt-4o-mini")
	_, err := rt.NewConversation("sys", "user").Step(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRuntime)
}

func TestStep_MissingUsageFallsBackToEstimate(t *testing.T) {
	api := &scriptedAPI{responses: []openai.ChatCompletionResponse{
		finalResponse("a short report about the assessed tool", 0),
	}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	rt := NewOpenAIRuntimeWithBaseURL("test-key", srv.URL, "gpt-4o-mini")
	step, err := rt.NewConversation("sys", "user").Step(context.Background(), nil)
	require.NoError(t, err)
	assert.Greater(t, step.TokensUsed, 0)
}
