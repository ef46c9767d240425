package llm

import (
	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"
)

// tokenCounter estimates token spend when the API response omits usage
// (some OpenAI-compatible endpoints do). Estimates feed the session token
// budget, so overcounting slightly is preferable to undercounting.
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

// perMessageOverhead approximates the chat framing tokens per message.
const perMessageOverhead = 4

func newTokenCounter(model string) *tokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	}
	return &tokenCounter{enc: enc}
}

func (t *tokenCounter) count(s string) int {
	if t.enc == nil {
		// Rough heuristic when no encoding is available.
		return len(s) / 4
	}
	return len(t.enc.Encode(s, nil, nil))
}

// estimateMessages approximates the total tokens of a conversation turn,
// covering both the prompt side and the latest completion.
func (t *tokenCounter) estimateMessages(messages []openai.ChatCompletionMessage) int {
	total := 0
	for _, m := range messages {
		total += t.count(m.Content) + perMessageOverhead
	}
	return total
}
