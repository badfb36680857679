package llm

import "context"

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Sampling is the fixed sampling configuration pinned at process start; it
// never changes for the lifetime of a session.
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
