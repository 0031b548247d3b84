package domain

// ChatMessage is the provider-agnostic chat message shape used by the
// translation prompts and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelParams carries the sampling parameters sent with a completion request.
type ModelParams struct {
	Temperature float64
	MaxTokens   int
}
