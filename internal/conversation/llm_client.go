package conversation

import "context"

// Chat roles understood by every LLM backend.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is a single turn sent to an LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest is one fallback completion: the sales prompt plus the user's text.
type LLMRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int32
	Temperature  float32
}

// LLMResponse carries the reply and enough metadata to log which backend
// answered and whether the reply was cut short.
type LLMResponse struct {
	Text         string
	Provider     string
	FinishReason string
	Tokens       int
}

// Truncated reports whether the backend stopped at the token limit.
func (r LLMResponse) Truncated() bool {
	switch r.FinishReason {
	case "length", "MAX_TOKENS", "FinishReasonMaxTokens":
		return true
	}
	return false
}

// LLMClient completes a chat request.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// userTurn builds the single-turn conversation the responder sends.
func userTurn(text string) []ChatMessage {
	return []ChatMessage{{Role: ChatRoleUser, Content: text}}
}
