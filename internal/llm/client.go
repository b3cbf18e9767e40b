// Package llm holds the chat-completion clients the orchestrator calls and
// the classification of their per-attempt failures.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is the message list built for one scenario. It is never modified
// after construction.
type Prompt struct {
	Messages []Message
}

// NewPrompt builds a system+user prompt, omitting an empty system message.
func NewPrompt(system, user string) Prompt {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})
	return Prompt{Messages: msgs}
}

type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
	TopP        float32
}

type CompletionResponse struct {
	Content     string
	TotalTokens int
	Model       string
}

// Completer performs one chat-completion call. Failures are returned as
// *AttemptError so callers can decide whether to retry.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
