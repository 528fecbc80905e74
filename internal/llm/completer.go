package llm

import (
	"context"
)

// CompletionRequest is a single system+user prompt exchange.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	JSONMode     bool
}

// Completer is the black-box text completion contract used by retrieval and grading.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*ChatResponse, error)
}

type gatewayCompleter struct {
	gateway Gateway
	model   string
}

// NewCompleter binds a gateway to a model. An empty model uses the gateway default.
func NewCompleter(gw Gateway, model string) Completer {
	return &gatewayCompleter{gateway: gw, model: model}
}

func (c *gatewayCompleter) Complete(ctx context.Context, req CompletionRequest) (*ChatResponse, error) {
	var messages []Message
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: req.UserPrompt})

	return c.gateway.Chat(ctx, ChatRequest{
		Model:    c.model,
		Messages: messages,
		JSONMode: req.JSONMode,
	})
}
