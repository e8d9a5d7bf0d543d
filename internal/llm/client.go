// Package llm is the language-model collaborator: role-tagged history in,
// text out, with failures classified so callers can tell a retryable
// provider hiccup from rejected credentials.
package llm

import (
	"context"
	"time"
)

// Roles accepted in a Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a prompt.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion call. A zero Timeout means the call is
// bounded only by ctx.
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client completes a prompt. Errors returned by implementations are either
// *AuthenticationError or *TransientError.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
