package ai

import (
	"context"
	"errors"
)

// ErrEmptyResult signals that a capability returned nothing usable,
// e.g. inaudible audio or a blank completion.
var ErrEmptyResult = errors.New("empty result")

// Message is a single entry of a chat-style completion request.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompleteOptions carries per-request generation parameters.
// Zero values mean "provider default".
type CompleteOptions struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Completer is the single channel for all LLM-backed decisions:
// intent checks, answer analysis, question generation and report generation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error)
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts text into playable audio. A nil byte slice with a
// nil error means the capability produced no audio for this input.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Renderer produces the final downloadable report document from Markdown.
type Renderer interface {
	RenderDocument(markdown, title, subtitle string) ([]byte, error)
}

// historyLimit is the maximum number of messages sent to a provider
// before capping kicks in.
const historyLimit = 7

// CapHistory bounds the prompt size by keeping the first message plus the
// last six when the history exceeds seven entries. The first message is
// kept because it carries the system instruction.
func CapHistory(messages []Message) []Message {
	if len(messages) <= historyLimit {
		return messages
	}

	capped := make([]Message, 0, historyLimit)
	capped = append(capped, messages[0])
	capped = append(capped, messages[len(messages)-6:]...)

	return capped
}
