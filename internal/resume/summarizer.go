package resume

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100

	chunkTokens   = 300
	combineTokens = 400

	chunkPromptFormat = "Summarize the following resume excerpt in 3-4 sentences. " +
		"Keep concrete skills, technologies, companies and project names.\n\n%s"

	combinePromptFormat = "Combine the following partial resume summaries into one " +
		"coherent summary of at most 6 sentences. Do not invent facts.\n\n%s"
)

// Summarizer condenses raw resume text into a short summary that fits
// into interview prompts. Long resumes are split into overlapping chunks,
// summarized chunk by chunk and then combined.
type Summarizer struct {
	completer ai.Completer
	logger    *zap.Logger
}

func NewSummarizer(completer ai.Completer, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Summarizer{completer: completer, logger: logger}
}

// Summarize returns a compact summary of the resume text. Empty input
// yields an empty summary and no error.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	chunks := splitChunks(text, chunkSize, chunkOverlap)

	s.logger.Debug("summarizing resume", zap.Int("chunks", len(chunks)))

	if len(chunks) == 1 {
		return s.summarizeChunk(ctx, chunks[0])
	}

	partials := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		summary, err := s.summarizeChunk(ctx, chunk)
		if err != nil {
			return "", fmt.Errorf("summarizing resume chunk %d: %w", i+1, err)
		}
		partials = append(partials, summary)
	}

	return s.combine(ctx, partials)
}

func (s *Summarizer) summarizeChunk(ctx context.Context, chunk string) (string, error) {
	messages := []ai.Message{
		{Role: ai.RoleUser, Content: fmt.Sprintf(chunkPromptFormat, chunk)},
	}

	out, err := s.completer.Complete(ctx, messages, ai.CompleteOptions{
		MaxTokens:   chunkTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

func (s *Summarizer) combine(ctx context.Context, partials []string) (string, error) {
	messages := []ai.Message{
		{Role: ai.RoleUser, Content: fmt.Sprintf(combinePromptFormat, strings.Join(partials, "\n\n"))},
	}

	out, err := s.completer.Complete(ctx, messages, ai.CompleteOptions{
		MaxTokens:   combineTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("combining resume summaries: %w", err)
	}

	return strings.TrimSpace(out), nil
}

// splitChunks breaks text into rune chunks of at most size runes with the
// given overlap. Boundaries snap to the nearest preceding paragraph or
// line break within the chunk when one exists, so sections stay intact.
func splitChunks(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string

	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := end
		if idx := lastBreak(runes[start:end]); idx > size/2 {
			cut = start + idx
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))

		start = cut - overlap
		if start < 0 {
			start = 0
		}
	}

	return chunks
}

// lastBreak returns the index just past the last paragraph break in the
// window, falling back to the last line break, or -1 if there is none.
func lastBreak(window []rune) int {
	s := string(window)

	if idx := strings.LastIndex(s, "\n\n"); idx >= 0 {
		return len([]rune(s[:idx+2]))
	}

	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		return len([]rune(s[:idx+1]))
	}

	return -1
}
