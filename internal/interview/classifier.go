package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
	"github.com/spigell/interview-trainer/internal/logger"
)

// Intent is the relevance verdict for a user utterance.
type Intent string

const (
	IntentValid    Intent = "VALID"
	IntentOffTopic Intent = "OFF_TOPIC"
)

// minIntentLength is the utterance length below which classification is
// skipped; short acknowledgements are not worth a model call.
const minIntentLength = 5

// Analysis is the assessment of a single question/answer pair.
// Analyzed is false when the model call failed or returned unparsable
// output; the zero value is the degraded, fail-open result.
type Analysis struct {
	Rating     string
	Feedback   string
	Struggling bool
	Probe      bool
	Analyzed   bool
}

// Classifier wraps a Completer for intent and answer-depth classification.
// Every failure degrades to a permissive default so a transient model
// error never blocks the interview.
type Classifier struct {
	completer ai.Completer
	logger    *zap.Logger
	maxLogLen int
}

func NewClassifier(completer ai.Completer, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}

	return &Classifier{
		completer: completer,
		logger:    log,
		maxLogLen: 200,
	}
}

// ShouldClassify reports whether the utterance is long enough to be worth
// an intent check.
func ShouldClassify(utterance string) bool {
	return len(utterance) > minIntentLength
}

// CheckIntent classifies the last user utterance as relevant or off-topic.
// Failures are treated as VALID.
func (c *Classifier) CheckIntent(ctx context.Context, utterance string) Intent {
	prompt := buildIntentPrompt(utterance)

	raw, err := c.completer.Complete(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}}, ai.CompleteOptions{
		MaxTokens:   10,
		Temperature: 0.1,
	})
	if err != nil {
		c.logger.Debug("intent check failed, assuming valid", zap.Error(err))
		return IntentValid
	}

	c.logger.Debug("intent check response",
		zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
	)

	if strings.Contains(strings.ToUpper(raw), string(IntentOffTopic)) {
		return IntentOffTopic
	}

	return IntentValid
}

// Analyze rates the answer to the previous question for the configured
// difficulty. The model is expected to return JSON; code fences are
// stripped and value types coerced defensively. Any failure yields the
// degraded zero Analysis.
func (c *Classifier) Analyze(ctx context.Context, question, answer string, difficulty Level) Analysis {
	prompt := buildAnalyzerPrompt(question, answer, difficulty)

	raw, err := c.completer.Complete(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}}, ai.CompleteOptions{
		MaxTokens:   150,
		Temperature: 0.3,
	})
	if err != nil {
		c.logger.Debug("answer analysis failed", zap.Error(err))
		return Analysis{}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		c.logger.Debug("answer analysis returned unparsable output",
			zap.Error(err),
			zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
		)
		return Analysis{}
	}

	return Analysis{
		Rating:     coerceString(data["rating"]),
		Feedback:   coerceString(data["feedback"]),
		Struggling: coerceBool(data["is_struggling"]),
		Probe:      coerceBool(data["should_probe"]),
		Analyzed:   true,
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
