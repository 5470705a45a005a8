package interview

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
)

const (
	reportTokens  = 2500
	reportTitle   = "Interview Feedback"
	apologyReport = "# Interview Report\n\nWe are sorry: the feedback report could not be generated this time. The interview itself completed normally."
)

// conclude compiles the feedback notes into the terminal report. It runs
// exactly once; a completion failure yields a minimal apology report and
// a rendering failure falls back to the raw Markdown bytes. Neither is
// retried and neither blocks the terminal turn.
func (e *Engine) conclude(ctx context.Context, st State) (State, Reply) {
	notes := "Role: " + st.Role + "\n" + strings.Join(st.FeedbackNotes, "\n")

	markdown, err := e.completer.Complete(ctx, []ai.Message{{
		Role:    ai.RoleUser,
		Content: buildFeedbackPrompt(notes),
	}}, ai.CompleteOptions{
		MaxTokens:   reportTokens,
		Temperature: 0.7,
	})
	if err != nil || strings.TrimSpace(markdown) == "" {
		e.logger.Warn("report generation failed, using minimal report", zap.Error(err))
		markdown = apologyReport
	}

	markdown = stripPreamble(markdown)

	doc := e.render(markdown, st.Role)

	st.Report = doc

	return st, Reply{
		Text:          conclusionMessage,
		Type:          MessageReport,
		Report:        doc,
		QuestionCount: st.QuestionCount,
		MaxQuestions:  e.cfg.MaxQuestions,
		Topic:         st.CurrentTopic,
	}
}

func (e *Engine) render(markdown, role string) []byte {
	if e.renderer == nil {
		return []byte(markdown)
	}

	doc, err := e.renderer.RenderDocument(markdown, reportTitle, "Role: "+role)
	if err != nil || len(doc) == 0 {
		e.logger.Warn("report rendering failed, returning raw markdown", zap.Error(err))
		return []byte(markdown)
	}

	return doc
}

// stripPreamble drops a leading "Here is ...:" line some models insist on.
func stripPreamble(report string) string {
	if !strings.Contains(report, "Here is") {
		return report
	}

	if idx := strings.Index(report, ":"); idx != -1 {
		return strings.TrimSpace(report[idx+1:])
	}

	return report
}
