package interview

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
	"github.com/spigell/interview-trainer/internal/logger"
)

const (
	greetingMessage   = "Hello! I am your AI Interviewer. What role are you applying for?"
	levelMessage      = "Choose your difficulty: Easy, Medium, or Hard."
	offTopicMessage   = "Let's stay focused on the interview. Please answer the previous question."
	conclusionMessage = "Interview complete. Here is your report."
	fallbackQuestion  = "Could you elaborate?"

	hintKeyword = "hint"

	// Transcript turns included as generation context.
	generationWindow = 4
	questionTokens   = 60
)

// Stop sequences keep the model from hallucinating whole dialogues.
var questionStops = []string{"\n\n", "User:", "Candidate:", "Assistant:"}

// Phase instructions injected into the interviewer prompt.
const (
	phaseFirstProject = "Project Deep-Dive. Ask one specific question about a project from the candidate's intro or resume."
	phaseNewProject   = "Project Experience. Ask about a new, DIFFERENT project mentioned in the resume or intro."
	phaseDeepDive     = "Project Deep-Dive. Go deeper into the project currently being discussed."
	phaseTechnical    = "Core Technical Skills. Ask a fundamental question based on the candidate's role and resume."
	phaseHint         = "Hint. The candidate is struggling or asked for a hint. Provide a brief, conceptual hint about the PREVIOUS question. Do NOT give the answer. End by asking the candidate to try answering again."
)

// Reply is what the engine hands back to the session layer after a turn.
type Reply struct {
	Text   string
	Type   MessageType
	Report []byte

	// Progress information for UI display.
	QuestionCount int
	MaxQuestions  int
	Topic         Topic
}

// Engine is the turn-by-turn interview controller. It never returns an
// error: every external failure degrades to a safe default so the
// interview always moves forward or reaches the report.
type Engine struct {
	completer  ai.Completer
	classifier *Classifier
	renderer   ai.Renderer
	cfg        Config
	logger     *zap.Logger
}

func NewEngine(completer ai.Completer, renderer ai.Renderer, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		completer:  completer,
		classifier: NewClassifier(completer, log),
		renderer:   renderer,
		cfg:        cfg.withDefaults(),
		logger:     log,
	}
}

// Start creates a fresh interview state and the opening prompt.
func (e *Engine) Start(resumeSummary string) (State, Reply) {
	st := NewState(resumeSummary)
	st.appendTurn(SpeakerAssistant, greetingMessage)

	return st, e.reply(st, greetingMessage, MessageQuestion)
}

// HandleTurn consumes one user utterance and advances the interview. The
// updated state supersedes the input state; the caller must not reuse the
// old value.
func (e *Engine) HandleTurn(ctx context.Context, st State, input string) (State, Reply) {
	if st.Finished() {
		return st, Reply{
			Text:          conclusionMessage,
			Type:          MessageReport,
			Report:        st.Report,
			QuestionCount: st.QuestionCount,
			MaxQuestions:  e.cfg.MaxQuestions,
			Topic:         st.CurrentTopic,
		}
	}

	input = strings.TrimSpace(input)

	// An explicit hint request is always honored and never enters the
	// transcript.
	if strings.EqualFold(input, hintKeyword) {
		st.PendingHint = true
	} else {
		switch {
		case st.Role == "" && input != "":
			st.Role = input
		case st.Role != "" && st.Level == "":
			st.Level = parseLevel(input)
		}
		st.appendTurn(SpeakerUser, input)
	}

	switch {
	case st.PendingHint:
		st.PendingHint = false
		return e.interviewTurn(ctx, st, true)
	case st.Role == "":
		return e.askRole(st)
	case st.Level == "":
		return e.askLevel(st)
	case st.QuestionCount == 0:
		return e.intro(st)
	case st.QuestionCount > e.cfg.MaxQuestions:
		return e.conclude(ctx, st)
	default:
		return e.interviewTurn(ctx, st, false)
	}
}

// askRole restarts the interview from scratch; all counters reset.
func (e *Engine) askRole(st State) (State, Reply) {
	st = NewState(st.ResumeSummary)
	st.appendTurn(SpeakerAssistant, greetingMessage)

	return st, e.reply(st, greetingMessage, MessageQuestion)
}

func (e *Engine) askLevel(st State) (State, Reply) {
	st.appendTurn(SpeakerAssistant, levelMessage)

	return st, e.reply(st, levelMessage, MessageQuestion)
}

func (e *Engine) intro(st State) (State, Reply) {
	msg := fmt.Sprintf(
		"Great. Let's begin the %s interview for %s. Please introduce yourself and mention your key projects.",
		st.Level, st.Role,
	)

	st.QuestionCount = 1
	st.appendTurn(SpeakerAssistant, msg)

	return st, e.reply(st, msg, MessageQuestion)
}

// interviewTurn runs the off-topic check, answer analysis, category
// decision and question generation for one substantive turn.
func (e *Engine) interviewTurn(ctx context.Context, st State, hinting bool) (State, Reply) {
	if !hinting {
		if off := e.checkOffTopic(ctx, st); off {
			st.appendTurn(SpeakerAssistant, offTopicMessage)
			return st, e.reply(st, offTopicMessage, MessageHint)
		}
	}

	struggling := false
	if !hinting {
		st, struggling = e.analyzeLastAnswer(ctx, st)
	}

	messageType := MessageQuestion
	increment := 1
	topic := st.CurrentTopic
	var phase string

	switch {
	case hinting || (struggling && st.ConsecutiveStruggles >= 2):
		phase = phaseHint
		messageType = MessageHint
		increment = 0
		st.ConsecutiveStruggles = 0
	case st.QuestionCount == 2:
		// The first real question always targets a resume project.
		phase = phaseFirstProject
		topic = TopicProject
	case st.ProjectCount < e.cfg.projectTarget():
		if struggling {
			phase = phaseDeepDive
		} else {
			phase = phaseNewProject
		}
		topic = TopicProject
	case st.TechnicalCount < e.cfg.technicalTarget():
		phase = phaseTechnical
		topic = TopicTechnical
	default:
		phase = fmt.Sprintf("Follow-up. Ask a relevant technical follow-up question for a %s.", st.Role)
		topic = TopicFollowup
	}

	text := e.generateQuestion(ctx, st, phase)

	if messageType == MessageQuestion {
		switch topic {
		case TopicProject:
			st.ProjectCount++
		case TopicTechnical:
			st.TechnicalCount++
		case TopicFollowup:
			st.FollowupCount++
		}
	}

	st.QuestionCount += increment
	st.LastTopic = st.CurrentTopic
	st.CurrentTopic = topic
	st.appendTurn(SpeakerAssistant, text)

	return st, e.reply(st, text, messageType)
}

// checkOffTopic classifies the latest user utterance when it is long
// enough to be worth a model call.
func (e *Engine) checkOffTopic(ctx context.Context, st State) bool {
	if len(st.Turns) == 0 {
		return false
	}

	last := st.Turns[len(st.Turns)-1]
	if last.Speaker != SpeakerUser || !ShouldClassify(last.Text) {
		return false
	}

	return e.classifier.CheckIntent(ctx, last.Text) == IntentOffTopic
}

// analyzeLastAnswer rates the previous Q/A pair and records a feedback
// note. The intro answer (while questionCount <= 2) is logged but not
// analyzed. Returns the updated state and the struggle signal.
func (e *Engine) analyzeLastAnswer(ctx context.Context, st State) (State, bool) {
	if len(st.Turns) < 2 || st.QuestionCount <= 1 {
		return st, false
	}

	lastQuestion := st.Turns[len(st.Turns)-2].Text
	lastAnswer := st.Turns[len(st.Turns)-1].Text

	if st.QuestionCount <= 2 || strings.Contains(strings.ToLower(lastQuestion), "introduce") {
		st.FeedbackNotes = append(st.FeedbackNotes, "Intro: "+lastAnswer)
		return st, false
	}

	anl := e.classifier.Analyze(ctx, lastQuestion, lastAnswer, st.Level)
	if !anl.Analyzed {
		// Analysis failure must never stop progress; keep the raw pair.
		st.FeedbackNotes = append(st.FeedbackNotes, fmt.Sprintf("Q: %s\nA: %s", lastQuestion, lastAnswer))
		return st, false
	}

	if anl.Struggling {
		st.ConsecutiveStruggles++
	} else {
		st.ConsecutiveStruggles = 0
	}

	st.FeedbackNotes = append(st.FeedbackNotes,
		fmt.Sprintf("Q: %s\nA: %s\nRating: %s", lastQuestion, lastAnswer, anl.Rating))

	return st, anl.Struggling
}

// generateQuestion produces the next utterance from the last few
// transcript turns plus the phase instruction. Any failure substitutes
// the fixed fallback question.
func (e *Engine) generateQuestion(ctx context.Context, st State, phase string) string {
	resumeContext := st.ResumeSummary
	if strings.TrimSpace(resumeContext) == "" {
		resumeContext = "Not provided"
	}
	fullContext := fmt.Sprintf("Difficulty: %s\nCandidate Resume Summary: %s", st.Level, resumeContext)

	messages := []ai.Message{{
		Role:    ai.RoleSystem,
		Content: buildInterviewerPrompt(st.Role, phase, fullContext),
	}}
	for _, turn := range st.lastTurns(generationWindow) {
		role := ai.RoleUser
		if turn.Speaker == SpeakerAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: turn.Text})
	}

	raw, err := e.completer.Complete(ctx, messages, ai.CompleteOptions{
		MaxTokens:   questionTokens,
		Temperature: 0.7,
		Stop:        questionStops,
	})
	if err != nil || strings.TrimSpace(raw) == "" {
		e.logger.Warn("question generation failed, using fallback", zap.Error(err))
		return fallbackQuestion
	}

	e.logger.Debug("generated question",
		zap.String("phase", logger.TruncateForLog(phase, 40)),
		zap.String("response_preview", logger.TruncateForLog(raw, 200)),
	)

	return Sanitize(raw)
}

func (e *Engine) reply(st State, text string, messageType MessageType) Reply {
	return Reply{
		Text:          text,
		Type:          messageType,
		QuestionCount: st.QuestionCount,
		MaxQuestions:  e.cfg.MaxQuestions,
		Topic:         st.CurrentTopic,
	}
}

// parseLevel maps a free-form difficulty answer onto a level; hard wins
// over easy when both appear, anything else is medium.
func parseLevel(input string) Level {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, string(LevelHard)):
		return LevelHard
	case strings.Contains(lower, string(LevelEasy)):
		return LevelEasy
	default:
		return LevelMedium
	}
}
