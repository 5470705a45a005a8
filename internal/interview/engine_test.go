package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
)

// stubCompleter dispatches on the per-call token budget: 10 intent,
// 150 analysis, 60 generation, 2500 report.
type stubCompleter struct {
	intent      string
	intentErr   error
	analysis    string
	analysisErr error
	question    string
	questionErr error
	report      string
	reportErr   error

	budgets []int
}

func (s *stubCompleter) Complete(_ context.Context, _ []ai.Message, opts ai.CompleteOptions) (string, error) {
	s.budgets = append(s.budgets, opts.MaxTokens)
	switch opts.MaxTokens {
	case 10:
		return s.intent, s.intentErr
	case 150:
		return s.analysis, s.analysisErr
	case 60:
		return s.question, s.questionErr
	case 2500:
		return s.report, s.reportErr
	default:
		return "", errors.New("unexpected token budget")
	}
}

func (s *stubCompleter) called(budget int) int {
	count := 0
	for _, b := range s.budgets {
		if b == budget {
			count++
		}
	}
	return count
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) RenderDocument(markdown, _, _ string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("<html>" + markdown + "</html>"), nil
}

func newTestEngine(stub *stubCompleter) *Engine {
	return NewEngine(stub, stubRenderer{}, Config{}, zap.NewNop())
}

func happyStub() *stubCompleter {
	return &stubCompleter{
		intent:   "VALID",
		analysis: `{"rating": "Good", "feedback": "fine", "is_struggling": false, "should_probe": false}`,
		question: "Tell me about project Alpha?",
		report:   "# Interview Report\n\nSolid candidate.",
	}
}

func TestStartGreetsAndAsksForRole(t *testing.T) {
	e := newTestEngine(happyStub())

	st, reply := e.Start("resume summary")
	if reply.Type != MessageQuestion {
		t.Fatalf("expected question, got %s", reply.Type)
	}

	if !strings.Contains(reply.Text, "What role are you applying for?") {
		t.Fatalf("unexpected greeting: %q", reply.Text)
	}

	if st.Role != "" || st.Level != "" || st.QuestionCount != 0 {
		t.Fatalf("expected pristine state, got %+v", st)
	}

	if st.ResumeSummary != "resume summary" {
		t.Fatalf("resume summary not threaded into state")
	}
}

func TestRoleCaptureAsksForDifficulty(t *testing.T) {
	e := newTestEngine(happyStub())
	st, _ := e.Start("")

	st, reply := e.HandleTurn(context.Background(), st, "Software Engineer")
	if st.Role != "Software Engineer" {
		t.Fatalf("expected role to be captured, got %q", st.Role)
	}

	if !strings.Contains(reply.Text, "difficulty") {
		t.Fatalf("expected difficulty prompt, got %q", reply.Text)
	}
}

func TestLevelCaptureStartsIntro(t *testing.T) {
	e := newTestEngine(happyStub())
	st, _ := e.Start("")
	st, _ = e.HandleTurn(context.Background(), st, "Software Engineer")

	st, reply := e.HandleTurn(context.Background(), st, "let's do Hard")
	if st.Level != LevelHard {
		t.Fatalf("expected hard level, got %q", st.Level)
	}

	if st.QuestionCount != 1 {
		t.Fatalf("expected question count 1 after intro, got %d", st.QuestionCount)
	}

	if !strings.Contains(reply.Text, "hard interview for Software Engineer") {
		t.Fatalf("unexpected intro: %q", reply.Text)
	}

	if !strings.Contains(reply.Text, "introduce yourself") {
		t.Fatalf("intro must ask for an introduction: %q", reply.Text)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"hard":               LevelHard,
		"Easy please":        LevelEasy,
		"something else":     LevelMedium,
		"HARD but also easy": LevelHard,
		"":                   LevelMedium,
	}

	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

// driveToIntro walks a fresh engine through role and level capture.
func driveToIntro(t *testing.T, e *Engine) State {
	t.Helper()

	st, _ := e.Start("Built project Alpha and project Beta.")
	st, _ = e.HandleTurn(context.Background(), st, "Software Engineer")
	st, _ = e.HandleTurn(context.Background(), st, "medium")

	return st
}

func TestFullRunQuestionMix(t *testing.T) {
	stub := happyStub()
	e := newTestEngine(stub)
	st := driveToIntro(t, e)

	var reply Reply
	turns := 0
	for turns = 0; turns < 20; turns++ {
		st, reply = e.HandleTurn(context.Background(), st, "I designed and shipped project Alpha end to end.")
		if reply.Type == MessageReport {
			break
		}
		if reply.Type != MessageQuestion {
			t.Fatalf("unexpected reply type %s on turn %d", reply.Type, turns)
		}
	}

	if reply.Type != MessageReport {
		t.Fatalf("interview never reached the report")
	}

	// Ten substantive answers advance the count from 1 to 11; the
	// eleventh message triggers the report.
	if turns != 10 {
		t.Fatalf("expected report on the 11th answer, got turn index %d", turns)
	}

	if st.ProjectCount != 4 {
		t.Fatalf("expected 4 project questions, got %d", st.ProjectCount)
	}

	if st.TechnicalCount != 5 {
		t.Fatalf("expected 5 technical questions, got %d", st.TechnicalCount)
	}

	if st.FollowupCount != 1 {
		t.Fatalf("expected 1 followup question, got %d", st.FollowupCount)
	}

	if !st.Finished() {
		t.Fatalf("expected terminal state")
	}

	if len(reply.Report) == 0 || !strings.Contains(string(reply.Report), "Solid candidate") {
		t.Fatalf("expected rendered report bytes, got %q", reply.Report)
	}

	if stub.called(2500) != 1 {
		t.Fatalf("report must be generated exactly once, got %d calls", stub.called(2500))
	}
}

func TestTerminalStateIsNoOp(t *testing.T) {
	stub := happyStub()
	e := newTestEngine(stub)

	st := NewState("")
	st.Report = []byte("done")

	before := len(st.Turns)
	st, reply := e.HandleTurn(context.Background(), st, "anything")

	if reply.Type != MessageReport || string(reply.Report) != "done" {
		t.Fatalf("expected same report back, got %+v", reply)
	}

	if len(st.Turns) != before {
		t.Fatalf("terminal state must not mutate")
	}

	if stub.called(2500) != 0 {
		t.Fatalf("terminal turn must not regenerate the report")
	}
}

func TestQuestionCountPastMaxProducesReport(t *testing.T) {
	stub := happyStub()
	e := newTestEngine(stub)

	st := NewState("")
	st.Role = "Software Engineer"
	st.Level = LevelMedium
	st.QuestionCount = 11
	st.FeedbackNotes = []string{"Q: q\nA: a\nRating: Good"}

	st, reply := e.HandleTurn(context.Background(), st, "my final answer")
	if reply.Type != MessageReport {
		t.Fatalf("expected report, got %s", reply.Type)
	}

	if len(reply.Report) == 0 {
		t.Fatalf("expected non-empty report bytes")
	}

	if !st.Finished() {
		t.Fatalf("expected report to be stored in state")
	}

	st, again := e.HandleTurn(context.Background(), st, "hello?")
	if again.Type != MessageReport || string(again.Report) != string(reply.Report) {
		t.Fatalf("subsequent calls must return the same report")
	}
}

func TestOffTopicDoesNotAdvanceCounters(t *testing.T) {
	stub := happyStub()
	stub.intent = "OFF_TOPIC"
	e := newTestEngine(stub)
	st := driveToIntro(t, e)

	before := st
	st, reply := e.HandleTurn(context.Background(), st, "how about that football game yesterday")

	if reply.Type != MessageHint {
		t.Fatalf("expected redirect hint, got %s", reply.Type)
	}

	if reply.Text != offTopicMessage {
		t.Fatalf("unexpected redirect text: %q", reply.Text)
	}

	if st.QuestionCount != before.QuestionCount {
		t.Fatalf("off-topic input must not advance question count")
	}

	if st.ProjectCount != before.ProjectCount || st.TechnicalCount != before.TechnicalCount || st.FollowupCount != before.FollowupCount {
		t.Fatalf("off-topic input must not advance category counters")
	}
}

func TestShortInputSkipsIntentCheck(t *testing.T) {
	stub := happyStub()
	stub.intent = "OFF_TOPIC" // would redirect if ever consulted
	e := newTestEngine(stub)
	st := driveToIntro(t, e)

	_, reply := e.HandleTurn(context.Background(), st, "ok")
	if reply.Type != MessageQuestion {
		t.Fatalf("short input must not be classified, got %s", reply.Type)
	}

	if stub.called(10) != 0 {
		t.Fatalf("expected no intent call for short input, got %d", stub.called(10))
	}
}

func TestTwoStrugglesForceHintAndReset(t *testing.T) {
	stub := happyStub()
	e := newTestEngine(stub)
	st := driveToIntro(t, e)

	// Advance past the unanalyzed turns (questionCount 1 and 2).
	st, _ = e.HandleTurn(context.Background(), st, "I am a backend engineer, mostly Alpha.")
	st, _ = e.HandleTurn(context.Background(), st, "Alpha is a payments pipeline in Go.")

	stub.analysis = `{"rating": "Needs Improvement", "is_struggling": true, "should_probe": true}`

	st, reply := e.HandleTurn(context.Background(), st, "I am not sure how that part worked.")
	if reply.Type != MessageQuestion {
		t.Fatalf("first struggle must not trigger a hint, got %s", reply.Type)
	}

	if st.ConsecutiveStruggles != 1 {
		t.Fatalf("expected 1 consecutive struggle, got %d", st.ConsecutiveStruggles)
	}

	beforeCount := st.QuestionCount
	st, reply = e.HandleTurn(context.Background(), st, "Honestly I do not remember at all.")
	if reply.Type != MessageHint {
		t.Fatalf("second consecutive struggle must trigger a hint, got %s", reply.Type)
	}

	if st.QuestionCount != beforeCount {
		t.Fatalf("hint must not advance question count")
	}

	if st.ConsecutiveStruggles != 0 {
		t.Fatalf("hint must reset the struggle counter, got %d", st.ConsecutiveStruggles)
	}

	st, reply = e.HandleTurn(context.Background(), st, "Still struggling with this one to be fair.")
	if reply.Type != MessageQuestion {
		t.Fatalf("a single struggle after a hint must not re-trigger a hint, got %s", reply.Type)
	}

	if st.ConsecutiveStruggles != 1 {
		t.Fatalf("expected struggle counter back to 1, got %d", st.ConsecutiveStruggles)
	}
}

func TestExplicitHintRequestAlwaysHonored(t *testing.T) {
	stub := happyStub()
	e := newTestEngine(stub)
	st := driveToIntro(t, e)

	turnsBefore := len(st.Turns)
	countBefore := st.QuestionCount

	st, reply := e.HandleTurn(context.Background(), st, "hint")
	if reply.Type != MessageHint {
		t.Fatalf("expected hint, got %s", reply.Type)
	}

	if st.QuestionCount != countBefore {
		t.Fatalf("hint must not advance question count")
	}

	// The hint keyword itself never enters the transcript; only the
	// assistant hint does.
	if len(st.Turns) != turnsBefore+1 {
		t.Fatalf("expected exactly one new transcript turn, got %d", len(st.Turns)-turnsBefore)
	}

	if st.Turns[len(st.Turns)-1].Speaker != SpeakerAssistant {
		t.Fatalf("expected assistant hint turn")
	}

	if stub.called(10) != 0 || stub.called(150) != 0 {
		t.Fatalf("hint turn must skip classification, got intent=%d analysis=%d", stub.called(10), stub.called(150))
	}

	if st.PendingHint {
		t.Fatalf("pending hint flag must reset after use")
	}
}

func TestGenerationFailureFallsBack(t *testing.T) {
	stub := happyStub()
	stub.questionErr = errors.New("model unavailable")
	e := newTestEngine(stub)
	st := driveToIntro(t, e)

	st, reply := e.HandleTurn(context.Background(), st, "I mostly worked on project Alpha.")
	if reply.Type != MessageQuestion {
		t.Fatalf("expected question, got %s", reply.Type)
	}

	if reply.Text != fallbackQuestion {
		t.Fatalf("expected fallback question, got %q", reply.Text)
	}

	if st.QuestionCount != 2 {
		t.Fatalf("generation failure must not stall progress, got count %d", st.QuestionCount)
	}
}

func TestAnalysisFailureStillRecordsNote(t *testing.T) {
	stub := happyStub()
	e := newTestEngine(stub)
	st := driveToIntro(t, e)

	st, _ = e.HandleTurn(context.Background(), st, "I am a backend engineer, mostly Alpha.")
	st, _ = e.HandleTurn(context.Background(), st, "Alpha is a payments pipeline in Go.")

	stub.analysisErr = errors.New("bad gateway")

	notesBefore := len(st.FeedbackNotes)
	st, reply := e.HandleTurn(context.Background(), st, "It used a write-ahead log for durability.")

	if reply.Type != MessageQuestion {
		t.Fatalf("analysis failure must not stop the interview, got %s", reply.Type)
	}

	if len(st.FeedbackNotes) != notesBefore+1 {
		t.Fatalf("expected raw Q/A note despite analysis failure")
	}

	note := st.FeedbackNotes[len(st.FeedbackNotes)-1]
	if strings.Contains(note, "Rating:") {
		t.Fatalf("degraded note must not carry a rating: %q", note)
	}
}

func TestReportFailureProducesMinimalReport(t *testing.T) {
	stub := happyStub()
	stub.reportErr = errors.New("model down")
	e := newTestEngine(stub)

	st := NewState("")
	st.Role = "SRE"
	st.Level = LevelMedium
	st.QuestionCount = 11

	st, reply := e.HandleTurn(context.Background(), st, "final words")
	if reply.Type != MessageReport {
		t.Fatalf("report failure must still conclude, got %s", reply.Type)
	}

	if !strings.Contains(string(reply.Report), "could not be generated") {
		t.Fatalf("expected apology report, got %q", reply.Report)
	}

	if !st.Finished() {
		t.Fatalf("expected terminal state even on degraded report")
	}
}

func TestRenderFailureFallsBackToMarkdown(t *testing.T) {
	stub := happyStub()
	e := NewEngine(stub, stubRenderer{err: errors.New("no renderer")}, Config{}, zap.NewNop())

	st := NewState("")
	st.Role = "SRE"
	st.Level = LevelMedium
	st.QuestionCount = 11

	_, reply := e.HandleTurn(context.Background(), st, "final words")
	if !strings.Contains(string(reply.Report), "Interview Report") {
		t.Fatalf("expected raw markdown fallback, got %q", reply.Report)
	}
}

func TestStripPreamble(t *testing.T) {
	in := "Here is the report you asked for: # Interview Report\n\nGreat."
	if got := stripPreamble(in); !strings.HasPrefix(got, "# Interview Report") {
		t.Fatalf("expected preamble stripped, got %q", got)
	}

	plain := "# Interview Report\n\nGreat."
	if got := stripPreamble(plain); got != plain {
		t.Fatalf("expected untouched report, got %q", got)
	}
}

func TestConfigTargets(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.MaxQuestions != 10 {
		t.Fatalf("expected default max of 10, got %d", cfg.MaxQuestions)
	}

	if cfg.projectTarget() != 4 {
		t.Fatalf("expected project target 4, got %d", cfg.projectTarget())
	}

	if cfg.technicalTarget() != 5 {
		t.Fatalf("expected technical target 5, got %d", cfg.technicalTarget())
	}

	odd := Config{MaxQuestions: 7, ProjectPercentage: 0.4, TechnicalPercentage: 0.5}
	if odd.projectTarget() != 3 {
		t.Fatalf("ceiling target expected 3, got %d", odd.projectTarget())
	}
}
