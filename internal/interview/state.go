package interview

import "math"

// Level is the interview difficulty chosen by the candidate.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// Topic is the category of the question currently being asked.
type Topic string

const (
	TopicProject   Topic = "project"
	TopicTechnical Topic = "technical"
	TopicFollowup  Topic = "followup"
)

// MessageType classifies an assistant reply for the UI layer.
type MessageType string

const (
	MessageQuestion MessageType = "question"
	MessageHint     MessageType = "hint"
	MessageReport   MessageType = "report"
	MessageStatus   MessageType = "status"
)

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is a single transcript entry.
type Turn struct {
	Speaker Speaker
	Text    string
}

// State is the full record of interview progress. It is passed into
// HandleTurn by value and an updated copy is returned; the caller owns it
// and must serialize turns for the same session. Once Report is set the
// state is terminal and no field changes anymore.
type State struct {
	Role          string
	Level         Level
	ResumeSummary string

	Turns []Turn

	QuestionCount  int
	ProjectCount   int
	TechnicalCount int
	FollowupCount  int

	ConsecutiveStruggles int
	CurrentTopic         Topic
	LastTopic            Topic

	FeedbackNotes []string
	PendingHint   bool

	Report []byte
}

// NewState returns a fresh state with every field at its explicit default.
func NewState(resumeSummary string) State {
	return State{
		ResumeSummary: resumeSummary,
		CurrentTopic:  TopicTechnical,
		Turns:         []Turn{},
		FeedbackNotes: []string{},
	}
}

// Finished reports whether the terminal report has been produced.
func (s State) Finished() bool {
	return len(s.Report) > 0
}

func (s *State) appendTurn(speaker Speaker, text string) {
	s.Turns = append(s.Turns, Turn{Speaker: speaker, Text: text})
}

// lastTurns returns up to n most recent transcript turns.
func (s State) lastTurns(n int) []Turn {
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// Config holds the tunable knobs of the policy engine.
type Config struct {
	MaxQuestions        int
	ProjectPercentage   float64
	TechnicalPercentage float64
}

const (
	defaultMaxQuestions        = 10
	defaultProjectPercentage   = 0.4
	defaultTechnicalPercentage = 0.5
)

func (c Config) withDefaults() Config {
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = defaultMaxQuestions
	}
	if c.ProjectPercentage <= 0 {
		c.ProjectPercentage = defaultProjectPercentage
	}
	if c.TechnicalPercentage <= 0 {
		c.TechnicalPercentage = defaultTechnicalPercentage
	}
	return c
}

// Targets are rounded up independently; followup acts as the overflow
// bucket once the project and technical targets are met.
func (c Config) projectTarget() int {
	return int(math.Ceil(float64(c.MaxQuestions) * c.ProjectPercentage))
}

func (c Config) technicalTarget() int {
	return int(math.Ceil(float64(c.MaxQuestions) * c.TechnicalPercentage))
}
