package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
	"github.com/spigell/interview-trainer/internal/interview"
	"github.com/spigell/interview-trainer/internal/logger"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrNotFinished = errors.New("interview is not finished yet")
)

const couldNotHearMessage = "I couldn't hear you. Could you repeat that?"

// Result is what a single exchange with a session produces: the
// interviewer's reply plus, for voice turns, the transcript of what the
// candidate said and optionally synthesized audio of the reply.
type Result struct {
	Reply      interview.Reply
	Transcript string
	Audio      []byte
}

// Manager owns active interview sessions. Each session serializes its
// own turns, so concurrent requests for the same session never interleave
// state transitions.
type Manager struct {
	engine      *interview.Engine
	transcriber ai.Transcriber
	synthesizer ai.Synthesizer
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	state interview.State
}

func NewManager(engine *interview.Engine, transcriber ai.Transcriber, synthesizer ai.Synthesizer, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}

	return &Manager{
		engine:      engine,
		transcriber: transcriber,
		synthesizer: synthesizer,
		logger:      log,
		sessions:    make(map[string]*session),
	}
}

// Create starts a new interview session and returns its id together with
// the interviewer's greeting.
func (m *Manager) Create(resumeSummary string) (string, interview.Reply) {
	id := uuid.NewString()

	state, reply := m.engine.Start(resumeSummary)

	m.mu.Lock()
	m.sessions[id] = &session{state: state}
	m.mu.Unlock()

	m.logger.Info("session created", zap.String(logger.FieldSession, id))

	return id, reply
}

// Text runs one text exchange against the session.
func (m *Manager) Text(ctx context.Context, id, input string) (Result, error) {
	s, err := m.get(id)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, reply := m.engine.HandleTurn(ctx, s.state, input)
	s.state = state

	return Result{Reply: reply}, nil
}

// Audio transcribes the candidate's speech, runs the exchange, and when a
// synthesizer is configured, speaks the reply back. An empty transcription
// does not advance the interview.
func (m *Manager) Audio(ctx context.Context, id string, audio []byte) (Result, error) {
	s, err := m.get(id)
	if err != nil {
		return Result{}, err
	}

	if m.transcriber == nil {
		return Result{}, fmt.Errorf("speech recognition is not configured")
	}

	transcript, err := m.transcriber.Transcribe(ctx, audio)
	if err != nil && !errors.Is(err, ai.ErrEmptyResult) {
		return Result{}, fmt.Errorf("transcribing audio: %w", err)
	}

	if transcript == "" {
		reply := interview.Reply{Text: couldNotHearMessage, Type: interview.MessageStatus}
		return m.withSpeech(ctx, id, Result{Reply: reply}), nil
	}

	s.mu.Lock()
	state, reply := m.engine.HandleTurn(ctx, s.state, transcript)
	s.state = state
	s.mu.Unlock()

	return m.withSpeech(ctx, id, Result{Reply: reply, Transcript: transcript}), nil
}

// Report returns the rendered report of a finished session.
func (m *Manager) Report(id string) ([]byte, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Finished() || len(s.state.Report) == 0 {
		return nil, ErrNotFinished
	}

	return s.state.Report, nil
}

// Delete drops a session. Unknown ids are ignored.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	return s, nil
}

// withSpeech adds synthesized audio of the reply when a synthesizer is
// configured. Synthesis failures are logged and the text reply stands.
func (m *Manager) withSpeech(ctx context.Context, id string, res Result) Result {
	if m.synthesizer == nil || res.Reply.Text == "" {
		return res
	}

	audio, err := m.synthesizer.Synthesize(ctx, res.Reply.Text)
	if err != nil {
		m.logger.Warn("speech synthesis failed, replying with text only",
			zap.String(logger.FieldSession, id), zap.Error(err))
		return res
	}

	res.Audio = audio

	return res
}
