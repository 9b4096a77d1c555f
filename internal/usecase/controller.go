package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

// ErrQuestionLimit is returned once the configured question cap is reached.
var ErrQuestionLimit = errors.New("interview question limit reached")

// Config controls interview pacing and transcription streaming.
type Config struct {
	Countdown    time.Duration
	MaxQuestions int
	Streaming    ports.StreamingConfig
}

// StartRequest carries everything needed to open a new interview.
type StartRequest struct {
	ResumeSummary string
	Role          string
	Language      domain.Language
	Difficulty    domain.Difficulty
}

// IssuedQuestion is returned by NextQuestion.
type IssuedQuestion struct {
	Number   int    `json:"number"`
	Question string `json:"question"`
}

// voiceSession bundles the per-session interaction state: the state machine,
// the answer buffer it feeds, and an optional server-side transcription
// stream.
type voiceSession struct {
	coordinator *VoiceCoordinator
	answers     *AnswerBuilder
	guard       *TranscriptionGuard

	mu             sync.Mutex
	stream         ports.StreamingSession
	streamDone     chan struct{}
	streamStarting bool
}

// InterviewController orchestrates interview sessions end to end: question
// sequencing, speech-driven answer capture, evaluation and reporting.
type InterviewController struct {
	store       *SessionStore
	questions   ports.QuestionGenerator
	summaries   ports.SummaryGenerator
	transcriber ports.TranscriptionProvider
	reporter    ports.ReportRenderer
	events      ports.EventSink
	cfg         Config

	mu     sync.Mutex
	voices map[string]*voiceSession
}

func NewInterviewController(
	store *SessionStore,
	questions ports.QuestionGenerator,
	summaries ports.SummaryGenerator,
	transcriber ports.TranscriptionProvider,
	reporter ports.ReportRenderer,
	events ports.EventSink,
	cfg Config,
) *InterviewController {
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultCountdown
	}
	return &InterviewController{
		store:       store,
		questions:   questions,
		summaries:   summaries,
		transcriber: transcriber,
		reporter:    reporter,
		events:      events,
		cfg:         cfg,
		voices:      make(map[string]*voiceSession),
	}
}

// StartInterview opens a session and its voice coordinator.
func (c *InterviewController) StartInterview(req StartRequest) (domain.InterviewSession, error) {
	if !req.Difficulty.Valid() {
		return domain.InterviewSession{}, fmt.Errorf("unknown difficulty %q", req.Difficulty)
	}
	if req.Role == "" {
		return domain.InterviewSession{}, errors.New("role is required")
	}
	if req.Language == "" {
		req.Language = domain.LanguageEnglish
	}

	session := c.store.Create(req.Role, req.Language, req.Difficulty, req.ResumeSummary)

	answers := NewAnswerBuilder()
	vs := &voiceSession{
		answers: answers,
		guard:   NewTranscriptionGuard(session.ID, answers, c.events),
	}
	vs.coordinator = NewVoiceCoordinator(
		session.ID,
		c.cfg.Countdown,
		c.events,
		func() (int, error) { return c.store.ActiveQuestion(session.ID) },
		func(recording *RecordingContext) { c.submitRecorded(session.ID, recording) },
	)

	c.mu.Lock()
	c.voices[session.ID] = vs
	c.mu.Unlock()

	vs.coordinator.Start()
	return session, nil
}

// NextQuestion generates and issues the next question. Opening the new
// exchange resets the answer buffer and re-arms the voice coordinator, which
// invalidates every recording context issued for earlier questions.
func (c *InterviewController) NextQuestion(ctx context.Context, sessionID string) (IssuedQuestion, error) {
	vs, err := c.voice(sessionID)
	if err != nil {
		return IssuedQuestion{}, err
	}
	session, err := c.store.Get(sessionID)
	if err != nil {
		return IssuedQuestion{}, err
	}
	if c.cfg.MaxQuestions > 0 && len(session.Exchanges) >= c.cfg.MaxQuestions {
		return IssuedQuestion{}, ErrQuestionLimit
	}

	question, err := c.questions.GenerateQuestion(ctx, ports.QuestionRequest{
		ResumeSummary: session.ResumeSummary,
		Role:          session.Role,
		Language:      session.Language,
		Difficulty:    session.Difficulty,
		History:       session.History(),
	})
	if err != nil {
		c.events.SessionError(sessionID, domain.ErrorCodeQuestion, err.Error())
		return IssuedQuestion{}, fmt.Errorf("question generation failed: %w", err)
	}

	number, err := c.store.AdvanceQuestion(sessionID, question)
	if err != nil {
		return IssuedQuestion{}, err
	}

	vs.answers.Reset()
	vs.coordinator.Arm()
	c.events.QuestionIssued(sessionID, number, question)
	return IssuedQuestion{Number: number, Question: question}, nil
}

// SpeechStarted reports a speech boundary from the frontend and returns the
// recording tag the caller must attach to transcription results from this
// recording attempt.
func (c *InterviewController) SpeechStarted(sessionID string) (int, error) {
	vs, err := c.voice(sessionID)
	if err != nil {
		return 0, err
	}
	if err := vs.coordinator.OnSpeechStart(); err != nil {
		return 0, err
	}
	recording := vs.coordinator.Recording()
	if recording == nil {
		return 0, ErrNotRecording
	}
	return recording.Tag(), nil
}

// SpeechEnded arms the auto-submit countdown.
func (c *InterviewController) SpeechEnded(sessionID string) error {
	vs, err := c.voice(sessionID)
	if err != nil {
		return err
	}
	vs.coordinator.OnSpeechEnd()
	return nil
}

// ForceSubmit submits the recorded answer without waiting for the countdown.
func (c *InterviewController) ForceSubmit(sessionID string) error {
	vs, err := c.voice(sessionID)
	if err != nil {
		return err
	}
	return vs.coordinator.ForceSubmit()
}

// AcceptTranscript feeds one transcription result through the staleness
// guard. The tag identifies the recording attempt the result belongs to; the
// result is committed only if that recording still matches the session's
// active question at this moment.
func (c *InterviewController) AcceptTranscript(sessionID string, event domain.TranscriptEvent, tag int) (bool, error) {
	vs, err := c.voice(sessionID)
	if err != nil {
		return false, err
	}
	active, err := c.store.ActiveQuestion(sessionID)
	if err != nil {
		return false, err
	}

	recording := vs.coordinator.Recording()
	if recording == nil || recording.Tag() != tag {
		// The recording this result belongs to is gone: the question advanced
		// or voice capture stopped. Expected with out-of-order delivery.
		c.events.FragmentDiscarded(sessionID, tag, active)
		return false, nil
	}
	return vs.guard.Accept(event, recording, active), nil
}

// SubmitTypedAnswer handles the non-voice path: the answer is normalized and
// submitted directly, bypassing the coordinator.
func (c *InterviewController) SubmitTypedAnswer(ctx context.Context, sessionID string, answer string) (domain.QAExchange, error) {
	if _, err := c.voice(sessionID); err != nil {
		return domain.QAExchange{}, err
	}
	exchange, err := c.store.SubmitAnswer(ctx, sessionID, NormalizeFragment(answer))
	if err != nil {
		return domain.QAExchange{}, err
	}
	difficulty, _ := c.store.Difficulty(sessionID)
	c.events.AnswerEvaluated(sessionID, exchange, difficulty)
	return exchange, nil
}

// StopVoice parks the coordinator at Idle, dropping any pending countdown and
// unfinalized recording.
func (c *InterviewController) StopVoice(sessionID string) error {
	vs, err := c.voice(sessionID)
	if err != nil {
		return err
	}
	c.closeStream(vs)
	vs.coordinator.Stop()
	return nil
}

// Status reports the session's current state.
func (c *InterviewController) Status(sessionID string) (domain.Status, error) {
	vs, err := c.voice(sessionID)
	if err != nil {
		return domain.Status{}, err
	}
	session, err := c.store.Get(sessionID)
	if err != nil {
		return domain.Status{}, err
	}
	state := vs.coordinator.State()
	return domain.Status{
		SessionID:      sessionID,
		State:          state,
		ActiveQuestion: session.ActiveQuestion,
		Difficulty:     session.Difficulty,
		Active:         state != domain.VoiceStateIdle,
	}, nil
}

// EndInterview generates the overall summary, renders the report and tears
// the session down. It fails if no exchange was completed.
func (c *InterviewController) EndInterview(ctx context.Context, sessionID string) (domain.Report, []byte, error) {
	vs, err := c.voice(sessionID)
	if err != nil {
		return domain.Report{}, nil, err
	}
	session, err := c.store.Get(sessionID)
	if err != nil {
		return domain.Report{}, nil, err
	}
	history := session.History()
	if len(history) == 0 {
		return domain.Report{}, nil, errors.New("no completed exchanges to report")
	}

	summary, err := c.summaries.GenerateSummary(ctx, session.Role, history)
	if err != nil {
		c.events.SessionError(sessionID, domain.ErrorCodeReport, err.Error())
		return domain.Report{}, nil, fmt.Errorf("summary generation failed: %w", err)
	}

	average := session.AverageRating()
	report := domain.Report{
		Role:           session.Role,
		Difficulty:     session.Difficulty,
		Language:       session.Language,
		GeneratedAt:    time.Now(),
		NumQuestions:   len(history),
		AverageRating:  average,
		Assessment:     domain.Assessment(average),
		History:        history,
		OverallSummary: summary,
	}

	document, err := c.reporter.Render(report)
	if err != nil {
		c.events.SessionError(sessionID, domain.ErrorCodeReport, err.Error())
		return domain.Report{}, nil, fmt.Errorf("report rendering failed: %w", err)
	}

	c.teardown(sessionID, vs)
	c.events.VoiceStateChanged(sessionID, domain.VoiceStateIdle, domain.ReasonSessionEnded)
	return report, document, nil
}

// AbortInterview terminates the session without a report.
func (c *InterviewController) AbortInterview(sessionID string) error {
	vs, err := c.voice(sessionID)
	if err != nil {
		return err
	}
	c.teardown(sessionID, vs)
	c.events.VoiceStateChanged(sessionID, domain.VoiceStateIdle, domain.ReasonSessionEnded)
	return nil
}

// submitRecorded is the coordinator's submit callback. The store resolves the
// at-most-one-submit invariant: a duplicate request for an already-closed
// question comes back as ErrInvalidState and is treated as a no-op.
func (c *InterviewController) submitRecorded(sessionID string, recording *RecordingContext) {
	vs, err := c.voice(sessionID)
	if err != nil {
		return
	}

	active, err := c.store.ActiveQuestion(sessionID)
	if err != nil {
		c.events.SessionError(sessionID, domain.ErrorCodeSession, err.Error())
		vs.coordinator.FinishSubmit(false)
		return
	}
	if recording.Tag() != active {
		// The session advanced while the submit was in flight; nothing to do.
		vs.coordinator.FinishSubmit(true)
		return
	}

	exchange, err := c.store.SubmitAnswer(context.Background(), sessionID, vs.answers.Answer())
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			vs.coordinator.FinishSubmit(true)
			return
		}
		c.events.SessionError(sessionID, domain.ErrorCodeEvaluation, err.Error())
		vs.coordinator.FinishSubmit(false)
		return
	}

	difficulty, _ := c.store.Difficulty(sessionID)
	c.events.AnswerEvaluated(sessionID, exchange, difficulty)
	vs.coordinator.FinishSubmit(true)
}

func (c *InterviewController) voice(sessionID string) (*voiceSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vs, ok := c.voices[sessionID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return vs, nil
}

func (c *InterviewController) teardown(sessionID string, vs *voiceSession) {
	c.closeStream(vs)
	vs.coordinator.Stop()
	c.store.Remove(sessionID)
	c.mu.Lock()
	delete(c.voices, sessionID)
	c.mu.Unlock()
}
