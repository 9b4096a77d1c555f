package ports

import (
	"context"

	"prepmic/internal/domain"
)

// QuestionRequest carries the context needed to generate the next question.
type QuestionRequest struct {
	ResumeSummary string
	Role          string
	Language      domain.Language
	Difficulty    domain.Difficulty
	History       []domain.QAExchange
}

// QuestionGenerator produces the next interview question.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, req QuestionRequest) (string, error)
}

// EvaluationRequest carries one answered question for scoring.
type EvaluationRequest struct {
	Question   string
	Answer     string
	Language   domain.Language
	Difficulty domain.Difficulty
}

// AnswerEvaluator scores an answer and returns structured feedback.
type AnswerEvaluator interface {
	EvaluateAnswer(ctx context.Context, req EvaluationRequest) (domain.Evaluation, error)
}

// SummaryGenerator produces the overall performance summary for a finished
// interview.
type SummaryGenerator interface {
	GenerateSummary(ctx context.Context, role string, history []domain.QAExchange) (string, error)
}

// ResumeSummarizer condenses raw resume text into a short summary. Text
// extraction from the source document is the caller's problem.
type ResumeSummarizer interface {
	SummarizeResume(ctx context.Context, resumeText string) (string, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       domain.Language
	InterimResults bool
}

// StreamingSession is an active streaming transcription session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// ReportRenderer turns a finished interview into a downloadable document.
type ReportRenderer interface {
	Render(report domain.Report) ([]byte, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	VoiceStateChanged(sessionID string, state domain.VoiceState, reason domain.StateReason)
	QuestionIssued(sessionID string, number int, question string)
	PartialTranscript(sessionID string, text string)
	FragmentDiscarded(sessionID string, fragmentTag int, activeQuestion int)
	AnswerEvaluated(sessionID string, exchange domain.QAExchange, nextDifficulty domain.Difficulty)
	SessionError(sessionID string, code domain.ErrorCode, detail string)
}
