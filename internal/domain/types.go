package domain

import "time"

// Difficulty is the interview difficulty ladder.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Valid reports whether d is one of the three known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Language selects the interview language mode.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageHinglish Language = "hi"
)

// VoiceState models the per-session speech interaction lifecycle.
type VoiceState string

const (
	VoiceStateIdle             VoiceState = "idle"
	VoiceStateListening        VoiceState = "listening"
	VoiceStateSpeaking         VoiceState = "speaking"
	VoiceStateCountdownPending VoiceState = "countdown_pending"
	VoiceStateSubmitting       VoiceState = "submitting"
)

// StateReason provides a structured reason for voice state transitions.
type StateReason string

const (
	ReasonSessionStarted     StateReason = "session_started"
	ReasonQuestionIssued     StateReason = "question_issued"
	ReasonSpeechStarted      StateReason = "speech_started"
	ReasonCountdownStarted   StateReason = "countdown_started"
	ReasonCountdownCancelled StateReason = "countdown_cancelled"
	ReasonCountdownExpired   StateReason = "countdown_expired"
	ReasonForceSubmitted     StateReason = "force_submitted"
	ReasonAnswerSubmitted    StateReason = "answer_submitted"
	ReasonEvaluationFailed   StateReason = "evaluation_failed"
	ReasonVoiceStopped       StateReason = "voice_stopped"
	ReasonSessionEnded       StateReason = "session_ended"
	ReasonSessionExpired     StateReason = "session_expired"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeQuestion      ErrorCode = "question"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeEvaluation    ErrorCode = "evaluation"
	ErrorCodeReport        ErrorCode = "report"
	ErrorCodeSession       ErrorCode = "session"
)

// TranscriptKind identifies whether a stream event is interim or final text.
type TranscriptKind string

const (
	TranscriptKindInterim TranscriptKind = "interim"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
// Only final events are eligible for answer commit; interim events exist for
// live display.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	Confidence    float64        `json:"confidence"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Evaluation holds the structured verdict for one answer.
type Evaluation struct {
	Rating        float64 `json:"rating"`
	Strengths     string  `json:"strengths"`
	Improvements  string  `json:"improvements"`
	MissingPoints string  `json:"missing_points"`
}

// QAExchange is one question/answer turn. The answer is mutable while the
// exchange is open and frozen once closed.
type QAExchange struct {
	Number     int        `json:"number"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Evaluation Evaluation `json:"evaluation"`
	Difficulty Difficulty `json:"difficulty"`
	Closed     bool       `json:"closed"`
}

// InterviewSession is the durable per-session record. At most one exchange is
// open at a time and exchange numbers increase by exactly one with no gaps.
type InterviewSession struct {
	ID             string       `json:"id"`
	Role           string       `json:"role"`
	Language       Language     `json:"language"`
	Difficulty     Difficulty   `json:"difficulty"`
	ResumeSummary  string       `json:"resumeSummary"`
	Exchanges      []QAExchange `json:"exchanges"`
	ActiveQuestion int          `json:"activeQuestion"`
	LastActivity   time.Time    `json:"lastActivity"`
}

// OpenExchange returns the currently open exchange or nil.
func (s *InterviewSession) OpenExchange() *QAExchange {
	if len(s.Exchanges) == 0 {
		return nil
	}
	last := &s.Exchanges[len(s.Exchanges)-1]
	if last.Closed {
		return nil
	}
	return last
}

// History returns the closed exchanges in question order.
func (s *InterviewSession) History() []QAExchange {
	history := make([]QAExchange, 0, len(s.Exchanges))
	for _, exchange := range s.Exchanges {
		if exchange.Closed {
			history = append(history, exchange)
		}
	}
	return history
}

// AverageRating returns the mean rating over closed exchanges, or 0 when no
// exchange is closed yet.
func (s *InterviewSession) AverageRating() float64 {
	history := s.History()
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, exchange := range history {
		sum += exchange.Evaluation.Rating
	}
	return sum / float64(len(history))
}

// Report is the material handed to a report renderer at session end.
type Report struct {
	Role           string       `json:"role"`
	Difficulty     Difficulty   `json:"difficulty"`
	Language       Language     `json:"language"`
	GeneratedAt    time.Time    `json:"generatedAt"`
	NumQuestions   int          `json:"numQuestions"`
	AverageRating  float64      `json:"averageRating"`
	Assessment     string       `json:"assessment"`
	History        []QAExchange `json:"history"`
	OverallSummary string       `json:"overallSummary"`
}

// Assessment maps an average rating to a qualitative performance band.
func Assessment(averageRating float64) string {
	switch {
	case averageRating >= 8.0:
		return "Excellent - Strong command of subject matter with clear articulation"
	case averageRating >= 6.0:
		return "Good - Solid understanding with minor areas for improvement"
	case averageRating >= 4.0:
		return "Fair - Basic knowledge demonstrated, needs focused development"
	default:
		return "Needs Improvement - Significant knowledge gaps identified"
	}
}

// Status summarizes the current runtime status of one session.
type Status struct {
	SessionID      string     `json:"sessionId"`
	State          VoiceState `json:"state"`
	ActiveQuestion int        `json:"activeQuestion"`
	Difficulty     Difficulty `json:"difficulty"`
	Active         bool       `json:"active"`
	Message        string     `json:"message,omitempty"`
}
