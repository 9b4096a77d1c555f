package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"prepmic/internal/bootstrap"
	"prepmic/internal/config"
	"prepmic/internal/domain"
	"prepmic/internal/ports"
	"prepmic/internal/usecase"
)

const (
	eventState      = "prepmic:state"
	eventQuestion   = "prepmic:question"
	eventPartial    = "prepmic:partial"
	eventDiscard    = "prepmic:discard"
	eventEvaluation = "prepmic:evaluation"
	eventError      = "prepmic:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.InterviewController
	store      *usecase.SessionStore
	resume     ports.ResumeSummarizer
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError("", domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.store = services.Store
	a.resume = services.Resume
	a.store.StartSweeper(ctx, a.cfg.Session.SweepInterval)
}

// StartInterview opens a new interview session.
func (a *App) StartInterview(req usecase.StartRequest) (domain.InterviewSession, error) {
	if err := a.requireReady(); err != nil {
		return domain.InterviewSession{}, err
	}
	if req.Difficulty == "" {
		req.Difficulty = domain.Difficulty(a.cfg.Interview.DefaultDifficulty)
	}
	if req.Language == "" {
		req.Language = domain.Language(a.cfg.Interview.DefaultLanguage)
	}
	return a.controller.StartInterview(req)
}

// SummarizeResume condenses extracted resume text for question generation.
func (a *App) SummarizeResume(resumeText string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.resume.SummarizeResume(a.ctx, resumeText)
}

// NextQuestion issues the next interview question.
func (a *App) NextQuestion(sessionID string) (usecase.IssuedQuestion, error) {
	if err := a.requireReady(); err != nil {
		return usecase.IssuedQuestion{}, err
	}
	return a.controller.NextQuestion(a.ctx, sessionID)
}

// SpeechStarted reports a frontend speech boundary and returns the recording
// tag the frontend must attach to transcription results.
func (a *App) SpeechStarted(sessionID string) (int, error) {
	if err := a.requireReady(); err != nil {
		return 0, err
	}
	return a.controller.SpeechStarted(sessionID)
}

// SpeechEnded arms the auto-submit countdown.
func (a *App) SpeechEnded(sessionID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.SpeechEnded(sessionID)
}

// ForceSubmit submits the recorded answer immediately.
func (a *App) ForceSubmit(sessionID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.ForceSubmit(sessionID)
}

// AcceptTranscript feeds one frontend transcription result into the session.
func (a *App) AcceptTranscript(sessionID string, event domain.TranscriptEvent, tag int) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.controller.AcceptTranscript(sessionID, event, tag)
}

// SubmitTypedAnswer submits a typed answer for the open question.
func (a *App) SubmitTypedAnswer(sessionID string, answer string) (domain.QAExchange, error) {
	if err := a.requireReady(); err != nil {
		return domain.QAExchange{}, err
	}
	return a.controller.SubmitTypedAnswer(a.ctx, sessionID, answer)
}

// BeginAnswerStream opens server-side streaming transcription for the
// current recording attempt.
func (a *App) BeginAnswerStream(sessionID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.BeginAnswerStream(a.ctx, sessionID)
}

// PushAudio forwards a captured audio chunk to the open answer stream.
func (a *App) PushAudio(sessionID string, chunk []byte) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.PushAudio(sessionID, chunk)
}

// EndAnswerStream stops streaming and drains remaining results.
func (a *App) EndAnswerStream(sessionID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.EndAnswerStream(sessionID)
}

// StopVoice parks the session's voice pipeline.
func (a *App) StopVoice(sessionID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.StopVoice(sessionID)
}

// InterviewResult is returned by EndInterview.
type InterviewResult struct {
	Report   domain.Report `json:"report"`
	Document string        `json:"document"`
}

// EndInterview finishes the session and returns the rendered report.
func (a *App) EndInterview(sessionID string) (InterviewResult, error) {
	if err := a.requireReady(); err != nil {
		return InterviewResult{}, err
	}
	report, document, err := a.controller.EndInterview(a.ctx, sessionID)
	if err != nil {
		return InterviewResult{}, err
	}
	return InterviewResult{Report: report, Document: string(document)}, nil
}

// AbortInterview terminates the session without a report.
func (a *App) AbortInterview(sessionID string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.AbortInterview(sessionID); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus(sessionID string) domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.VoiceStateIdle, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.VoiceStateIdle}
	}
	status, err := a.controller.Status(sessionID)
	if err != nil {
		return domain.Status{SessionID: sessionID, State: domain.VoiceStateIdle, Message: err.Error()}
	}
	return status
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"llmProvider":         "OpenRouter",
		"llmModel":            a.cfg.OpenRouter.Model,
		"transcriptionModel":  a.cfg.Deepgram.Model,
		"maxQuestions":        fmt.Sprintf("%d", a.cfg.Interview.MaxQuestions),
		"defaultDifficulty":   a.cfg.Interview.DefaultDifficulty,
		"defaultLanguage":     a.cfg.Interview.DefaultLanguage,
		"autoSubmitCountdown": a.cfg.Interview.Countdown().String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// VoiceStateChanged emits voice state machine transitions to the frontend.
func (a *App) VoiceStateChanged(sessionID string, state domain.VoiceState, reason domain.StateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]string{
		"sessionId": sessionID,
		"state":     string(state),
		"reason":    string(reason),
		"message":   stateReasonMessage(reason),
	})
}

// QuestionIssued emits a newly issued question.
func (a *App) QuestionIssued(sessionID string, number int, question string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventQuestion, map[string]any{
		"sessionId": sessionID,
		"number":    number,
		"question":  question,
	})
}

// PartialTranscript emits live interim transcript text.
func (a *App) PartialTranscript(sessionID string, text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventPartial, map[string]string{
		"sessionId": sessionID,
		"text":      text,
	})
}

// FragmentDiscarded emits a diagnostic for a dropped stale fragment.
func (a *App) FragmentDiscarded(sessionID string, fragmentTag int, activeQuestion int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventDiscard, map[string]any{
		"sessionId":      sessionID,
		"fragmentTag":    fragmentTag,
		"activeQuestion": activeQuestion,
	})
}

// AnswerEvaluated emits the evaluation of a submitted answer.
func (a *App) AnswerEvaluated(sessionID string, exchange domain.QAExchange, nextDifficulty domain.Difficulty) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventEvaluation, map[string]any{
		"sessionId":      sessionID,
		"exchange":       exchange,
		"nextDifficulty": string(nextDifficulty),
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(sessionID string, code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"sessionId": sessionID,
		"code":      string(code),
		"message":   errorMessage(code, detail),
		"detail":    detail,
	})
}

func stateReasonMessage(reason domain.StateReason) string {
	switch reason {
	case domain.ReasonSessionStarted:
		return "Interview started"
	case domain.ReasonQuestionIssued:
		return "New question issued"
	case domain.ReasonSpeechStarted:
		return "Listening to your answer"
	case domain.ReasonCountdownStarted:
		return "Answer will submit after the pause"
	case domain.ReasonCountdownCancelled:
		return "Continuing your answer"
	case domain.ReasonCountdownExpired:
		return "Silence window elapsed. Submitting..."
	case domain.ReasonForceSubmitted:
		return "Answer submitted"
	case domain.ReasonAnswerSubmitted:
		return "Answer evaluated"
	case domain.ReasonEvaluationFailed:
		return "Evaluation failed; your answer is kept for retry"
	case domain.ReasonVoiceStopped:
		return "Voice input stopped"
	case domain.ReasonSessionEnded:
		return "Interview finished"
	case domain.ReasonSessionExpired:
		return "Session expired after inactivity"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeQuestion:
		return "Question generation failed"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeEvaluation:
		return "Answer evaluation failed"
	case domain.ErrorCodeReport:
		return "Report generation failed"
	case domain.ErrorCodeSession:
		return "Session error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
