package bootstrap

import (
	"prepmic/internal/config"
	"prepmic/internal/ports"
	"prepmic/internal/providers/deepgram"
	"prepmic/internal/providers/openrouter"
	"prepmic/internal/report"
	"prepmic/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.InterviewController
	Store      *usecase.SessionStore
	Resume     ports.ResumeSummarizer
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	llm, err := openrouter.NewClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.APIBaseURL, cfg.OpenRouter.Model)
	if err != nil {
		return Services{}, err
	}

	store := usecase.NewSessionStore(llm, eventSink, cfg.Session.Timeout)
	controller := usecase.NewInterviewController(
		store,
		llm,
		llm,
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		report.NewMarkdownRenderer(),
		eventSink,
		usecase.Config{
			Countdown:    cfg.Interview.Countdown(),
			MaxQuestions: cfg.Interview.MaxQuestions,
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Deepgram.SampleRate,
				Channels:       cfg.Deepgram.Channels,
				Encoding:       cfg.Deepgram.Encoding,
				InterimResults: true,
			},
		},
	)

	return Services{Controller: controller, Store: store, Resume: llm, Config: cfg}, nil
}
