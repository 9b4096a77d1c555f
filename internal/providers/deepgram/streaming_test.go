package deepgram

import (
	"context"
	"strings"
	"testing"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	if p.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", p.cfg.APIBaseURL)
	}
	if p.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", p.cfg.Model)
	}
}

func TestProviderStartStreamingRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: ""})
	if _, err := p.StartStreaming(context.Background(), ports.StreamingConfig{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestBuildListenURL(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2", SmartFormat: true},
		ports.StreamingConfig{Language: domain.LanguageEnglish, InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"wss://api.deepgram.com/v1/listen",
		"model=nova-2",
		"encoding=linear16",
		"sample_rate=16000",
		"channels=1",
		"interim_results=true",
		"smart_format=true",
		"language=en",
	} {
		if !strings.Contains(url, want) {
			t.Fatalf("url missing %q: %s", want, url)
		}
	}
}

func TestBuildListenURLHinglishUsesHindi(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m"},
		ports.StreamingConfig{Language: domain.LanguageHinglish},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "ws://localhost:8080/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "language=hi") {
		t.Fatalf("expected hindi language tag: %s", url)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	if _, err := buildListenURL(Config{APIBaseURL: ":// bad"}, ports.StreamingConfig{}); err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestToTranscriptEvent(t *testing.T) {
	t.Parallel()

	var interim listenResponse
	interim.Channel.Alternatives = []listenAlternative{{Transcript: " partial thought ", Confidence: 0.72}}
	event, ok := toTranscriptEvent(interim)
	if !ok {
		t.Fatalf("expected event")
	}
	if event.Kind != domain.TranscriptKindInterim || event.Text != "partial thought" || event.Confidence != 0.72 {
		t.Fatalf("unexpected interim event: %+v", event)
	}

	final := interim
	final.IsFinal = true
	final.SpeechFinal = true
	event, ok = toTranscriptEvent(final)
	if !ok {
		t.Fatalf("expected event")
	}
	if event.Kind != domain.TranscriptKindFinal || !event.IsSpeechFinal {
		t.Fatalf("unexpected final event: %+v", event)
	}

	var empty listenResponse
	empty.Channel.Alternatives = []listenAlternative{{Transcript: "   "}}
	if _, ok := toTranscriptEvent(empty); ok {
		t.Fatalf("blank transcript must be skipped")
	}
	if _, ok := toTranscriptEvent(listenResponse{}); ok {
		t.Fatalf("missing alternatives must be skipped")
	}
}

func TestLiveSessionSendAudioAfterCloseSend(t *testing.T) {
	t.Parallel()

	session := &liveSession{
		events: make(chan domain.TranscriptEvent, 1),
		audio:  make(chan []byte, 1),
		done:   make(chan struct{}),
	}
	if err := session.CloseSend(); err != nil {
		t.Fatalf("close send failed: %v", err)
	}
	if err := session.SendAudio([]byte{1}); err == nil {
		t.Fatalf("send after close must fail")
	}
	// CloseSend is idempotent.
	if err := session.CloseSend(); err != nil {
		t.Fatalf("repeated close send failed: %v", err)
	}
}
