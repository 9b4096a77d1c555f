package usecase

import (
	"strings"
	"sync"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

// RecordingContext tags one recording attempt with the question number that
// was active when recording began. The tag is what makes a late-arriving
// transcription detectable as stale: the moment the session advances to
// another question, every earlier context stops matching.
type RecordingContext struct {
	tag int

	mu        sync.Mutex
	fragments []string
	finalized bool
}

func NewRecordingContext(tag int) *RecordingContext {
	return &RecordingContext{tag: tag}
}

// Tag returns the question number this recording belongs to.
func (r *RecordingContext) Tag() int {
	return r.tag
}

// Fragments returns the accepted fragments in arrival order.
func (r *RecordingContext) Fragments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fragments...)
}

// Finalize freezes the context; fragments arriving afterwards are discarded.
func (r *RecordingContext) Finalize() {
	r.mu.Lock()
	r.finalized = true
	r.mu.Unlock()
}

func (r *RecordingContext) record(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return false
	}
	r.fragments = append(r.fragments, text)
	return true
}

// TranscriptionGuard validates transcript fragments against the session's
// active question before they reach the answer builder. Fragments are
// processed strictly in arrival order; there is no reordering buffer.
type TranscriptionGuard struct {
	sessionID string
	answers   *AnswerBuilder
	events    ports.EventSink
}

func NewTranscriptionGuard(sessionID string, answers *AnswerBuilder, events ports.EventSink) *TranscriptionGuard {
	return &TranscriptionGuard{sessionID: sessionID, answers: answers, events: events}
}

// Accept commits the fragment when its recording context still matches the
// active question. Staleness is checked here, at commit time, not at
// recording start. A stale fragment is an expected outcome: it is reported
// through the event sink for diagnostics and otherwise dropped silently.
//
// Interim fragments are forwarded for live display only and never committed.
// The return value reports whether the fragment was committed.
func (g *TranscriptionGuard) Accept(event domain.TranscriptEvent, recording *RecordingContext, activeQuestion int) bool {
	text := strings.TrimSpace(event.Text)
	if text == "" || recording == nil {
		return false
	}

	if recording.Tag() != activeQuestion {
		g.events.FragmentDiscarded(g.sessionID, recording.Tag(), activeQuestion)
		return false
	}

	if event.Kind != domain.TranscriptKindFinal {
		g.events.PartialTranscript(g.sessionID, text)
		return false
	}

	if !recording.record(text) {
		g.events.FragmentDiscarded(g.sessionID, recording.Tag(), activeQuestion)
		return false
	}

	g.answers.Append(text)
	return true
}
