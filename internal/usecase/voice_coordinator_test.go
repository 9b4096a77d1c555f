package usecase

import (
	"errors"
	"sync"
	"testing"
	"time"

	"prepmic/internal/domain"
)

type submitRecorder struct {
	mu         sync.Mutex
	recordings []*RecordingContext
}

func (s *submitRecorder) submit(recording *RecordingContext) {
	s.mu.Lock()
	s.recordings = append(s.recordings, recording)
	s.mu.Unlock()
}

func (s *submitRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recordings)
}

func newTestCoordinator(countdown time.Duration, active int) (*VoiceCoordinator, *submitRecorder, *fakeEventSink) {
	events := &fakeEventSink{}
	recorder := &submitRecorder{}
	coordinator := NewVoiceCoordinator(
		"s1",
		countdown,
		events,
		func() (int, error) { return active, nil },
		recorder.submit,
	)
	return coordinator, recorder, events
}

func TestCoordinatorHappyPath(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(time.Minute, 1)

	if coordinator.State() != domain.VoiceStateIdle {
		t.Fatalf("expected idle start, got %s", coordinator.State())
	}
	coordinator.Start()
	if coordinator.State() != domain.VoiceStateListening {
		t.Fatalf("expected listening, got %s", coordinator.State())
	}

	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	if coordinator.State() != domain.VoiceStateSpeaking {
		t.Fatalf("expected speaking, got %s", coordinator.State())
	}
	recording := coordinator.Recording()
	if recording == nil || recording.Tag() != 1 {
		t.Fatalf("recording must carry the active question tag, got %+v", recording)
	}

	coordinator.OnSpeechEnd()
	if coordinator.State() != domain.VoiceStateCountdownPending {
		t.Fatalf("expected countdown pending, got %s", coordinator.State())
	}

	if err := coordinator.ForceSubmit(); err != nil {
		t.Fatalf("force submit failed: %v", err)
	}
	if coordinator.State() != domain.VoiceStateSubmitting {
		t.Fatalf("expected submitting, got %s", coordinator.State())
	}
	if recorder.count() != 1 {
		t.Fatalf("expected one submission, got %d", recorder.count())
	}

	coordinator.FinishSubmit(true)
	if coordinator.State() != domain.VoiceStateListening {
		t.Fatalf("expected listening after submit, got %s", coordinator.State())
	}
	if coordinator.Recording() != nil {
		t.Fatalf("recording must be cleared after submit")
	}
}

func TestCoordinatorCountdownExpirySubmits(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(10*time.Millisecond, 2)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()

	waitFor(t, "countdown expiry", func() bool { return recorder.count() == 1 })
	if coordinator.State() != domain.VoiceStateSubmitting {
		t.Fatalf("expected submitting after expiry, got %s", coordinator.State())
	}
}

func TestCoordinatorSpeechStartCancelsCountdown(t *testing.T) {
	t.Parallel()

	coordinator, recorder, events := newTestCoordinator(25*time.Millisecond, 1)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	first := coordinator.Recording()

	coordinator.OnSpeechEnd()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if coordinator.State() != domain.VoiceStateSpeaking {
		t.Fatalf("expected speaking after cancel, got %s", coordinator.State())
	}
	if coordinator.Recording() != first {
		t.Fatalf("cancelling the countdown must keep the same recording")
	}

	// The cancelled timer must never fire.
	time.Sleep(60 * time.Millisecond)
	if recorder.count() != 0 {
		t.Fatalf("cancelled countdown still submitted")
	}

	var sawCancel bool
	for _, change := range events.snapshotStates() {
		if change.reason == domain.ReasonCountdownCancelled {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Fatalf("expected a countdown cancelled transition")
	}

	// The next speech end re-arms the full window.
	coordinator.OnSpeechEnd()
	waitFor(t, "re-armed countdown", func() bool { return recorder.count() == 1 })
}

func TestCoordinatorExpiredTimerStandsDownAfterCancel(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(time.Millisecond, 1)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()

	// Hold the lock past expiry so the timer callback is already running
	// and blocked, then cancel the countdown the way a speech start does.
	// The blocked callback must observe the cancellation and stand down
	// instead of submitting mid-sentence.
	coordinator.mu.Lock()
	time.Sleep(20 * time.Millisecond)
	coordinator.stopTimerLocked()
	coordinator.state = domain.VoiceStateSpeaking
	coordinator.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	if got := recorder.count(); got != 0 {
		t.Fatalf("cancelled countdown still submitted %d time(s)", got)
	}
	if got := coordinator.State(); got != domain.VoiceStateSpeaking {
		t.Fatalf("expected speaking after cancel, got %s", got)
	}

	// The recording survives and the next silence window submits normally.
	coordinator.OnSpeechEnd()
	waitFor(t, "re-armed countdown", func() bool { return recorder.count() == 1 })
}

func TestCoordinatorSingleShotUnderConcurrentTriggers(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(time.Minute, 1)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = coordinator.ForceSubmit()
		}()
	}
	wg.Wait()

	if recorder.count() != 1 {
		t.Fatalf("expected exactly one submission, got %d", recorder.count())
	}
}

func TestCoordinatorForceSubmitWithoutRecording(t *testing.T) {
	t.Parallel()

	coordinator, _, _ := newTestCoordinator(time.Minute, 1)
	coordinator.Start()
	if err := coordinator.ForceSubmit(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestCoordinatorSpeechStartRequiresQuestion(t *testing.T) {
	t.Parallel()

	coordinator, _, _ := newTestCoordinator(time.Minute, 0)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err == nil {
		t.Fatalf("speech start before any question must fail")
	}
	if coordinator.State() != domain.VoiceStateListening {
		t.Fatalf("failed speech start must not change state, got %s", coordinator.State())
	}
}

func TestCoordinatorFailedSubmitReArms(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(time.Minute, 1)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()
	if err := coordinator.ForceSubmit(); err != nil {
		t.Fatalf("force submit failed: %v", err)
	}
	coordinator.FinishSubmit(false)

	if coordinator.State() != domain.VoiceStateListening {
		t.Fatalf("expected listening after failed submit, got %s", coordinator.State())
	}

	// The guard is reset: the same question can be answered again.
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("retry speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()
	if err := coordinator.ForceSubmit(); err != nil {
		t.Fatalf("retry submit failed: %v", err)
	}
	if recorder.count() != 2 {
		t.Fatalf("expected two submission attempts, got %d", recorder.count())
	}
}

func TestCoordinatorArmResetsForNewQuestion(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(time.Minute, 1)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()
	if err := coordinator.ForceSubmit(); err != nil {
		t.Fatalf("force submit failed: %v", err)
	}
	coordinator.FinishSubmit(true)

	coordinator.Arm()
	if coordinator.State() != domain.VoiceStateListening {
		t.Fatalf("expected listening after arm, got %s", coordinator.State())
	}
	if coordinator.Recording() != nil {
		t.Fatalf("arm must discard leftover recordings")
	}

	// The single-shot guard is per question.
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()
	if err := coordinator.ForceSubmit(); err != nil {
		t.Fatalf("second question submit failed: %v", err)
	}
	if recorder.count() != 2 {
		t.Fatalf("expected a submission per question, got %d", recorder.count())
	}
}

func TestCoordinatorStopDiscardsEverything(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(15*time.Millisecond, 1)
	coordinator.Start()
	if err := coordinator.OnSpeechStart(); err != nil {
		t.Fatalf("speech start failed: %v", err)
	}
	coordinator.OnSpeechEnd()
	coordinator.Stop()

	if coordinator.State() != domain.VoiceStateIdle {
		t.Fatalf("expected idle after stop, got %s", coordinator.State())
	}
	if coordinator.Recording() != nil {
		t.Fatalf("stop must discard the recording")
	}

	time.Sleep(50 * time.Millisecond)
	if recorder.count() != 0 {
		t.Fatalf("stopped countdown still submitted")
	}
}

func TestCoordinatorOnSpeechEndOutsideSpeaking(t *testing.T) {
	t.Parallel()

	coordinator, recorder, _ := newTestCoordinator(5*time.Millisecond, 1)
	coordinator.Start()
	coordinator.OnSpeechEnd()

	time.Sleep(30 * time.Millisecond)
	if coordinator.State() != domain.VoiceStateListening {
		t.Fatalf("speech end without speech must be a no-op, got %s", coordinator.State())
	}
	if recorder.count() != 0 {
		t.Fatalf("no-op speech end still submitted")
	}
}
