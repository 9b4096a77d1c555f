package usecase

import (
	"errors"
	"sync"
	"time"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

// DefaultCountdown is the silence window after speech end before the answer
// auto-submits.
const DefaultCountdown = 4 * time.Second

// ErrNotRecording is returned for a force-submit with nothing recorded.
var ErrNotRecording = errors.New("no recorded answer to submit")

// VoiceCoordinator drives the speech-boundary state machine for one session:
//
//	Idle -> Listening -> Speaking -> CountdownPending -> Submitting -> Listening
//
// Speech start during the countdown cancels it and returns to Speaking; the
// next speech end re-arms the full window. Countdown expiry and ForceSubmit
// race through a single-shot guard, so exactly one submit fires per question
// no matter how the triggers interleave.
type VoiceCoordinator struct {
	sessionID      string
	countdown      time.Duration
	events         ports.EventSink
	activeQuestion func() (int, error)
	submit         func(recording *RecordingContext)

	mu         sync.Mutex
	state      domain.VoiceState
	timer      *time.Timer
	generation uint64
	recording  *RecordingContext
	fired      bool
}

// NewVoiceCoordinator wires a coordinator to its session. activeQuestion
// resolves the session's current question number at recording start; submit
// is invoked at most once per question, from the Submitting state.
func NewVoiceCoordinator(
	sessionID string,
	countdown time.Duration,
	events ports.EventSink,
	activeQuestion func() (int, error),
	submit func(recording *RecordingContext),
) *VoiceCoordinator {
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	return &VoiceCoordinator{
		sessionID:      sessionID,
		countdown:      countdown,
		events:         events,
		activeQuestion: activeQuestion,
		submit:         submit,
		state:          domain.VoiceStateIdle,
	}
}

// Start moves the coordinator from Idle to Listening.
func (c *VoiceCoordinator) Start() {
	c.mu.Lock()
	if c.state != domain.VoiceStateIdle {
		c.mu.Unlock()
		return
	}
	c.state = domain.VoiceStateListening
	c.mu.Unlock()
	c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateListening, domain.ReasonSessionStarted)
}

// Arm resets the single-shot guard for a newly issued question. Any leftover
// countdown or recording belongs to the previous question and is discarded.
func (c *VoiceCoordinator) Arm() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.fired = false
	c.recording = nil
	if c.state != domain.VoiceStateIdle {
		c.state = domain.VoiceStateListening
	}
	c.mu.Unlock()
	c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateListening, domain.ReasonQuestionIssued)
}

// OnSpeechStart handles a speech boundary: from Listening it opens a new
// recording context tagged with the current active question; during a pending
// countdown it cancels the countdown and resumes the same recording.
func (c *VoiceCoordinator) OnSpeechStart() error {
	c.mu.Lock()
	switch c.state {
	case domain.VoiceStateListening:
		number, err := c.activeQuestion()
		if err != nil {
			c.mu.Unlock()
			return err
		}
		if number == 0 {
			c.mu.Unlock()
			return errors.New("no question has been issued yet")
		}
		c.recording = NewRecordingContext(number)
		c.state = domain.VoiceStateSpeaking
		c.mu.Unlock()
		c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateSpeaking, domain.ReasonSpeechStarted)
		return nil
	case domain.VoiceStateCountdownPending:
		c.stopTimerLocked()
		c.state = domain.VoiceStateSpeaking
		c.mu.Unlock()
		c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateSpeaking, domain.ReasonCountdownCancelled)
		return nil
	default:
		c.mu.Unlock()
		return nil
	}
}

// OnSpeechEnd arms the auto-submit countdown at its full duration.
func (c *VoiceCoordinator) OnSpeechEnd() {
	c.mu.Lock()
	if c.state != domain.VoiceStateSpeaking {
		c.mu.Unlock()
		return
	}
	c.state = domain.VoiceStateCountdownPending
	c.generation++
	gen := c.generation
	c.timer = time.AfterFunc(c.countdown, func() {
		c.expire(gen)
	})
	c.mu.Unlock()
	c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateCountdownPending, domain.ReasonCountdownStarted)
}

// ForceSubmit submits immediately, short-circuiting a pending countdown. It
// shares the single-shot guard with the countdown timer, so a race between
// the two produces exactly one submission.
func (c *VoiceCoordinator) ForceSubmit() error {
	return c.fire(domain.ReasonForceSubmitted)
}

// FinishSubmit completes the Submitting state once the underlying submission
// returned. Success finalizes the recording; failure re-opens the coordinator
// for the same question so the answer can be retried.
func (c *VoiceCoordinator) FinishSubmit(submitted bool) {
	c.mu.Lock()
	if c.state != domain.VoiceStateSubmitting {
		c.mu.Unlock()
		return
	}
	reason := domain.ReasonAnswerSubmitted
	if submitted {
		if c.recording != nil {
			c.recording.Finalize()
		}
	} else {
		reason = domain.ReasonEvaluationFailed
		c.fired = false
	}
	c.recording = nil
	c.state = domain.VoiceStateListening
	c.mu.Unlock()
	c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateListening, reason)
}

// Stop is valid from any state: it cancels a pending countdown, discards an
// unfinalized recording without committing it, and parks the machine at Idle.
func (c *VoiceCoordinator) Stop() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.recording = nil
	alreadyIdle := c.state == domain.VoiceStateIdle
	c.state = domain.VoiceStateIdle
	c.mu.Unlock()
	if !alreadyIdle {
		c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateIdle, domain.ReasonVoiceStopped)
	}
}

// State returns the current machine state.
func (c *VoiceCoordinator) State() domain.VoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recording returns the live recording context, or nil outside a recording.
func (c *VoiceCoordinator) Recording() *RecordingContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// fire performs the guarded transition into Submitting. The fired flag makes
// countdown expiry and ForceSubmit mutually exclusive: whichever trigger
// arrives second observes the flag and becomes a no-op.
func (c *VoiceCoordinator) fire(reason domain.StateReason) error {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return nil
	}
	if c.state != domain.VoiceStateCountdownPending && c.state != domain.VoiceStateSpeaking {
		c.mu.Unlock()
		return ErrNotRecording
	}
	if c.recording == nil {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.fired = true
	c.stopTimerLocked()
	recording := c.recording
	c.state = domain.VoiceStateSubmitting
	c.mu.Unlock()

	c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateSubmitting, reason)
	c.submit(recording)
	return nil
}

// expire is the countdown timer callback. Stopping a timer whose callback
// already fired and is waiting on the lock does not prevent that callback
// from running, so expiry re-checks its generation token under the lock and
// stands down unless the countdown it was armed for is still the live one.
func (c *VoiceCoordinator) expire(gen uint64) {
	c.mu.Lock()
	if c.fired || gen != c.generation || c.state != domain.VoiceStateCountdownPending || c.recording == nil {
		c.mu.Unlock()
		return
	}
	c.fired = true
	c.stopTimerLocked()
	recording := c.recording
	c.state = domain.VoiceStateSubmitting
	c.mu.Unlock()

	c.events.VoiceStateChanged(c.sessionID, domain.VoiceStateSubmitting, domain.ReasonCountdownExpired)
	c.submit(recording)
}

// stopTimerLocked cancels a pending countdown and invalidates the token of
// any callback already in flight.
func (c *VoiceCoordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
}
