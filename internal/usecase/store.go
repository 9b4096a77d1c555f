package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

var (
	// ErrNoActiveSession is returned for operations on an unknown session id.
	ErrNoActiveSession = errors.New("no active interview session")
	// ErrSessionExpired is returned once a session hit its inactivity timeout.
	ErrSessionExpired = errors.New("interview session has expired")
	// ErrInvalidState is returned when a mutation does not fit the session's
	// exchange state: submit with no open exchange, submit racing another
	// submit, or advancing past a still-open exchange.
	ErrInvalidState = errors.New("operation not valid in current session state")
)

// managedSession pairs one session with its exclusive critical section.
// Every read-modify-write of the session happens under mu.
type managedSession struct {
	mu      sync.Mutex
	session domain.InterviewSession
	expired bool
}

// SessionStore owns all interview sessions, keyed by id. Mutations are
// serialized per session; sessions never share a lock, so a timeout sweep of
// one session cannot stall or corrupt another.
type SessionStore struct {
	evaluator ports.AnswerEvaluator
	events    ports.EventSink
	timeout   time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

// NewSessionStore creates an empty store. A non-positive timeout disables
// inactivity expiry.
func NewSessionStore(evaluator ports.AnswerEvaluator, events ports.EventSink, timeout time.Duration) *SessionStore {
	return &SessionStore{
		evaluator: evaluator,
		events:    events,
		timeout:   timeout,
		now:       time.Now,
		sessions:  make(map[string]*managedSession),
	}
}

// Create registers a new session and returns a snapshot of it.
func (s *SessionStore) Create(role string, language domain.Language, difficulty domain.Difficulty, resumeSummary string) domain.InterviewSession {
	session := domain.InterviewSession{
		ID:            uuid.NewString(),
		Role:          role,
		Language:      language,
		Difficulty:    difficulty,
		ResumeSummary: resumeSummary,
		LastActivity:  s.now(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &managedSession{session: session}
	s.mu.Unlock()

	return session
}

// Get returns a snapshot of the session.
func (s *SessionStore) Get(id string) (domain.InterviewSession, error) {
	managed, err := s.lookup(id)
	if err != nil {
		return domain.InterviewSession{}, err
	}

	managed.mu.Lock()
	defer managed.mu.Unlock()
	if err := s.checkAlive(managed); err != nil {
		return domain.InterviewSession{}, err
	}
	return snapshot(&managed.session), nil
}

// ActiveQuestion returns the session's current active question number, or 0
// when no question has been issued yet.
func (s *SessionStore) ActiveQuestion(id string) (int, error) {
	managed, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	managed.mu.Lock()
	defer managed.mu.Unlock()
	if err := s.checkAlive(managed); err != nil {
		return 0, err
	}
	return managed.session.ActiveQuestion, nil
}

// AdvanceQuestion opens the next exchange. The previous exchange must already
// be closed. Advancing invalidates every recording context issued for earlier
// questions: their tags no longer match the active question number.
func (s *SessionStore) AdvanceQuestion(id string, question string) (int, error) {
	managed, err := s.lookup(id)
	if err != nil {
		return 0, err
	}

	managed.mu.Lock()
	defer managed.mu.Unlock()
	if err := s.checkAlive(managed); err != nil {
		return 0, err
	}

	session := &managed.session
	if session.OpenExchange() != nil {
		return 0, fmt.Errorf("%w: previous exchange is still open", ErrInvalidState)
	}

	number := len(session.Exchanges) + 1
	session.Exchanges = append(session.Exchanges, domain.QAExchange{
		Number:     number,
		Question:   question,
		Difficulty: session.Difficulty,
	})
	session.ActiveQuestion = number
	session.LastActivity = s.now()
	return number, nil
}

// SubmitAnswer records the answer on the open exchange, evaluates it
// synchronously, applies the difficulty transition and closes the exchange.
//
// A concurrent submit for the same session is rejected outright rather than
// queued: together with the closed-exchange check this keeps submissions to
// at most one per question. On evaluation failure the exchange stays open
// with the answer text preserved so the caller can retry without
// re-recording.
func (s *SessionStore) SubmitAnswer(ctx context.Context, id string, answer string) (domain.QAExchange, error) {
	managed, err := s.lookup(id)
	if err != nil {
		return domain.QAExchange{}, err
	}

	if !managed.mu.TryLock() {
		return domain.QAExchange{}, fmt.Errorf("%w: another submission is in flight", ErrInvalidState)
	}
	defer managed.mu.Unlock()

	if err := s.checkAlive(managed); err != nil {
		return domain.QAExchange{}, err
	}

	session := &managed.session
	open := session.OpenExchange()
	if open == nil {
		return domain.QAExchange{}, fmt.Errorf("%w: no open exchange to submit", ErrInvalidState)
	}

	open.Answer = answer
	session.LastActivity = s.now()

	evaluation, err := s.evaluator.EvaluateAnswer(ctx, ports.EvaluationRequest{
		Question:   open.Question,
		Answer:     answer,
		Language:   session.Language,
		Difficulty: open.Difficulty,
	})
	if err != nil {
		// Exchange stays open and keeps the answer text for retry.
		return domain.QAExchange{}, fmt.Errorf("answer evaluation failed: %w", err)
	}

	open.Evaluation = evaluation
	open.Closed = true
	session.Difficulty = domain.NextDifficulty(session.Difficulty, evaluation.Rating)
	session.LastActivity = s.now()
	return *open, nil
}

// Difficulty returns the session's current difficulty.
func (s *SessionStore) Difficulty(id string) (domain.Difficulty, error) {
	session, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return session.Difficulty, nil
}

// Expire marks the session expired; all further operations on it fail with
// ErrSessionExpired until Remove.
func (s *SessionStore) Expire(id string) {
	managed, err := s.lookup(id)
	if err != nil {
		return
	}
	managed.mu.Lock()
	managed.expired = true
	managed.mu.Unlock()
}

// Remove drops the session entirely.
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// SweepExpired expires and removes every session past the inactivity timeout
// and returns their ids. Each candidate is locked individually; no global
// lock is held while a session is inspected.
func (s *SessionStore) SweepExpired() []string {
	if s.timeout <= 0 {
		return nil
	}

	s.mu.RLock()
	candidates := make([]*managedSession, 0, len(s.sessions))
	for _, managed := range s.sessions {
		candidates = append(candidates, managed)
	}
	s.mu.RUnlock()

	var expired []string
	for _, managed := range candidates {
		managed.mu.Lock()
		stale := !managed.expired && s.now().Sub(managed.session.LastActivity) > s.timeout
		if stale {
			managed.expired = true
			expired = append(expired, managed.session.ID)
		}
		managed.mu.Unlock()
	}

	for _, id := range expired {
		s.Remove(id)
		s.events.SessionError(id, domain.ErrorCodeSession, "session expired after inactivity")
	}
	return expired
}

// StartSweeper runs SweepExpired on the given cadence until ctx is done.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.timeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepExpired()
			}
		}
	}()
}

func (s *SessionStore) lookup(id string) (*managedSession, error) {
	s.mu.RLock()
	managed, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoActiveSession
	}
	return managed, nil
}

// checkAlive must be called with the session lock held. It also applies the
// rolling inactivity timeout lazily, so an expired session fails fast even
// between sweeps.
func (s *SessionStore) checkAlive(managed *managedSession) error {
	if managed.expired {
		return ErrSessionExpired
	}
	if s.timeout > 0 && s.now().Sub(managed.session.LastActivity) > s.timeout {
		managed.expired = true
		return ErrSessionExpired
	}
	return nil
}

func snapshot(session *domain.InterviewSession) domain.InterviewSession {
	copied := *session
	copied.Exchanges = append([]domain.QAExchange(nil), session.Exchanges...)
	return copied
}
