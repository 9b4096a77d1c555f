package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"prepmic/internal/domain"
)

func newTestStore(evaluator *fakeEvaluator, timeout time.Duration) (*SessionStore, *fakeEventSink) {
	events := &fakeEventSink{}
	return NewSessionStore(evaluator, events, timeout), events
}

func TestStoreQuestionNumbersAreStrictlySequential(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(&fakeEvaluator{evaluation: domain.Evaluation{Rating: 5}}, 0)
	session := store.Create("Backend Engineer", domain.LanguageEnglish, domain.DifficultyMedium, "summary")

	for want := 1; want <= 4; want++ {
		number, err := store.AdvanceQuestion(session.ID, "question")
		if err != nil {
			t.Fatalf("advance %d failed: %v", want, err)
		}
		if number != want {
			t.Fatalf("expected question number %d, got %d", want, number)
		}
		if active, _ := store.ActiveQuestion(session.ID); active != want {
			t.Fatalf("active question mismatch: %d != %d", active, want)
		}
		if _, err := store.SubmitAnswer(context.Background(), session.ID, "answer"); err != nil {
			t.Fatalf("submit %d failed: %v", want, err)
		}
	}
}

func TestStoreAdvanceFailsWhileExchangeOpen(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(&fakeEvaluator{}, 0)
	session := store.Create("role", domain.LanguageEnglish, domain.DifficultyEasy, "")

	if _, err := store.AdvanceQuestion(session.ID, "q1"); err != nil {
		t.Fatalf("first advance failed: %v", err)
	}
	if _, err := store.AdvanceQuestion(session.ID, "q2"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestStoreSubmitWithoutOpenExchange(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(&fakeEvaluator{}, 0)
	session := store.Create("role", domain.LanguageEnglish, domain.DifficultyEasy, "")

	before, _ := store.Get(session.ID)
	_, err := store.SubmitAnswer(context.Background(), session.ID, "answer")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	after, _ := store.Get(session.ID)
	if len(after.Exchanges) != len(before.Exchanges) || after.Difficulty != before.Difficulty {
		t.Fatalf("failed submit mutated session state")
	}
}

func TestStoreSubmitAppliesEvaluationAndDifficulty(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{evaluation: domain.Evaluation{
		Rating:       8.2,
		Strengths:    "clear structure",
		Improvements: "add examples",
	}}
	store, _ := newTestStore(evaluator, 0)
	session := store.Create("role", domain.LanguageEnglish, domain.DifficultyEasy, "")

	if _, err := store.AdvanceQuestion(session.ID, "explain indexes"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	exchange, err := store.SubmitAnswer(context.Background(), session.ID, "An index speeds up lookups.")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if !exchange.Closed || exchange.Answer != "An index speeds up lookups." {
		t.Fatalf("unexpected exchange: %+v", exchange)
	}
	if exchange.Evaluation.Rating != 8.2 {
		t.Fatalf("evaluation not stored: %+v", exchange.Evaluation)
	}
	if exchange.Difficulty != domain.DifficultyEasy {
		t.Fatalf("exchange must keep the difficulty in effect when issued")
	}
	if difficulty, _ := store.Difficulty(session.ID); difficulty != domain.DifficultyMedium {
		t.Fatalf("rating 8.2 must step difficulty up, got %s", difficulty)
	}
}

func TestStoreDoubleSubmitIsRejected(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(&fakeEvaluator{evaluation: domain.Evaluation{Rating: 5}}, 0)
	session := store.Create("role", domain.LanguageEnglish, domain.DifficultyMedium, "")
	if _, err := store.AdvanceQuestion(session.ID, "q1"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	if _, err := store.SubmitAnswer(context.Background(), session.ID, "first"); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := store.SubmitAnswer(context.Background(), session.ID, "second"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second submit must be rejected, got %v", err)
	}

	got, _ := store.Get(session.ID)
	if got.Exchanges[0].Answer != "first" {
		t.Fatalf("second submit overwrote closed answer: %q", got.Exchanges[0].Answer)
	}
}

func TestStoreConcurrentSubmitRejectedNotQueued(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	evaluator := &fakeEvaluator{evaluation: domain.Evaluation{Rating: 5}, block: release}
	store, _ := newTestStore(evaluator, 0)
	session := store.Create("role", domain.LanguageEnglish, domain.DifficultyMedium, "")
	if _, err := store.AdvanceQuestion(session.ID, "q1"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := store.SubmitAnswer(context.Background(), session.ID, "slow answer")
		firstDone <- err
	}()

	// Wait until the first submit holds the session's critical section.
	deadline := time.After(2 * time.Second)
	for evaluator.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("first submit never reached the evaluator")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := store.SubmitAnswer(context.Background(), session.ID, "racing answer"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("concurrent submit must be rejected outright, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
}

func TestStoreEvaluationFailureKeepsExchangeOpen(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{err: errors.New("model unavailable")}
	store, _ := newTestStore(evaluator, 0)
	session := store.Create("role", domain.LanguageEnglish, domain.DifficultyHard, "")
	if _, err := store.AdvanceQuestion(session.ID, "q1"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}

	if _, err := store.SubmitAnswer(context.Background(), session.ID, "my answer"); err == nil {
		t.Fatalf("expected evaluation error")
	}

	got, _ := store.Get(session.ID)
	open := got.OpenExchange()
	if open == nil {
		t.Fatalf("exchange must stay open after evaluation failure")
	}
	if open.Answer != "my answer" {
		t.Fatalf("answer text must be preserved for retry, got %q", open.Answer)
	}
	if got.Difficulty != domain.DifficultyHard {
		t.Fatalf("difficulty must not change on failed submit")
	}

	// Retry without re-recording.
	evaluator.setErr(nil)
	evaluator.setEvaluation(domain.Evaluation{Rating: 6})
	if _, err := store.SubmitAnswer(context.Background(), session.ID, open.Answer); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestStoreExpiryBlocksAllOperations(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(&fakeEvaluator{}, 10*time.Minute)
	session := store.Create("role", domain.LanguageEnglish, domain.DifficultyMedium, "")
	store.Expire(session.ID)

	if _, err := store.Get(session.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := store.AdvanceQuestion(session.ID, "q"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := store.SubmitAnswer(context.Background(), session.ID, "a"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestStoreSweepExpiresOnlyStaleSessions(t *testing.T) {
	t.Parallel()

	store, events := newTestStore(&fakeEvaluator{}, time.Minute)
	current := time.Now()
	store.now = func() time.Time { return current }

	stale := store.Create("role", domain.LanguageEnglish, domain.DifficultyMedium, "")
	current = current.Add(2 * time.Minute)
	fresh := store.Create("role", domain.LanguageEnglish, domain.DifficultyMedium, "")

	expired := store.SweepExpired()
	if len(expired) != 1 || expired[0] != stale.ID {
		t.Fatalf("unexpected sweep result: %v", expired)
	}
	if _, err := store.Get(stale.ID); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("stale session must be removed, got %v", err)
	}
	if _, err := store.Get(fresh.ID); err != nil {
		t.Fatalf("fresh session must survive sweep: %v", err)
	}
	if errs := events.snapshotErrors(); len(errs) != 1 || errs[0].code != domain.ErrorCodeSession {
		t.Fatalf("expected one session expiry diagnostic, got %+v", errs)
	}
}

func TestStoreUnknownSession(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(&fakeEvaluator{}, 0)
	if _, err := store.Get("missing"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}
