package usecase

import (
	"strings"
	"sync"
	"unicode"
)

// AnswerBuilder accumulates validated transcript fragments into the answer
// for the open question. The buffer is reset exactly when a new question's
// exchange opens.
type AnswerBuilder struct {
	mu    sync.Mutex
	parts []string
}

func NewAnswerBuilder() *AnswerBuilder {
	return &AnswerBuilder{}
}

// Append normalizes the fragment and adds it to the buffer. Empty fragments
// are ignored.
func (b *AnswerBuilder) Append(text string) {
	normalized := NormalizeFragment(text)
	if normalized == "" {
		return
	}
	b.mu.Lock()
	b.parts = append(b.parts, normalized)
	b.mu.Unlock()
}

// Answer returns the accumulated answer, fragments joined by single spaces.
func (b *AnswerBuilder) Answer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.parts, " ")
}

// Reset clears the buffer for the next question.
func (b *AnswerBuilder) Reset() {
	b.mu.Lock()
	b.parts = nil
	b.mu.Unlock()
}

// NormalizeFragment trims surrounding whitespace, capitalizes the first
// letter and any letter opening a new sentence, and guarantees terminal
// sentence punctuation. The transform is idempotent: normalizing already
// normalized text yields it unchanged.
func NormalizeFragment(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	runes := []rune(trimmed)
	startOfSentence := true
	for i, r := range runes {
		if startOfSentence && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			startOfSentence = false
			continue
		}
		switch {
		case isSentenceEnd(r):
			startOfSentence = true
		case unicode.IsSpace(r):
			// Sentence boundary persists across whitespace.
		default:
			startOfSentence = false
		}
	}

	if !isSentenceEnd(runes[len(runes)-1]) {
		runes = append(runes, '.')
	}
	return string(runes)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
