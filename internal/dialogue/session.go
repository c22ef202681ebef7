// Package dialogue turns utterances into task operations. It holds the
// conversation state machine: a parsed intent either executes immediately or
// parks in the session's single pending slot (a confirmation or a
// disambiguation) until the next utterance resolves it.
package dialogue

import (
	"sync"

	"github.com/google/uuid"

	"voxtask/internal/intent"
	"voxtask/internal/store"
)

type PendingKind string

const (
	PendingConfirmation   PendingKind = "confirmation"
	PendingDisambiguation PendingKind = "disambiguation"
)

// Pending is an in-flight interaction waiting on the user's next utterance.
// A confirmation names one task; a disambiguation carries the candidate list
// exactly as it was shown, so positional answers stay stable.
type Pending struct {
	Kind       PendingKind
	Action     intent.Action
	TaskID     string
	TaskTitle  string
	NewContent string
	Candidates []store.Task
	Prompt     string
}

// Session is one conversation. It owns at most one Pending at a time; the
// mutex serializes utterances so two responses never race for the same slot.
type Session struct {
	ID string

	mu      sync.Mutex
	pending *Pending
}

func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Pending returns a copy of the in-flight interaction, or nil when idle.
func (s *Session) Pending() *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	p.Candidates = append([]store.Task(nil), s.pending.Candidates...)
	return &p
}

// Reset drops any pending interaction and returns whether one was dropped.
func (s *Session) Reset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.pending != nil
	s.pending = nil
	return had
}
