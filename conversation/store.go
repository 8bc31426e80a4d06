// Append-only conversation state store.
//
// Information Hiding:
// - Ordinal assignment hidden behind Append
// - All mutation serialized by one mutex; readers only ever get deep copies
// - Guarded-value commits exposed separately so the checkpoint gate is the
//   only writer of approved values

package conversation

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrConversationTerminated rejects writes after the termination flag is set.
	ErrConversationTerminated = errors.New("conversation terminated")
	// ErrCheckpointPending rejects phase advances while a confirmation is outstanding.
	ErrCheckpointPending = errors.New("checkpoint pending")
)

// Store owns one conversation's state for its whole lifecycle. Created at
// conversation start, torn down at termination; nothing mutates the state
// except through its methods.
type Store struct {
	mu sync.Mutex

	id         string
	messages   []Message
	step       string
	pending    map[string]bool
	values     map[string]string
	terminated bool
	reason     string
}

// NewStore creates an empty store. An empty id gets a generated one.
func NewStore(id string) *Store {
	if id == "" {
		id = uuid.NewString()
	}
	return &Store{
		id:      id,
		pending: make(map[string]bool),
		values:  make(map[string]string),
	}
}

// Restore rebuilds a store from a persisted view, for resuming a
// conversation across processes. Pending checkpoint markers are not
// restored: the gate that requested them is gone, and the controller
// re-requests confirmation for any step still waiting on one.
func Restore(view View) *Store {
	s := NewStore(view.ConversationID)
	s.step = view.Step
	s.terminated = view.Terminated
	s.reason = view.TerminationReason
	for k, v := range view.Values {
		s.values[k] = v
	}
	s.messages = make([]Message, len(view.Messages))
	for i, m := range view.Messages {
		s.messages[i] = m.clone()
	}
	return s
}

// ID returns the conversation identifier.
func (s *Store) ID() string {
	return s.id
}

// Append assigns the next ordinal and the current step, then appends.
// Fails once the termination flag is set.
func (s *Store) Append(msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return Message{}, ErrConversationTerminated
	}

	msg.Ordinal = len(s.messages)
	if msg.Step == "" {
		msg.Step = s.step
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// AdvancePhase moves the step marker. Fails while any checkpoint is pending,
// so a step that requires confirmation cannot be walked past.
func (s *Store) AdvancePhase(step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return ErrConversationTerminated
	}
	if len(s.pending) > 0 {
		return ErrCheckpointPending
	}
	s.step = step
	return nil
}

// Step returns the current step marker.
func (s *Store) Step() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// RecordCheckpoint marks a checkpoint as awaiting a human decision.
func (s *Store) RecordCheckpoint(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return ErrConversationTerminated
	}
	s.pending[id] = true
	return nil
}

// ResolveCheckpoint clears a pending checkpoint.
func (s *Store) ResolveCheckpoint(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// CommitValue records an approved guarded value. Only the checkpoint gate
// calls this, after an approval event has been appended.
func (s *Store) CommitValue(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Value returns a committed guarded value.
func (s *Store) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Terminate sets the termination flag. Further Append, AdvancePhase, and
// Terminate calls fail.
func (s *Store) Terminate(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return ErrConversationTerminated
	}
	s.terminated = true
	s.reason = reason
	return nil
}

// Terminated reports the flag and the recorded reason.
func (s *Store) Terminated() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated, s.reason
}

// Len returns the number of appended messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Snapshot returns a read-only deep copy. Two snapshots with no intervening
// write are equal.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]Message, len(s.messages))
	for i, m := range s.messages {
		msgs[i] = m.clone()
	}

	pending := make([]string, 0, len(s.pending))
	for id := range s.pending {
		pending = append(pending, id)
	}
	sort.Strings(pending)

	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}

	return View{
		ConversationID:     s.id,
		Step:               s.step,
		Terminated:         s.terminated,
		TerminationReason:  s.reason,
		PendingCheckpoints: pending,
		Values:             values,
		Messages:           msgs,
	}
}
