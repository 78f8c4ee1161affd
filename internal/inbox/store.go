package inbox

import (
	"slices"

	"support-copilot/internal/domain"
)

// Store is the append-only message log of one conversation. It is not safe
// for concurrent use; the Registry serialises access.
type Store struct {
	msgs []domain.Message
}

// NewStore returns a store holding msgs in the given order.
func NewStore(msgs []domain.Message) *Store {
	return &Store{msgs: slices.Clone(msgs)}
}

// Append adds msg at the end of the log.
func (s *Store) Append(msg domain.Message) {
	s.msgs = append(s.msgs, msg)
}

// All returns the messages in order. The slice is a copy.
func (s *Store) All() []domain.Message {
	return slices.Clone(s.msgs)
}

func (s *Store) Len() int {
	return len(s.msgs)
}
