// Package copilot drives the question → generating → answered lifecycle of
// the AI assist panel for a single conversation.
package copilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"support-copilot/internal/domain"
)

// ErrRecordNotFound is returned when a record id is unknown to the session.
var ErrRecordNotFound = errors.New("copilot: record not found")

// Responder answers a copilot question about a conversation. Respond blocks
// until the answer is settled; the session supplies the asynchrony.
type Responder interface {
	Respond(ctx context.Context, question string, conv domain.Conversation) (domain.Answer, error)
}

// ConversationFunc returns a snapshot of the conversation owning a session.
type ConversationFunc func() domain.Conversation

type entry struct {
	rec  domain.Record
	done chan struct{}
}

// Session is the ordered, append-only list of copilot records for one
// conversation.
type Session struct {
	responder   Responder
	conv        ConversationFunc
	suggestions []string
	logger      *slog.Logger

	mu      sync.Mutex
	records []*entry
}

type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSuggestions sets the prompts offered before the first question.
func WithSuggestions(prompts []string) Option {
	return func(s *Session) {
		s.suggestions = slices.Clone(prompts)
	}
}

func NewSession(r Responder, conv ConversationFunc, opts ...Option) (*Session, error) {
	if r == nil {
		return nil, errors.New("copilot: responder must not be nil")
	}
	if conv == nil {
		return nil, errors.New("copilot: conversation func must not be nil")
	}
	s := &Session{
		responder: r,
		conv:      conv,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ask records question and starts generating an answer for it. Blank
// questions are ignored and reported with ok=false. The returned record is a
// snapshot taken once the record is generating.
//
// The responder call runs detached from ctx: there is no cancellation and no
// timeout, so a responder that never returns leaves the record generating.
func (s *Session) Ask(ctx context.Context, question string) (rec domain.Record, ok bool) {
	if strings.TrimSpace(question) == "" {
		return domain.Record{}, false
	}

	s.mu.Lock()
	e := &entry{
		rec: domain.Record{
			ID:       len(s.records) + 1,
			Question: question,
			State:    domain.StatePending,
		},
		done: make(chan struct{}),
	}
	s.records = append(s.records, e)
	s.advance(e, domain.StateGenerating)
	rec = snapshot(e)
	s.mu.Unlock()

	conv := s.conv()
	s.logger.Info("copilot question asked", "record", rec.ID)

	go s.generate(context.WithoutCancel(ctx), e, conv)
	return rec, true
}

func (s *Session) generate(ctx context.Context, e *entry, conv domain.Conversation) {
	answer, err := s.respond(ctx, e.rec.Question, conv)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.advance(e, domain.StateFailed) {
			e.rec.Err = err.Error()
		}
		s.logger.Error("copilot responder failed", "record", e.rec.ID, "err", err)
	} else if s.advance(e, domain.StateComplete) {
		e.rec.Answer = answer.Text
		e.rec.Sources = slices.Clone(answer.Sources)
		s.logger.Info("copilot answer ready", "record", e.rec.ID, "sources", len(answer.Sources))
	}
	if e.rec.State.Terminal() {
		close(e.done)
	}
}

// respond shields the session from a panicking responder.
func (s *Session) respond(ctx context.Context, question string, conv domain.Conversation) (answer domain.Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("copilot: responder panic: %v", r)
		}
	}()
	return s.responder.Respond(ctx, question, conv)
}

// advance moves e to next if the transition is legal. Callers hold s.mu.
func (s *Session) advance(e *entry, next domain.State) bool {
	if !e.rec.State.CanTransition(next) {
		s.logger.Warn("copilot illegal state transition", "record", e.rec.ID, "from", e.rec.State, "to", next)
		return false
	}
	e.rec.State = next
	return true
}

// Records returns the records in creation order.
func (s *Session) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Record, 0, len(s.records))
	for _, e := range s.records {
		out = append(out, snapshot(e))
	}
	return out
}

// Record returns the record with the given id.
func (s *Session) Record(id int) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}
	return snapshot(e), nil
}

// Wait blocks until record id settles or ctx is done. Giving up on the wait
// does not affect the in-flight responder call.
func (s *Session) Wait(ctx context.Context, id int) (domain.Record, error) {
	s.mu.Lock()
	e, err := s.lookup(id)
	s.mu.Unlock()
	if err != nil {
		return domain.Record{}, err
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		rec, _ := s.Record(id)
		return rec, ctx.Err()
	}
	return s.Record(id)
}

// Generating reports whether any record is still waiting for its answer.
func (s *Session) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.records {
		if !e.rec.State.Terminal() {
			return true
		}
	}
	return false
}

// Suggestions returns the suggested prompts. They are only offered while the
// session is empty.
func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) > 0 {
		return nil
	}
	return slices.Clone(s.suggestions)
}

func (s *Session) lookup(id int) (*entry, error) {
	if id < 1 || id > len(s.records) {
		return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return s.records[id-1], nil
}

func snapshot(e *entry) domain.Record {
	rec := e.rec
	rec.Sources = slices.Clone(e.rec.Sources)
	return rec
}
