// Package inbox holds the support inbox: the conversations, their message
// logs and the current selection.
package inbox

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"support-copilot/internal/copilot"
	"support-copilot/internal/domain"
)

const agentAvatar = "A"

var (
	ErrNotFound    = errors.New("inbox: conversation not found")
	ErrInvalidRole = errors.New("inbox: invalid sender role")
)

type thread struct {
	meta    domain.Conversation // Messages is always nil; the store owns them
	store   *Store
	session *copilot.Session
}

// Registry owns the conversations and tracks which one is selected. The
// selection is an index into the owned slice, never a copy.
type Registry struct {
	mu       sync.RWMutex
	threads  []*thread
	index    map[int]int // conversation id → position
	selected int
	logger   *slog.Logger
}

type Option func(*options)

type options struct {
	logger      *slog.Logger
	suggestions []string
}

// WithLogger sets the logger used by the registry and its copilot sessions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSuggestions sets the prompts every copilot session offers up front.
func WithSuggestions(prompts []string) Option {
	return func(o *options) { o.suggestions = prompts }
}

// New builds a registry from seed conversations. The first conversation is
// selected. Each conversation gets its own copilot session backed by r.
func New(seed []domain.Conversation, r copilot.Responder, opts ...Option) (*Registry, error) {
	if len(seed) == 0 {
		return nil, errors.New("inbox: at least one conversation is required")
	}
	if r == nil {
		return nil, errors.New("inbox: responder must not be nil")
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	reg := &Registry{
		threads: make([]*thread, 0, len(seed)),
		index:   make(map[int]int, len(seed)),
		logger:  o.logger,
	}
	for i, c := range seed {
		if _, dup := reg.index[c.ID]; dup {
			return nil, fmt.Errorf("inbox: duplicate conversation id %d", c.ID)
		}
		msgs, err := sequence(c.Messages)
		if err != nil {
			return nil, fmt.Errorf("inbox: conversation %d: %w", c.ID, err)
		}

		meta := c
		meta.Messages = nil
		meta.Sources = slices.Clone(c.Sources)
		th := &thread{meta: meta, store: NewStore(msgs)}

		pos := i
		th.session, err = copilot.NewSession(r, func() domain.Conversation { return reg.snapshotAt(pos) },
			copilot.WithLogger(o.logger.With("conversation", c.ID)),
			copilot.WithSuggestions(o.suggestions),
		)
		if err != nil {
			return nil, fmt.Errorf("inbox: conversation %d: %w", c.ID, err)
		}

		reg.index[c.ID] = i
		reg.threads = append(reg.threads, th)
	}
	return reg, nil
}

// sequence checks roles and message ids. A zero id is assigned from the
// message position; any other id must equal position+1.
func sequence(msgs []domain.Message) ([]domain.Message, error) {
	out := slices.Clone(msgs)
	for i := range out {
		if !out[i].Sender.Valid() {
			return nil, fmt.Errorf("%w %q", ErrInvalidRole, out[i].Sender)
		}
		switch out[i].ID {
		case 0:
			out[i].ID = i + 1
		case i + 1:
		default:
			return nil, fmt.Errorf("inbox: message id %d at position %d is out of sequence", out[i].ID, i+1)
		}
	}
	return out, nil
}

// List returns every conversation in insertion order.
func (r *Registry) List() []domain.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Conversation, 0, len(r.threads))
	for i := range r.threads {
		out = append(out, r.snapshotLocked(i))
	}
	return out
}

// Get returns the conversation with the given id.
func (r *Registry) Get(id int) (domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index[id]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return r.snapshotLocked(pos), nil
}

// Select makes id the current conversation. On error the selection is
// unchanged.
func (r *Registry) Select(id int) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if pos != r.selected {
		r.selected = pos
		r.logger.Debug("conversation selected", "conversation", id)
	}
	return r.snapshotLocked(pos), nil
}

// Current returns the selected conversation.
func (r *Registry) Current() domain.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(r.selected)
}

// MessageOption sets display fields of an appended message. Ids and sender
// roles are owned by the registry.
type MessageOption func(*messageDisplay)

type messageDisplay struct {
	time   string
	avatar string
}

// WithTime sets the display time label of an appended message.
func WithTime(label string) MessageOption {
	return func(d *messageDisplay) { d.time = label }
}

// WithAvatar overrides the sender avatar of an appended message.
func WithAvatar(avatar string) MessageOption {
	return func(d *messageDisplay) { d.avatar = avatar }
}

// AppendMessage adds a message to conversation id. Its id is the previous
// message count plus one.
func (r *Registry) AppendMessage(id int, role domain.SenderRole, content string, opts ...MessageOption) (domain.Message, error) {
	if !role.Valid() {
		return domain.Message{}, fmt.Errorf("%w %q", ErrInvalidRole, role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	th := r.threads[pos]

	display := messageDisplay{avatar: th.meta.Avatar}
	if role == domain.SenderAgent {
		display.avatar = agentAvatar
	}
	for _, opt := range opts {
		opt(&display)
	}
	msg := domain.Message{
		ID:      th.store.Len() + 1,
		Sender:  role,
		Content: content,
		Time:    display.time,
		Avatar:  display.avatar,
	}
	th.store.Append(msg)

	r.logger.Info("message appended", "conversation", id, "message", msg.ID, "sender", role)
	return msg, nil
}

// Session returns the copilot session owned by conversation id.
func (r *Registry) Session(id int) (*copilot.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return r.threads[pos].session, nil
}

func (r *Registry) snapshotAt(pos int) domain.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(pos)
}

func (r *Registry) snapshotLocked(pos int) domain.Conversation {
	th := r.threads[pos]
	c := th.meta
	c.Sources = slices.Clone(th.meta.Sources)
	c.Messages = th.store.All()
	return c
}
