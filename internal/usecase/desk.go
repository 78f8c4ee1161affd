package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"support-copilot/internal/copilot"
	"support-copilot/internal/domain"
	"support-copilot/internal/inbox"
	"support-copilot/internal/rephrase"
)

const timeLabelLayout = "15:04"

// Inbox is the conversation registry the desk drives.
type Inbox interface {
	List() []domain.Conversation
	Get(id int) (domain.Conversation, error)
	Select(id int) (domain.Conversation, error)
	Current() domain.Conversation
	AppendMessage(id int, role domain.SenderRole, content string, opts ...inbox.MessageOption) (domain.Message, error)
	Session(id int) (*copilot.Session, error)
}

// Desk is the agent-facing service: one inbox, one composer and at most one
// open rephrase editor.
type Desk struct {
	id     string
	inbox  Inbox
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	composer string
	draft    *rephrase.Draft
}

type SendOutput struct {
	Message domain.Message
	Sent    bool
}

type AskOutput struct {
	ConversationID int
	Record         domain.Record
	Accepted       bool
}

type Option func(*Desk)

// WithClock sets the clock used for message time labels.
func WithClock(now func() time.Time) Option {
	return func(d *Desk) {
		if now != nil {
			d.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Desk) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDesk(in Inbox, opts ...Option) (*Desk, error) {
	if in == nil {
		return nil, errors.New("usecase: inbox must not be nil")
	}
	d := &Desk{
		id:     newUUID(),
		inbox:  in,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("desk", d.id)
	return d, nil
}

// ID identifies this desk instance in logs and responses.
func (d *Desk) ID() string {
	return d.id
}

// Conversations lists the inbox in display order.
func (d *Desk) Conversations() []domain.Conversation {
	return d.inbox.List()
}

// Conversation returns one conversation with its messages, without
// changing the selection.
func (d *Desk) Conversation(id int) (domain.Conversation, error) {
	conv, err := d.inbox.Get(id)
	if err != nil {
		return domain.Conversation{}, classify("get_error", err)
	}
	return conv, nil
}

func (d *Desk) Selected() domain.Conversation {
	return d.inbox.Current()
}

// Thread returns the messages of the selected conversation.
func (d *Desk) Thread() []domain.Message {
	return d.inbox.Current().Messages
}

func (d *Desk) SelectConversation(id int) (domain.Conversation, error) {
	conv, err := d.inbox.Select(id)
	if err != nil {
		return domain.Conversation{}, classify("select_error", err)
	}
	d.logger.Info("conversation selected", "conversation", id)
	return conv, nil
}

// SendMessage appends text to the selected conversation as the agent and
// clears the composer. Blank text is ignored.
func (d *Desk) SendMessage(text string) (SendOutput, error) {
	if strings.TrimSpace(text) == "" {
		return SendOutput{}, nil
	}
	conv := d.inbox.Current()
	msg, err := d.inbox.AppendMessage(conv.ID, domain.SenderAgent, text,
		inbox.WithTime(d.now().Format(timeLabelLayout)),
	)
	if err != nil {
		return SendOutput{}, classify("append_error", err)
	}

	d.mu.Lock()
	d.composer = ""
	d.mu.Unlock()

	d.logger.Info("agent message sent", "conversation", conv.ID, "message", msg.ID)
	return SendOutput{Message: msg, Sent: true}, nil
}

// AskCopilot asks the selected conversation's copilot. The answer is
// generated in the background; use WaitCopilot to block for it.
func (d *Desk) AskCopilot(ctx context.Context, question string) (AskOutput, error) {
	conv := d.inbox.Current()
	s, err := d.inbox.Session(conv.ID)
	if err != nil {
		return AskOutput{}, classify("session_error", err)
	}
	rec, ok := s.Ask(ctx, question)
	if !ok {
		return AskOutput{}, nil
	}
	return AskOutput{ConversationID: conv.ID, Record: rec, Accepted: true}, nil
}

// WaitCopilot blocks until record id of conversation convID settles. The
// selection is not consulted. A failed record is returned together with a
// RESPONDER_FAILURE error. When ctx ends first the still-generating record
// comes back with the context error.
func (d *Desk) WaitCopilot(ctx context.Context, convID, id int) (domain.Record, error) {
	s, err := d.inbox.Session(convID)
	if err != nil {
		return domain.Record{}, classify("session_error", err)
	}
	rec, err := s.Wait(ctx, id)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return rec, fmt.Errorf("usecase: wait for record %d: %w", id, err)
	case err != nil:
		return domain.Record{}, classify("wait_error", err)
	case rec.State == domain.StateFailed:
		return rec, newError(ErrorResponderFailure, "responder_failed", errors.New(rec.Err))
	}
	return rec, nil
}

// CopilotRecords lists the selected conversation's copilot records.
func (d *Desk) CopilotRecords() ([]domain.Record, error) {
	s, err := d.currentSession()
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// CopilotGenerating reports whether the selected conversation has an answer
// in flight.
func (d *Desk) CopilotGenerating() bool {
	s, err := d.currentSession()
	if err != nil {
		return false
	}
	return s.Generating()
}

func (d *Desk) Suggestions() []string {
	s, err := d.currentSession()
	if err != nil {
		return nil
	}
	return s.Suggestions()
}

func (d *Desk) currentSession() (*copilot.Session, error) {
	s, err := d.inbox.Session(d.inbox.Current().ID)
	if err != nil {
		return nil, classify("session_error", err)
	}
	return s, nil
}

// SetComposer replaces the reply being composed.
func (d *Desk) SetComposer(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.composer = text
}

func (d *Desk) Composer() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.composer
}

// OpenEditor starts a rephrase draft from text, or from the composer when
// text is empty. An editor already open is replaced.
func (d *Desk) OpenEditor(text string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text == "" {
		text = d.composer
	}
	d.draft = rephrase.NewDraft(text)
	return d.draft.Text()
}

// ApplyTextTransform rewrites the open draft and returns the result.
func (d *Desk) ApplyTextTransform(dir rephrase.Directive) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draft == nil {
		return "", newError(ErrorInvalidInput, "editor_closed", nil)
	}
	out := d.draft.Transform(dir)
	d.logger.Debug("draft rephrased", "directive", dir)
	return out, nil
}

// EditDraft replaces the open draft with hand-edited text.
func (d *Desk) EditDraft(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draft == nil {
		return newError(ErrorInvalidInput, "editor_closed", nil)
	}
	d.draft.Set(text)
	return nil
}

// CommitEditor moves the draft into the composer and closes the editor.
func (d *Desk) CommitEditor() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draft == nil {
		return "", newError(ErrorInvalidInput, "editor_closed", nil)
	}
	d.composer = d.draft.Text()
	d.draft = nil
	return d.composer, nil
}

// CloseEditor discards the draft. The composer is untouched.
func (d *Desk) CloseEditor() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft = nil
}

// EditorOpen reports whether a draft is being rephrased.
func (d *Desk) EditorOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft != nil
}

var newUUID = func() string {
	return uuid.NewString()
}
