package inbox

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-copilot/internal/domain"
)

type echoResponder struct{}

func (echoResponder) Respond(_ context.Context, question string, conv domain.Conversation) (domain.Answer, error) {
	return domain.Answer{Text: conv.Name + ": " + question, Sources: conv.Sources}, nil
}

func seed() []domain.Conversation {
	return []domain.Conversation{
		{
			ID: 1, Name: "Luis Easton", Avatar: "LE", Status: "Open",
			Sources: []string{"Getting a refund"},
			Messages: []domain.Message{
				{ID: 1, Sender: domain.SenderCustomer, Content: "I bought a product..."},
				{ID: 2, Sender: domain.SenderAgent, Content: "Let me just look into this for you, Luis."},
			},
		},
		{
			ID: 2, Name: "Dan Mills", Avatar: "DM",
			Messages: []domain.Message{
				{Sender: domain.SenderCustomer, Content: "Hi there, I have a question about my recent order."},
			},
		},
		{ID: 3, Name: "Lead from New York", Avatar: "LN"},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(seed(), echoResponder{})
	require.NoError(t, err)
	return r
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, echoResponder{})
	require.Error(t, err)

	_, err = New(seed(), nil)
	require.Error(t, err)

	dup := seed()
	dup[1].ID = 1
	_, err = New(dup, echoResponder{})
	require.ErrorContains(t, err, "duplicate")

	badRole := seed()
	badRole[0].Messages[0].Sender = "bot"
	_, err = New(badRole, echoResponder{})
	require.ErrorIs(t, err, ErrInvalidRole)

	badID := seed()
	badID[0].Messages[1].ID = 7
	_, err = New(badID, echoResponder{})
	require.ErrorContains(t, err, "out of sequence")
}

func TestNew_AssignsMissingMessageIDs(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Get(2)
	require.NoError(t, err)
	require.Equal(t, 1, c.Messages[0].ID)
}

func TestList_InsertionOrder(t *testing.T) {
	r := newTestRegistry(t)
	list := r.List()
	require.Len(t, list, 3)
	require.Equal(t, []int{1, 2, 3}, []int{list[0].ID, list[1].ID, list[2].ID})
	require.Len(t, list[0].Messages, 2)
}

func TestCurrent_DefaultsToFirst(t *testing.T) {
	r := newTestRegistry(t)
	require.Equal(t, 1, r.Current().ID)
}

func TestSelect(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Select(2)
	require.NoError(t, err)
	require.Equal(t, "Dan Mills", c.Name)
	require.Equal(t, 2, r.Current().ID)

	again, err := r.Select(2)
	require.NoError(t, err)
	require.Equal(t, c, again)
	require.Equal(t, 2, r.Current().ID)
}

func TestSelect_UnknownLeavesSelection(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Select(3)
	require.NoError(t, err)

	_, err = r.Select(99)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 3, r.Current().ID)
}

func TestAppendMessage(t *testing.T) {
	r := newTestRegistry(t)

	for _, c := range r.List() {
		before := len(c.Messages)
		msg, err := r.AppendMessage(c.ID, domain.SenderAgent, "OK", WithTime("15:04"))
		require.NoError(t, err)
		require.Equal(t, before+1, msg.ID)
		require.Equal(t, "A", msg.Avatar)
		require.Equal(t, "15:04", msg.Time)

		after, err := r.Get(c.ID)
		require.NoError(t, err)
		require.Len(t, after.Messages, before+1)
		require.Equal(t, msg, after.Messages[before])
	}
}

func TestAppendMessage_OnlyTargetChanges(t *testing.T) {
	r := newTestRegistry(t)
	before := r.List()

	_, err := r.AppendMessage(2, domain.SenderCustomer, "Any update?")
	require.NoError(t, err)

	after := r.List()
	require.Equal(t, before[0], after[0])
	require.Equal(t, before[2], after[2])
	require.Len(t, after[1].Messages, 2)
	require.Equal(t, "DM", after[1].Messages[1].Avatar)
}

func TestAppendMessage_VisibleThroughSelection(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.AppendMessage(1, domain.SenderAgent, "OK")
	require.NoError(t, err)
	require.Len(t, r.Current().Messages, 3)
}

func TestAppendMessage_Errors(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.AppendMessage(42, domain.SenderAgent, "OK")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.AppendMessage(1, "system", "OK")
	require.ErrorIs(t, err, ErrInvalidRole)
	c, _ := r.Get(1)
	require.Len(t, c.Messages, 2)
}

func TestAppendMessage_OptionsOnlySetDisplayFields(t *testing.T) {
	r := newTestRegistry(t)

	msg, err := r.AppendMessage(1, domain.SenderCustomer, "hi", WithTime("1min"), WithAvatar("??"))
	require.NoError(t, err)
	require.Equal(t, 3, msg.ID)
	require.Equal(t, domain.SenderCustomer, msg.Sender)
	require.Equal(t, "1min", msg.Time)
	require.Equal(t, "??", msg.Avatar)

	next, err := r.AppendMessage(1, domain.SenderAgent, "hello", WithTime("15:05"))
	require.NoError(t, err)
	require.Equal(t, 4, next.ID)
	require.Equal(t, "A", next.Avatar)

	c, err := r.Get(1)
	require.NoError(t, err)
	for i, m := range c.Messages {
		require.Equal(t, i+1, m.ID)
		require.True(t, m.Sender.Valid())
	}
}

func TestAppendMessage_KeepsEmbeddedLineBreaks(t *testing.T) {
	r := newTestRegistry(t)
	body := "Just a heads-up:\nline\nline\n\nend"
	msg, err := r.AppendMessage(1, domain.SenderAgent, body)
	require.NoError(t, err)
	require.Equal(t, 4, strings.Count(msg.Content, "\n"))
}

func TestSnapshotsAreIsolated(t *testing.T) {
	r := newTestRegistry(t)
	c := r.Current()
	c.Messages[0].Content = "mutated"
	c.Sources[0] = "mutated"

	fresh := r.Current()
	require.Equal(t, "I bought a product...", fresh.Messages[0].Content)
	require.Equal(t, "Getting a refund", fresh.Sources[0])
}

func TestSession_PerConversation(t *testing.T) {
	r := newTestRegistry(t)

	s1, err := r.Session(1)
	require.NoError(t, err)
	s2, err := r.Session(2)
	require.NoError(t, err)
	require.NotSame(t, s1, s2)

	_, err = r.Session(9)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = r.AppendMessage(1, domain.SenderAgent, "OK")
	require.NoError(t, err)

	rec, ok := s1.Ask(context.Background(), "status?")
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done, err := s1.Wait(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "Luis Easton: status?", done.Answer)
	require.Equal(t, []string{"Getting a refund"}, done.Sources)
	require.Empty(t, s2.Records())
}

func TestSessionLogsCarryConversationOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r, err := New(seed(), echoResponder{}, WithLogger(logger))
	require.NoError(t, err)

	s, err := r.Session(2)
	require.NoError(t, err)
	rec, ok := s.Ask(context.Background(), "status?")
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = s.Wait(ctx, rec.ID)
	require.NoError(t, err)

	lines := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.Contains(line, "copilot") {
			continue
		}
		lines++
		require.Equal(t, 1, strings.Count(line, "conversation=2"), line)
	}
	require.Equal(t, 2, lines)
}

func TestStore(t *testing.T) {
	s := NewStore(nil)
	require.Equal(t, 0, s.Len())
	s.Append(domain.Message{ID: 1, Content: "a"})
	s.Append(domain.Message{ID: 2, Content: "b"})
	all := s.All()
	require.Equal(t, []string{"a", "b"}, []string{all[0].Content, all[1].Content})
	all[0].Content = "mutated"
	require.Equal(t, "a", s.All()[0].Content)
}
