package responder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-copilot/internal/config"
	"support-copilot/internal/domain"
)

const refundQ = "How do I get a refund?"

func copilotConfig() config.Copilot {
	return config.Copilot{
		Answers: []config.KnownAnswer{
			{Question: refundQ, Answer: "Please share your order ID."},
			{Question: "Custom sources?", Answer: "yes", Sources: []string{"s4", "elsewhere"}},
		},
		DefaultAnswer: "I'd be happy to help you with that question.",
		Sources:       []string{"s1", "s2", "s3", "s4", "s5"},
		SourceCount:   3,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestLookup(t *testing.T, opts ...LookupOption) *Lookup {
	t.Helper()
	l, err := NewLookup(copilotConfig(), opts...)
	require.NoError(t, err)
	l.sleep = noSleep
	return l
}

func TestNewLookup_RequiresDefaultAnswer(t *testing.T) {
	c := copilotConfig()
	c.DefaultAnswer = ""
	_, err := NewLookup(c)
	require.Error(t, err)
}

func TestLookup_ExactMatch(t *testing.T) {
	l := newTestLookup(t)

	got, err := l.Respond(context.Background(), refundQ, domain.Conversation{})
	require.NoError(t, err)
	require.Equal(t, "Please share your order ID.", got.Text)
	require.Equal(t, []string{"s1", "s2", "s3"}, got.Sources)
}

func TestLookup_CaseSensitiveFallsBackToDefault(t *testing.T) {
	l := newTestLookup(t)

	for _, q := range []string{strings.ToLower(refundQ), refundQ + " ", "Where is my parcel?"} {
		got, err := l.Respond(context.Background(), q, domain.Conversation{})
		require.NoError(t, err)
		require.Equal(t, "I'd be happy to help you with that question.", got.Text, q)
		require.Len(t, got.Sources, 3)
	}
}

func TestLookup_SourcePoolPrecedence(t *testing.T) {
	l := newTestLookup(t)

	conv := domain.Conversation{Sources: []string{"c1", "c2", "c3", "c4"}}
	got, err := l.Respond(context.Background(), refundQ, conv)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2", "c3"}, got.Sources)

	got, err = l.Respond(context.Background(), "Custom sources?", domain.Conversation{})
	require.NoError(t, err)
	require.Equal(t, []string{"s4"}, got.Sources)

	got, err = l.Respond(context.Background(), "Custom sources?", conv)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2", "c3"}, got.Sources)

	short := domain.Conversation{Sources: []string{"only"}}
	got, err = l.Respond(context.Background(), refundQ, short)
	require.NoError(t, err)
	require.Equal(t, []string{"only"}, got.Sources)
}

func TestLookup_SourcesAreCopies(t *testing.T) {
	l := newTestLookup(t)
	got, err := l.Respond(context.Background(), refundQ, domain.Conversation{})
	require.NoError(t, err)
	got.Sources[0] = "mutated"

	again, err := l.Respond(context.Background(), refundQ, domain.Conversation{})
	require.NoError(t, err)
	require.Equal(t, "s1", again.Sources[0])
}

func TestLookup_SleepsWithinBounds(t *testing.T) {
	var waited []time.Duration
	l := newTestLookup(t, WithLatency(10*time.Millisecond, 30*time.Millisecond))
	l.sleep = func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	for range 20 {
		_, err := l.Respond(context.Background(), refundQ, domain.Conversation{})
		require.NoError(t, err)
	}
	for _, d := range waited {
		require.GreaterOrEqual(t, d, 10*time.Millisecond)
		require.LessOrEqual(t, d, 30*time.Millisecond)
	}
}

func TestLookup_RealDelay(t *testing.T) {
	l, err := NewLookup(copilotConfig(), WithLatency(20*time.Millisecond, 20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Respond(context.Background(), refundQ, domain.Conversation{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestLookup_ContextCancelledDuringDelay(t *testing.T) {
	l, err := NewLookup(copilotConfig(), WithLatency(time.Hour, time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Respond(ctx, refundQ, domain.Conversation{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPolicyFromConfig_DefaultsSourceCount(t *testing.T) {
	c := copilotConfig()
	c.SourceCount = 0
	require.Equal(t, config.DefaultSourceCount, PolicyFromConfig(c).SourceCount)
}

type fakeStore struct {
	answer domain.Answer
	found  bool
	err    error
	asked  string
}

func (f *fakeStore) FindAnswer(_ context.Context, question string) (domain.Answer, bool, error) {
	f.asked = question
	return f.answer, f.found, f.err
}

func TestNewKnowledgeBase_Validates(t *testing.T) {
	_, err := NewKnowledgeBase(nil, copilotConfig())
	require.Error(t, err)

	c := copilotConfig()
	c.DefaultAnswer = ""
	_, err = NewKnowledgeBase(&fakeStore{}, c)
	require.Error(t, err)
}

func TestKnowledgeBase_Hit(t *testing.T) {
	store := &fakeStore{found: true, answer: domain.Answer{Text: "from table"}}
	kb, err := NewKnowledgeBase(store, copilotConfig())
	require.NoError(t, err)

	got, err := kb.Respond(context.Background(), refundQ, domain.Conversation{})
	require.NoError(t, err)
	require.Equal(t, refundQ, store.asked)
	require.Equal(t, "from table", got.Text)
	require.Len(t, got.Sources, 3)
}

func TestKnowledgeBase_SourcesStayInsidePool(t *testing.T) {
	store := &fakeStore{found: true, answer: domain.Answer{Text: "from table", Sources: []string{"c2", "unlisted"}}}
	kb, err := NewKnowledgeBase(store, copilotConfig())
	require.NoError(t, err)

	conv := domain.Conversation{Sources: []string{"c1", "c2", "c3", "c4"}}
	got, err := kb.Respond(context.Background(), refundQ, conv)
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, got.Sources)

	store.answer.Sources = []string{"unlisted"}
	got, err = kb.Respond(context.Background(), refundQ, conv)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2", "c3"}, got.Sources)
}

func TestKnowledgeBase_MissUsesDefault(t *testing.T) {
	kb, err := NewKnowledgeBase(&fakeStore{}, copilotConfig())
	require.NoError(t, err)

	got, err := kb.Respond(context.Background(), "unknown", domain.Conversation{})
	require.NoError(t, err)
	require.Equal(t, copilotConfig().DefaultAnswer, got.Text)
}

func TestKnowledgeBase_StoreError(t *testing.T) {
	kb, err := NewKnowledgeBase(&fakeStore{err: errors.New("throttled")}, copilotConfig())
	require.NoError(t, err)

	_, err = kb.Respond(context.Background(), refundQ, domain.Conversation{})
	require.ErrorContains(t, err, "throttled")
}
