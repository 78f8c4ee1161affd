package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"support-copilot/internal/config"
	"support-copilot/internal/domain"
)

// Lookup answers from a fixed question table using exact, case-sensitive
// matching, after a simulated processing delay.
type Lookup struct {
	policy  Policy
	answers map[string]config.KnownAnswer
	minWait time.Duration
	maxWait time.Duration
	sleep   func(context.Context, time.Duration) error
}

type LookupOption func(*Lookup)

// WithLatency overrides the simulated delay bounds.
func WithLatency(lo, hi time.Duration) LookupOption {
	return func(l *Lookup) {
		l.minWait, l.maxWait = lo, max(lo, hi)
	}
}

func NewLookup(c config.Copilot, opts ...LookupOption) (*Lookup, error) {
	if c.DefaultAnswer == "" {
		return nil, errors.New("responder: default answer must not be empty")
	}
	l := &Lookup{
		policy:  PolicyFromConfig(c),
		answers: c.AnswerMap(),
		minWait: c.Latency.Min.Std(),
		maxWait: max(c.Latency.Min.Std(), c.Latency.Max.Std()),
		sleep:   sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Lookup) Respond(ctx context.Context, question string, conv domain.Conversation) (domain.Answer, error) {
	if err := l.sleep(ctx, latency(l.minWait, l.maxWait)); err != nil {
		return domain.Answer{}, fmt.Errorf("responder: lookup: %w", err)
	}
	known, ok := l.answers[question]
	if !ok {
		return domain.Answer{Text: l.policy.DefaultAnswer, Sources: l.policy.sources(conv, nil)}, nil
	}
	return domain.Answer{Text: known.Answer, Sources: l.policy.sources(conv, known.Sources)}, nil
}
