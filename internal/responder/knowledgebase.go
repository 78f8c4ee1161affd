package responder

import (
	"context"
	"errors"
	"fmt"

	"support-copilot/internal/config"
	"support-copilot/internal/domain"
)

// AnswerStore finds the stored answer for an exact question.
type AnswerStore interface {
	FindAnswer(ctx context.Context, question string) (domain.Answer, bool, error)
}

// KnowledgeBase answers from an AnswerStore, falling back to the default
// answer on a miss.
type KnowledgeBase struct {
	store  AnswerStore
	policy Policy
}

func NewKnowledgeBase(store AnswerStore, c config.Copilot) (*KnowledgeBase, error) {
	if store == nil {
		return nil, errors.New("responder: answer store must not be nil")
	}
	if c.DefaultAnswer == "" {
		return nil, errors.New("responder: default answer must not be empty")
	}
	return &KnowledgeBase{store: store, policy: PolicyFromConfig(c)}, nil
}

func (k *KnowledgeBase) Respond(ctx context.Context, question string, conv domain.Conversation) (domain.Answer, error) {
	found, ok, err := k.store.FindAnswer(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("responder: knowledge base: %w", err)
	}
	if !ok {
		return domain.Answer{Text: k.policy.DefaultAnswer, Sources: k.policy.sources(conv, nil)}, nil
	}
	return domain.Answer{Text: found.Text, Sources: k.policy.sources(conv, found.Sources)}, nil
}
