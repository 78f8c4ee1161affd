package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"support-copilot/internal/config"
	"support-copilot/internal/domain"
)

// ErrFlagged is returned when moderation rejects a question.
var ErrFlagged = errors.New("responder: question flagged by moderation")

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

// LLM answers with a chat completion grounded on the conversation thread.
// Sources still come from the configured pool.
type LLM struct {
	client LLMClient
	model  string
	policy Policy
}

func NewLLM(client LLMClient, model string, c config.Copilot) (*LLM, error) {
	if client == nil {
		return nil, errors.New("responder: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("responder: model must not be empty")
	}
	if c.DefaultAnswer == "" {
		return nil, errors.New("responder: default answer must not be empty")
	}
	return &LLM{client: client, model: model, policy: PolicyFromConfig(c)}, nil
}

func (l *LLM) Respond(ctx context.Context, question string, conv domain.Conversation) (domain.Answer, error) {
	flagged, err := l.client.Moderate(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("responder: moderation: %w", err)
	}
	if flagged {
		return domain.Answer{}, ErrFlagged
	}

	raw, err := l.client.Chat(ctx, l.model, buildPromptMessages(conv, question))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("responder: chat: %w", err)
	}
	out, err := parseCopilotAnswer(raw)
	if err != nil {
		return domain.Answer{}, err
	}

	text := out.Answer
	if !out.Answerable {
		text = l.policy.DefaultAnswer
	}
	return domain.Answer{Text: text, Sources: l.policy.sources(conv, nil)}, nil
}
