package responder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"support-copilot/internal/domain"
)

type copilotAnswer struct {
	Answerable bool   `json:"answerable"`
	Answer     string `json:"answer"`
}

func buildPromptMessages(conv domain.Conversation, question string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: "system", Content: buildPolicyPrompt()},
		{Role: "system", Content: buildThreadPrompt(conv)},
		{Role: "user", Content: question},
	}
}

func buildPolicyPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a copilot assisting a customer-support agent.",
		"",
		"Task:",
		"Answer the agent's question about the conversation below.",
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		outputContract(),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only the agent's current question.",
		"2) Address the agent, not the customer.",
		"3) Keep responses short and actionable.",
		"4) Use only the conversation transcript and general support practice.",
		"5) If the question cannot be answered from the transcript, mark it unanswerable.",
	}, "\n")
}

func outputContract() string {
	return "Return JSON only with keys answerable (boolean) and answer (string). " +
		"If unanswerable, return answerable=false and answer=\"\"."
}

// buildThreadPrompt renders the thread as a transcript. Line breaks inside a
// message are kept.
func buildThreadPrompt(conv domain.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation with %s", conv.Name)
	if conv.HasStatus() {
		fmt.Fprintf(&b, " (status: %s)", conv.Status)
	}
	b.WriteString(":\n")
	for _, m := range conv.Messages {
		fmt.Fprintf(&b, "\n[%s]: %s\n", m.Sender, strings.TrimSpace(m.Content))
	}
	return b.String()
}

func parseCopilotAnswer(raw string) (copilotAnswer, error) {
	var out copilotAnswer
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return copilotAnswer{}, fmt.Errorf("responder: decode answer: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return copilotAnswer{}, errors.New("responder: decode answer: multiple JSON values")
		}
		return copilotAnswer{}, fmt.Errorf("responder: decode answer trailing data: %w", err)
	}
	if out.Answerable && strings.TrimSpace(out.Answer) == "" {
		return copilotAnswer{}, errors.New("responder: answerable response missing answer")
	}
	return out, nil
}
