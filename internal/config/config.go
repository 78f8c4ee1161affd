// Package config loads the static seed: the initial inbox and the copilot's
// known answers.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"support-copilot/internal/domain"
)

const DefaultSourceCount = 3

//go:embed seed.json
var defaultSeed []byte

// Seed is the top-level static configuration.
type Seed struct {
	Conversations []domain.Conversation `json:"conversations"`
	Copilot       Copilot               `json:"copilot"`
}

// Copilot configures the responder and the copilot panel.
type Copilot struct {
	Answers       []KnownAnswer `json:"answers"`
	DefaultAnswer string        `json:"default_answer"`
	Sources       []string      `json:"sources"`
	SourceCount   int           `json:"source_count,omitempty"`
	Latency       Latency       `json:"latency"`
	Suggestions   []string      `json:"suggestions,omitempty"`
}

// KnownAnswer maps an exact question to a canned answer. Sources, when set,
// replace the conversation pool for this question.
type KnownAnswer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
}

// Latency bounds the simulated responder delay. Min == Max is a fixed delay.
type Latency struct {
	Min Duration `json:"min"`
	Max Duration `json:"max"`
}

// Duration decodes from a Go duration string ("1.5s") or a number of
// milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("config: parse duration %s: %w", b, err)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AnswerMap returns the known answers keyed by exact question text.
func (c Copilot) AnswerMap() map[string]KnownAnswer {
	m := make(map[string]KnownAnswer, len(c.Answers))
	for _, a := range c.Answers {
		m[a.Question] = a
	}
	return m
}

// Default returns the built-in seed.
func Default() (*Seed, error) {
	return Parse(defaultSeed)
}

// Load reads a seed from a JSON file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	seed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return seed, nil
}

// Parse decodes and validates a seed, filling defaults.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("config: parse seed: %w", err)
	}
	if seed.Copilot.SourceCount == 0 {
		seed.Copilot.SourceCount = DefaultSourceCount
	}
	if seed.Copilot.Latency.Max < seed.Copilot.Latency.Min {
		seed.Copilot.Latency.Max = seed.Copilot.Latency.Min
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks for required fields.
func (s *Seed) Validate() error {
	var errs []string

	if len(s.Conversations) == 0 {
		errs = append(errs, "at least one conversation is required")
	}
	seen := make(map[int]bool, len(s.Conversations))
	for i, c := range s.Conversations {
		if seen[c.ID] {
			errs = append(errs, fmt.Sprintf("conversations[%d].id %d is duplicated", i, c.ID))
		}
		seen[c.ID] = true
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, fmt.Sprintf("conversations[%d].name is required", i))
		}
		for j, m := range c.Messages {
			if !m.Sender.Valid() {
				errs = append(errs, fmt.Sprintf("conversations[%d].messages[%d].sender %q is invalid", i, j, m.Sender))
			}
		}
	}

	if strings.TrimSpace(s.Copilot.DefaultAnswer) == "" {
		errs = append(errs, "copilot.default_answer is required")
	}
	if s.Copilot.SourceCount < 0 {
		errs = append(errs, "copilot.source_count must not be negative")
	}
	if s.Copilot.Latency.Min < 0 {
		errs = append(errs, "copilot.latency.min must not be negative")
	}
	questions := make(map[string]bool, len(s.Copilot.Answers))
	for i, a := range s.Copilot.Answers {
		if a.Question == "" {
			errs = append(errs, fmt.Sprintf("copilot.answers[%d].question is required", i))
		}
		if questions[a.Question] {
			errs = append(errs, fmt.Sprintf("copilot.answers[%d].question %q is duplicated", i, a.Question))
		}
		questions[a.Question] = true
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
