package domain

import "strings"

// SenderRole identifies who authored a message. The set is closed.
type SenderRole string

const (
	SenderCustomer SenderRole = "customer"
	SenderAgent    SenderRole = "agent"
)

// Valid reports whether r is one of the two known roles.
func (r SenderRole) Valid() bool {
	return r == SenderCustomer || r == SenderAgent
}

// Message is a single entry in a conversation thread. Ordering is by position
// in the owning conversation, never by Time.
type Message struct {
	ID      int        `json:"id"`
	Sender  SenderRole `json:"sender"`
	Content string     `json:"content"`
	Time    string     `json:"time"`
	Avatar  string     `json:"avatar"`
}

// Paragraphs splits the content on embedded line breaks.
func (m Message) Paragraphs() []string {
	return strings.Split(m.Content, "\n")
}

// Conversation is a customer/agent thread with its inbox metadata.
type Conversation struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar"`
	Subject      string    `json:"subject"`
	Status       string    `json:"status"`
	StatusColor  string    `json:"statusColor"`
	LastActivity string    `json:"time"`
	Unread       bool      `json:"unread"`
	Messages     []Message `json:"messages"`

	// Sources is the source-reference pool the copilot cites for this
	// conversation. Empty means the responder's global pool.
	Sources []string `json:"sources,omitempty"`
}

// HasStatus reports whether the conversation carries a status label.
func (c Conversation) HasStatus() bool {
	return strings.TrimSpace(c.Status) != ""
}
