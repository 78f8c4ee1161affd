package domain

// State is the generation state of a copilot record.
type State string

const (
	StatePending    State = "pending"
	StateGenerating State = "generating"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// CanTransition reports whether s may advance to next.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateGenerating
	case StateGenerating:
		return next == StateComplete || next == StateFailed
	default:
		return false
	}
}

// Record is one question/answer exchange with the copilot.
type Record struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	State    State    `json:"state"`
	Err      string   `json:"error,omitempty"`
}

// Answer is what a responder produces for a question.
type Answer struct {
	Text    string
	Sources []string
}
