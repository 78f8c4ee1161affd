package domain

// KnowledgeEntry is a stored answer to an exact question.
type KnowledgeEntry struct {
	PK        string
	SK        string
	Question  string
	Answer    string
	Sources   []string
	UpdatedAt string
}
