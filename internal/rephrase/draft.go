package rephrase

// Draft is the text being rephrased in one compose action. It is dropped
// unless the caller applies it.
type Draft struct {
	text string
}

func NewDraft(text string) *Draft {
	return &Draft{text: text}
}

// Transform rewrites the draft in place and returns the new text.
func (d *Draft) Transform(dir Directive) string {
	d.text = Transform(d.text, dir)
	return d.text
}

// Set replaces the draft with hand-edited text.
func (d *Draft) Set(text string) {
	d.text = text
}

func (d *Draft) Text() string {
	return d.text
}
