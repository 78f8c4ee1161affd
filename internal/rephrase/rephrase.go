// Package rephrase rewrites a draft reply under a stylistic directive.
package rephrase

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Directive is a named rewrite rule.
type Directive string

const (
	DirectiveToneMatch  Directive = "tone-match"
	DirectiveFriendlier Directive = "friendlier"
	DirectiveFormal     Directive = "formal"
	DirectiveFixGrammar Directive = "fix-grammar"
	DirectiveTranslate  Directive = "translate"
)

// Marker is the emphasis marker added by DirectiveFriendlier.
const Marker = "😊"

var labels = map[Directive]string{
	DirectiveToneMatch:  "My tone of voice",
	DirectiveFriendlier: "More friendly",
	DirectiveFormal:     "More formal",
	DirectiveFixGrammar: "Fix grammar & spelling",
	DirectiveTranslate:  "Translate...",
}

var (
	friendlier = strings.NewReplacer(".", "! "+Marker, "!", "! "+Marker)
	formal     = strings.NewReplacer("!", ".", " "+Marker, "", Marker, "")
)

// Directives returns the rephrase menu in display order.
func Directives() []Directive {
	return []Directive{
		DirectiveToneMatch,
		DirectiveFriendlier,
		DirectiveFormal,
		DirectiveFixGrammar,
		DirectiveTranslate,
	}
}

// Label is the menu text for d.
func (d Directive) Label() string {
	if l, ok := labels[d]; ok {
		return l
	}
	return string(d)
}

// ParseDirective accepts a directive name or its menu label.
func ParseDirective(s string) (Directive, error) {
	s = strings.TrimSpace(s)
	for _, d := range Directives() {
		if strings.EqualFold(s, string(d)) || strings.EqualFold(s, labels[d]) {
			return d, nil
		}
	}
	return "", fmt.Errorf("rephrase: unknown directive %q", s)
}

// Transform applies d to text. Unknown directives leave text unchanged.
//
// Friendlier turns every terminator into an exclamation plus a marker, so
// applying it again adds another marker. Formal and fix-grammar are
// idempotent.
func Transform(text string, d Directive) string {
	switch d {
	case DirectiveFriendlier:
		return friendlier.Replace(text)
	case DirectiveFormal:
		return formal.Replace(text)
	case DirectiveFixGrammar:
		return capitalize(text)
	default:
		return text
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
