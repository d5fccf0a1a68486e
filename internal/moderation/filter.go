// Package moderation screens outbound chat messages before they are
// persisted or relayed. It blocks prohibited terms and obvious contact-info
// drops, which the product rules disallow inside conversations.
package moderation

import (
	"regexp"
	"strings"
)

// Result describes a moderation decision.
type Result struct {
	Blocked bool
	Reason  string // "prohibited_term" or "contact_info"
	Term    string // the matched term or pattern name, for logging
}

// defaultTerms is the built-in prohibited term list. Deployments extend it
// through NewFilterWithTerms.
var defaultTerms = []string{
	"venmo me",
	"cashapp",
	"onlyfans",
	"send money",
	"wire transfer",
}

// contactPatterns match attempts to move the conversation off-platform.
var contactPatterns = map[string]*regexp.Regexp{
	"phone_number": regexp.MustCompile(`(?:\+?\d[\s\-.]?){10,14}`),
	"url":          regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`),
}

// Filter checks message content against the prohibited term list and the
// contact-info patterns. It is immutable after construction and safe for
// concurrent use.
type Filter struct {
	terms []string
}

// NewFilter creates a filter with the built-in term list.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultTerms)
}

// NewFilterWithTerms creates a filter with a custom term list. Terms are
// matched case-insensitively as substrings of the normalized content.
func NewFilterWithTerms(terms []string) *Filter {
	normalized := make([]string, len(terms))
	for i, t := range terms {
		normalized[i] = strings.ToLower(t)
	}
	return &Filter{terms: normalized}
}

// Check screens content and returns the decision. Clean content returns the
// zero Result.
func (f *Filter) Check(content string) Result {
	lower := strings.ToLower(content)

	for _, term := range f.terms {
		if strings.Contains(lower, term) {
			return Result{Blocked: true, Reason: "prohibited_term", Term: term}
		}
	}

	for name, re := range contactPatterns {
		if re.MatchString(content) {
			return Result{Blocked: true, Reason: "contact_info", Term: name}
		}
	}

	return Result{}
}
