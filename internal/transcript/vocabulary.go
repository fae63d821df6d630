// Package transcript corrects recognizer output against a list of technical
// terms the interview is expected to mention.
package transcript

import (
	"strings"
	"unicode/utf8"
)

// minPhraseRunes is the shortest phrase considered for correction. Shorter
// fragments match too many terms by accident.
const minPhraseRunes = 3

// trailingPunct is kept in place when a phrase is replaced.
const trailingPunct = ".,;:!?"

// Vocabulary rewrites misrecognized terms in final transcripts. A nil or
// empty Vocabulary returns text unchanged. It is safe for concurrent use.
type Vocabulary struct {
	terms    []string
	maxWords int
	matcher  *Matcher
}

// NewVocabulary returns a Vocabulary for terms. Terms shorter than three
// letters are ignored.
func NewVocabulary(terms []string, opts ...Option) *Vocabulary {
	v := &Vocabulary{matcher: NewMatcher(opts...)}
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if utf8.RuneCountInString(strings.ReplaceAll(t, " ", "")) < minPhraseRunes {
			continue
		}
		v.terms = append(v.terms, t)
		v.maxWords = max(v.maxWords, len(strings.Fields(t)))
	}
	return v
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Correct scans text left to right. At each word it tries phrases of one up
// to one more word than the longest term, shortest first, and replaces the
// first phrase that matches a term. Punctuation after the phrase is kept.
func (v *Vocabulary) Correct(text string) string {
	if v.Len() == 0 {
		return text
	}
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	changed := false

	for i := 0; i < len(words); {
		n, term, ok := v.matchAt(words[i:])
		if !ok {
			out = append(out, words[i])
			i++
			continue
		}
		last := words[i+n-1]
		suffix := last[len(strings.TrimRight(last, trailingPunct)):]
		replaced := term + suffix
		if n > 1 || replaced != words[i] {
			changed = true
		}
		out = append(out, replaced)
		i += n
	}
	if !changed {
		return text
	}
	return strings.Join(out, " ")
}

func (v *Vocabulary) matchAt(words []string) (n int, term string, ok bool) {
	limit := min(len(words), v.maxWords+1)
	for n = 1; n <= limit; n++ {
		phrase := make([]string, n)
		for j, w := range words[:n] {
			phrase[j] = strings.Trim(w, trailingPunct)
		}
		// Punctuation inside the phrase ends it.
		if n > 1 && strings.TrimRight(words[n-2], trailingPunct) != words[n-2] {
			return 0, "", false
		}
		joined := strings.Join(phrase, " ")
		if utf8.RuneCountInString(strings.ReplaceAll(joined, " ", "")) < minPhraseRunes {
			continue
		}
		if term, _, ok := v.matcher.Match(joined, v.terms); ok {
			return n, term, true
		}
	}
	return 0, "", false
}
