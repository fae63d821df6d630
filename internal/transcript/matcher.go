package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a term whose
// Double Metaphone code matches the phrase. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a term without a
// phonetic match. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher finds the vocabulary term a recognized phrase most likely stands
// for. Candidates are filtered by Double Metaphone code and ranked by
// Jaro-Winkler similarity; without a phonetic candidate a stricter pure
// similarity pass applies. A Matcher is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a [Matcher] configured with opts.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the term that phrase most likely stands for. When matched is
// false, corrected equals phrase and confidence is 0.
//
// phrase and terms are compared case-insensitively both as written and with
// spaces removed, so "cuber netties" can match "Kubernetes". A phrase of
// several words only matches terms that start with the same sound, which
// keeps a leading "and" or "to" out of the replacement.
func (m *Matcher) Match(phrase string, terms []string) (corrected string, confidence float64, matched bool) {
	in := normalize(phrase)
	if len(terms) == 0 || in.joined == "" {
		return phrase, 0, false
	}
	inCodes := codes(in.joined)
	multi := strings.Contains(in.spaced, " ")

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, term := range terms {
		t := normalize(term)
		if t.joined == "" {
			continue
		}
		if t.joined == in.joined {
			return term, 1, true
		}
		if multi && onset(in.spaced) != onset(t.spaced) {
			continue
		}
		score := max(
			matchr.JaroWinkler(in.spaced, t.spaced, false),
			matchr.JaroWinkler(in.joined, t.joined, false),
		)
		if overlaps(inCodes, codes(t.joined)) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = term, score, true
			}
		} else if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = term, score
		}
	}
	if best == "" {
		return phrase, 0, false
	}
	return best, bestScore, true
}

type normalized struct {
	spaced string // lower case, single spaces
	joined string // lower case, no spaces
}

func normalize(s string) normalized {
	fields := strings.Fields(strings.ToLower(s))
	return normalized{spaced: strings.Join(fields, " "), joined: strings.Join(fields, "")}
}

// codes returns the non-empty Double Metaphone codes of s.
func codes(s string) []string {
	p, a := matchr.DoubleMetaphone(s)
	out := make([]string, 0, 2)
	for _, c := range []string{p, a} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// onset returns the first phonetic code character of the first word of s.
func onset(s string) byte {
	first, _, _ := strings.Cut(s, " ")
	p, _ := matchr.DoubleMetaphone(first)
	if p == "" {
		return 0
	}
	return p[0]
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
