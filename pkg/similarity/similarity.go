// Package similarity grades how closely a recognised utterance matches the
// phrase the speaker was asked to repeat.
//
// Both strings are normalised before comparison: the punctuation marks
// ',', '.', '?' and '!' are removed and the text is lowercased, because
// speech-to-text output rarely reproduces either. The normalised strings are
// then compared with the unit-cost Levenshtein edit distance and the result
// is expressed as a percentage of the longer string's length:
//
//	percent = round((maxLen - distance) / maxLen * 100)
//
// Two strings that are both empty after normalisation are a perfect match
// (100). Lengths are measured in runes.
package similarity

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ignored lists the characters stripped during normalisation.
const ignored = ",.?!"

func isIgnored(r rune) bool {
	return strings.ContainsRune(ignored, r)
}

// Option configures a [Scorer].
type Option func(*Scorer)

// WithLanguage selects the language whose casing rules are used when
// lowercasing (e.g. Turkish maps 'I' to dotless 'ı'). Default: [language.Und].
func WithLanguage(tag language.Tag) Option {
	return func(s *Scorer) {
		s.lang = tag
	}
}

// Scorer computes similarity percentages. It is safe for concurrent use.
type Scorer struct {
	lang  language.Tag
	chain sync.Pool
}

// New returns a Scorer configured with opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{lang: language.Und}
	for _, o := range opts {
		o(s)
	}
	lang := s.lang
	// Casers carry state and must not be shared between goroutines.
	s.chain.New = func() any {
		return transform.Chain(
			runes.Remove(runes.Predicate(isIgnored)),
			cases.Lower(lang),
		)
	}
	return s
}

// Normalize strips the ignored punctuation from text and lowercases it.
func (s *Scorer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := s.chain.Get().(transform.Transformer)
	out, _, err := transform.String(t, text)
	t.Reset()
	s.chain.Put(t)
	if err != nil {
		// Only reachable with invalid UTF-8; fall back to the raw text so that
		// scoring still produces a number.
		return text
	}
	return out
}

// Distance returns the Levenshtein distance between the normalised forms of
// a and b.
func (s *Scorer) Distance(a, b string) int {
	return matchr.Levenshtein(s.Normalize(a), s.Normalize(b))
}

// Percent returns the similarity of reference and candidate in [0, 100].
func (s *Scorer) Percent(reference, candidate string) int {
	a := s.Normalize(reference)
	b := s.Normalize(candidate)

	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}

	dist := matchr.Levenshtein(a, b)
	pct := int(math.Round(float64(maxLen-dist) / float64(maxLen) * 100))
	return min(max(pct, 0), 100)
}

var defaultScorer = New()

// Percent scores candidate against reference using root-language casing.
// See [Scorer.Percent].
func Percent(reference, candidate string) int {
	return defaultScorer.Percent(reference, candidate)
}

// Distance returns the edit distance between the normalised forms of a and
// b using root-language casing.
func Distance(a, b string) int {
	return defaultScorer.Distance(a, b)
}

// Normalize applies root-language normalisation to text.
func Normalize(text string) string {
	return defaultScorer.Normalize(text)
}
