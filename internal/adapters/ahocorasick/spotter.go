// Package ahocorasick spots hot phrases in finished transcript text.
// It wraps the petar-dambovaliev/aho-corasick library for O(n + m + z) matching.
// The context graph biases decoding unit by unit; the spotter answers the
// after-the-fact question "which registered phrases made it into the text".
package ahocorasick

import (
	"strings"

	aho "github.com/petar-dambovaliev/aho-corasick"

	"github.com/corey/hotword/internal/domain/tokenize"
)

// Match is one phrase occurrence with byte offsets into the normalized text
// (see Normalize).
type Match struct {
	Phrase string `json:"phrase"`
	Start  int    `json:"start"` // byte offset start (inclusive)
	End    int    `json:"end"`   // byte offset end (exclusive)
}

// Spotter finds registered phrases in text, case-insensitively. It is
// read-only after construction and safe for concurrent use.
type Spotter struct {
	automaton aho.AhoCorasick
	phrases   []string
	built     bool
}

// Normalize upper-cases text the same way the tokenizer does before unit
// lookup, so spotting and biasing agree on what matches.
func Normalize(text string) string {
	chars := tokenize.SplitChars(text)
	tokenize.UpperChars(chars)
	return strings.Join(chars, "")
}

// NewSpotter compiles phrases. Blank phrases are ignored; the original text of
// each phrase is what Spot reports.
func NewSpotter(phrases []string) *Spotter {
	s := &Spotter{}
	var patterns []string
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		s.phrases = append(s.phrases, p)
		patterns = append(patterns, Normalize(p))
	}
	if len(patterns) == 0 {
		return s
	}

	builder := aho.NewAhoCorasickBuilder(aho.Opts{
		DFA: true,
	})
	s.automaton = builder.Build(patterns)
	s.built = true
	return s
}

// Scan returns every occurrence of every phrase, overlapping and nested
// occurrences included, in the order the automaton reports them.
func (s *Spotter) Scan(text string) []Match {
	if !s.built {
		return nil
	}
	iter := s.automaton.IterOverlappingByte([]byte(Normalize(text)))
	var matches []Match
	for next := iter.Next(); next != nil; next = iter.Next() {
		m := *next
		matches = append(matches, Match{
			Phrase: s.phrases[m.Pattern()],
			Start:  m.Start(),
			End:    m.End(),
		})
	}
	return matches
}

// Spot returns the distinct phrases found in text, in order of first match.
func (s *Spotter) Spot(text string) []string {
	matches := s.Scan(text)
	if len(matches) == 0 {
		return nil
	}

	// Deduplicate by phrase
	seen := make(map[string]bool, len(matches))
	var result []string
	for _, m := range matches {
		if !seen[m.Phrase] {
			seen[m.Phrase] = true
			result = append(result, m.Phrase)
		}
	}
	return result
}

// PhraseCount returns the number of phrases in the automaton.
func (s *Spotter) PhraseCount() int {
	return len(s.phrases)
}
