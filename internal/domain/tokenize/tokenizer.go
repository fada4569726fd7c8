// Package tokenize segments hot phrases into vocabulary unit IDs using greedy
// longest-match lookup over UTF-8 characters.
package tokenize

import (
	"log/slog"
	"strings"

	"github.com/corey/hotword/internal/domain/vocab"
)

// Segmentation is the outcome of splitting one phrase.
type Segmentation struct {
	Units []int    // unit IDs for every in-vocabulary span, in order
	OOV   []string // characters no vocabulary entry starts with
}

// OK reports whether the whole phrase was covered by the vocabulary.
func (s Segmentation) OK() bool {
	return len(s.OOV) == 0
}

// Tokenizer maps phrase text onto unit IDs. Safe for concurrent use.
type Tokenizer struct {
	vocab  *vocab.Vocabulary
	logger *slog.Logger
}

// New returns a tokenizer over v. A nil logger falls back to slog.Default().
func New(v *vocab.Vocabulary, logger *slog.Logger) *Tokenizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tokenizer{vocab: v, logger: logger}
}

// Segment splits phrase into unit IDs. At each position the longest span of
// characters present in the vocabulary wins. A character that starts no
// match is recorded as out of vocabulary and scanning resumes after it, so
// the remainder of the phrase is still segmented. Unmatched spaces are
// skipped without counting as OOV.
func (t *Tokenizer) Segment(phrase string) Segmentation {
	chars := SplitChars(phrase)
	UpperChars(chars)

	var seg Segmentation
	maxLen := t.vocab.MaxSymbolLen()
	for start := 0; start < len(chars); {
		end := len(chars)
		if maxLen > 0 && start+maxLen < end {
			end = start + maxLen
		}
		matched := false
		for ; end > start; end-- {
			id, ok := t.vocab.ID(strings.Join(chars[start:end], ""))
			if !ok || id == vocab.Epsilon {
				continue
			}
			seg.Units = append(seg.Units, id)
			start = end
			matched = true
			break
		}
		if matched {
			continue
		}
		if chars[start] != " " {
			seg.OOV = append(seg.OOV, chars[start])
		}
		start++
	}
	return seg
}

// Tokenize returns the unit IDs for phrase and whether every character was
// in the vocabulary. Each OOV unit is logged; callers drop phrases that
// return false.
func (t *Tokenizer) Tokenize(phrase string) ([]int, bool) {
	seg := t.Segment(phrase)
	for _, unit := range seg.OOV {
		t.logger.Warn("unit is out of vocabulary", "unit", unit, "phrase", phrase)
	}
	return seg.Units, seg.OK()
}
