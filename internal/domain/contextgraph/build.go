package contextgraph

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/corey/hotword/internal/domain/tokenize"
	"github.com/corey/hotword/internal/domain/vocab"
)

// Phrase is a hot phrase and the bias awarded on each of its arcs.
type Phrase struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type options struct {
	logger *slog.Logger
}

// Option configures Build.
type Option func(*options)

// WithLogger sets the logger used for OOV and build reports.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New builds a graph where every phrase carries the same bias.
func New(v *vocab.Vocabulary, texts []string, bias float64, opts ...Option) (*Graph, error) {
	phrases := make([]Phrase, len(texts))
	for i, t := range texts {
		phrases[i] = Phrase{Text: t, Weight: bias}
	}
	return Build(v, phrases, opts...)
}

// Build compiles phrases into a context graph.
//
// Phrase text is trimmed; empty phrases are ignored and a repeated text keeps
// the last weight given for it. Phrases containing units missing from v are
// logged and dropped. If nothing survives, Build returns the no-op graph.
// ErrInconsistentGraph is returned if a surviving phrase cannot be replayed
// to a final state after determinization.
//
// Phrases sharing a prefix share its arcs, and a shared arc keeps the
// smallest weight among them. The difference is not pushed to later arcs,
// so per-phrase weights only hold along the unshared suffix: with AB at 1
// and AC at 3, feeding A C scores 1 + 3.
func Build(v *vocab.Vocabulary, phrases []Phrase, opts ...Option) (*Graph, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	// Dedup by upper-cased text, last write wins, first-seen order kept.
	latest := make(map[string]Phrase, len(phrases))
	var order []string
	for _, p := range phrases {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		key := normalize(text)
		if _, ok := latest[key]; !ok {
			order = append(order, key)
		}
		latest[key] = Phrase{Text: text, Weight: p.Weight}
	}
	o.logger.Info("loaded contexts", "count", len(order))

	tok := tokenize.New(v, o.logger)
	entries := make([]entry, 0, len(order))
	for _, key := range order {
		p := latest[key]
		units, ok := tok.Tokenize(p.Text)
		if !ok || len(units) == 0 {
			o.logger.Warn("ignoring phrase with unknown units", "phrase", p.Text)
			continue
		}
		entries = append(entries, entry{text: p.Text, units: units, weight: p.Weight})
	}
	if len(entries) == 0 {
		o.logger.Warn("no phrase survived tokenization, context biasing disabled")
		return &Graph{}, nil
	}

	g := determinize(buildTrie(entries))

	// Determinization renumbers states; find each phrase's final state again.
	g.phrases = make(map[int]string, len(entries))
	for _, e := range entries {
		final, err := g.trace(e.units)
		if err != nil {
			o.logger.Error("context graph replay failed", "phrase", e.text, "err", err)
			return nil, fmt.Errorf("phrase %q: %w", e.text, err)
		}
		g.phrases[final] = e.text
		if len(e.units) > g.maxDepth {
			g.maxDepth = len(e.units)
		}
	}

	g.compileFailureLinks()

	st := g.Stats()
	o.logger.Info("context graph built",
		"phrases", st.Phrases, "states", st.States, "arcs", st.Arcs, "fallback_arcs", st.FallbackArcs)
	return g, nil
}

// trace follows units from Start over direct arcs only and returns the state
// reached, which must be a final state other than Start.
func (g *Graph) trace(units []int) (int, error) {
	cur := Start
	for i, u := range units {
		arc, ok := g.direct(cur, u)
		if !ok {
			return 0, fmt.Errorf("%w: no arc for unit %d at position %d", ErrInconsistentGraph, u, i)
		}
		cur = arc.Next
	}
	if cur <= Start || !g.states[cur].final {
		return 0, fmt.Errorf("%w: replay ended on non-final state %d", ErrInconsistentGraph, cur)
	}
	return cur, nil
}

func normalize(text string) string {
	chars := tokenize.SplitChars(text)
	tokenize.UpperChars(chars)
	return strings.Join(chars, "")
}

// LoadPhrases reads one phrase per line. Every phrase gets weight bias.
func LoadPhrases(r io.Reader, bias float64) ([]Phrase, error) {
	var phrases []Phrase
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		phrases = append(phrases, Phrase{Text: text, Weight: bias})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read phrases: %w", err)
	}
	return phrases, nil
}

// LoadPhraseFile opens path and reads it with LoadPhrases.
func LoadPhraseFile(path string, bias float64) ([]Phrase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phrases: %w", err)
	}
	defer f.Close()
	return LoadPhrases(f, bias)
}
