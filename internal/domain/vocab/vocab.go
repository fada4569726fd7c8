// Package vocab holds the immutable unit table shared by the tokenizer and the
// context graph. A unit is the atomic recognition symbol emitted by the
// decoder (a character, a subword piece, "<blank>", ...).
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Epsilon is the reserved unit ID. It marks fallback arcs inside the context
// graph and is never a valid decoder input, even when the table maps a
// symbol (usually "<blank>") to it.
const Epsilon = 0

var (
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrMalformedLine   = errors.New("malformed vocabulary line")
)

// Vocabulary is a bidirectional symbol <-> ID table. It is read-only after
// construction and safe for concurrent use.
type Vocabulary struct {
	ids     map[string]int
	symbols map[int]string
	maxLen  int // longest symbol, in characters
}

// New builds a vocabulary from an in-memory symbol table.
func New(table map[string]int) (*Vocabulary, error) {
	v := &Vocabulary{
		ids:     make(map[string]int, len(table)),
		symbols: make(map[int]string, len(table)),
	}
	// Sorted so that a duplicate-ID error names the same pair on every run.
	syms := make([]string, 0, len(table))
	for sym := range table {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		if err := v.add(sym, table[sym]); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Load reads a unit table with one "symbol id" pair per line. Blank lines are
// skipped.
func Load(r io.Reader) (*Vocabulary, error) {
	v := &Vocabulary{
		ids:     make(map[string]int),
		symbols: make(map[int]string),
	}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: %w: %q", lineNo, ErrMalformedLine, line)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: bad id %q", lineNo, ErrMalformedLine, fields[1])
		}
		if err := v.add(fields[0], id); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return v, nil
}

// LoadFile opens path and reads it with Load.
func LoadFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()
	v, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func (v *Vocabulary) add(sym string, id int) error {
	if sym == "" {
		return fmt.Errorf("%w: empty symbol", ErrMalformedLine)
	}
	if id < 0 {
		return fmt.Errorf("%w: negative id %d for %q", ErrMalformedLine, id, sym)
	}
	if _, ok := v.ids[sym]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateSymbol, sym)
	}
	if prev, ok := v.symbols[id]; ok {
		return fmt.Errorf("%w: %d (%q and %q)", ErrDuplicateID, id, prev, sym)
	}
	v.ids[sym] = id
	v.symbols[id] = sym
	if n := utf8.RuneCountInString(sym); n > v.maxLen {
		v.maxLen = n
	}
	return nil
}

// ID returns the unit ID for sym.
func (v *Vocabulary) ID(sym string) (int, bool) {
	id, ok := v.ids[sym]
	return id, ok
}

// Symbol returns the symbol for a unit ID.
func (v *Vocabulary) Symbol(id int) (string, bool) {
	sym, ok := v.symbols[id]
	return sym, ok
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int {
	return len(v.ids)
}

// MaxSymbolLen returns the length of the longest symbol in characters.
func (v *Vocabulary) MaxSymbolLen() int {
	return v.maxLen
}
