package tokenize

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/corey/hotword/internal/domain/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New(map[string]int{
		"<blank>": 0,
		"<unk>":   1,
		"天":       2,
		"行":       3,
		"健":       4,
		"天行":      5,
		"A":       6,
		"B":       7,
		"AB":      8,
		"ABC":     9,
		"C":       10,
	})
	require.NoError(t, err)
	return v
}

func TestSplitChars(t *testing.T) {
	assert.Equal(t, []string{"天", "行", "健"}, SplitChars("天行健"))
	assert.Equal(t, []string{"a", " ", "b"}, SplitChars("a b"))
	assert.Empty(t, SplitChars(""))
	assert.Equal(t, []string{"\xff", "a"}, SplitChars("\xffa"), "invalid bytes survive as single units")
}

func TestUpperChars(t *testing.T) {
	chars := []string{"a", "é", "天", "1", "Z"}
	UpperChars(chars)
	assert.Equal(t, []string{"A", "É", "天", "1", "Z"}, chars)
}

func TestSegment_LongestMatch(t *testing.T) {
	tok := New(testVocab(t), nil)

	tests := []struct {
		phrase string
		want   []int
	}{
		{"天行健", []int{5, 4}},
		{"健行", []int{4, 3}},
		{"abc", []int{9}},
		{"abcab", []int{9, 8}},
		{"ba", []int{7, 6}},
		{"a b", []int{6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			seg := tok.Segment(tt.phrase)
			assert.True(t, seg.OK())
			assert.Equal(t, tt.want, seg.Units)
		})
	}
}

func TestSegment_OOVContinuesScanning(t *testing.T) {
	tok := New(testVocab(t), nil)

	seg := tok.Segment("天地健")
	assert.False(t, seg.OK())
	assert.Equal(t, []string{"地"}, seg.OOV)
	assert.Equal(t, []int{2, 4}, seg.Units, "units around the OOV character are still found")
}

func TestSegment_SpaceIsNotOOV(t *testing.T) {
	tok := New(testVocab(t), nil)

	seg := tok.Segment("天 行")
	assert.True(t, seg.OK())
	assert.Equal(t, []int{2, 3}, seg.Units)
}

func TestSegment_EpsilonSymbolNeverMatches(t *testing.T) {
	v, err := vocab.New(map[string]int{"<BLANK>": 0, "X": 1})
	require.NoError(t, err)
	tok := New(v, nil)

	seg := tok.Segment("<blank>")
	assert.False(t, seg.OK(), "the epsilon unit is not a valid phrase unit")
	assert.NotContains(t, seg.Units, vocab.Epsilon)
}

func TestTokenize_LogsOOV(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tok := New(testVocab(t), logger)

	units, ok := tok.Tokenize("天q")
	assert.False(t, ok)
	assert.Equal(t, []int{2}, units)
	assert.Contains(t, buf.String(), "out of vocabulary")
	assert.Contains(t, buf.String(), "unit=Q")
}

func TestTokenize_Empty(t *testing.T) {
	tok := New(testVocab(t), nil)
	units, ok := tok.Tokenize("")
	assert.True(t, ok)
	assert.Empty(t, units)
}
