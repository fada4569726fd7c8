package vocab

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Bidirectional(t *testing.T) {
	v, err := New(map[string]int{"<blank>": 0, "<unk>": 1, "天": 2, "行": 3, "健": 4})
	require.NoError(t, err)

	assert.Equal(t, 5, v.Len())
	id, ok := v.ID("行")
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	sym, ok := v.Symbol(4)
	assert.True(t, ok)
	assert.Equal(t, "健", sym)

	_, ok = v.ID("地")
	assert.False(t, ok)
	_, ok = v.Symbol(99)
	assert.False(t, ok)
}

func TestNew_DuplicateID(t *testing.T) {
	_, err := New(map[string]int{"A": 2, "B": 2})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestNew_NegativeID(t *testing.T) {
	_, err := New(map[string]int{"A": -1})
	assert.ErrorIs(t, err, ErrMalformedLine)
}

func TestLoad_UnitFile(t *testing.T) {
	input := "<blank> 0\n<unk> 1\n\nHELLO 2\nH 3\n  E 4  \n"
	v, err := Load(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 5, v.Len())
	id, ok := v.ID("E")
	assert.True(t, ok)
	assert.Equal(t, 4, id)
	assert.Equal(t, 7, v.MaxSymbolLen(), "<blank> is the longest symbol")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"missing id", "A\n", ErrMalformedLine},
		{"extra field", "A 1 2\n", ErrMalformedLine},
		{"bad id", "A x\n", ErrMalformedLine},
		{"duplicate symbol", "A 1\nA 2\n", ErrDuplicateSymbol},
		{"duplicate id", "A 1\nB 1\n", ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_ErrorNamesLine(t *testing.T) {
	_, err := Load(strings.NewReader("A 1\nB 2\nC\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.txt")
	require.NoError(t, os.WriteFile(path, []byte("<blank> 0\n天 2\n"), 0644))

	v, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestMaxSymbolLen_CountsCharacters(t *testing.T) {
	v, err := New(map[string]int{"天行": 1, "AB": 2, "X": 3})
	require.NoError(t, err)
	assert.Equal(t, 2, v.MaxSymbolLen())
}
