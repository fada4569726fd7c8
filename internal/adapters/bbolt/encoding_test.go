package bbolt

import (
	"encoding/binary"
	"testing"

	"github.com/corey/hotword/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraphData() *ports.GraphData {
	return &ports.GraphData{
		States: []ports.StateData{
			{Arcs: []ports.ArcData{{Unit: 2, Weight: 1.5, Next: 1}}},
			{Arcs: []ports.ArcData{{Unit: 0, Weight: -1.5, Next: 0}, {Unit: 3, Weight: 1.5, Next: 2}}},
			{Arcs: []ports.ArcData{}, Final: true, Phrase: "天行"},
		},
		Failures:       []int{-1, 0, 0},
		FallbackFinals: map[int]int{},
		MaxDepth:       2,
	}
}

func TestEncodeGraph_Roundtrip(t *testing.T) {
	original := sampleGraphData()
	original.FallbackFinals = map[int]int{1: 2}

	blob, err := encodeGraph(original)
	require.NoError(t, err)

	decoded, err := decodeGraph(blob)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestEncodeGraph_Deterministic(t *testing.T) {
	g := sampleGraphData()
	g.FallbackFinals = map[int]int{2: 2, 1: 2}

	a, err := encodeGraph(g)
	require.NoError(t, err)
	b, err := encodeGraph(g)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeGraph_Truncated(t *testing.T) {
	blob, err := encodeGraph(sampleGraphData())
	require.NoError(t, err)

	// Every strict prefix must fail cleanly, never panic.
	for n := 0; n < len(blob); n++ {
		_, err := decodeGraph(blob[:n])
		assert.Error(t, err, "prefix of %d bytes", n)
	}
}

func TestDecodeGraph_TrailingBytes(t *testing.T) {
	blob, err := encodeGraph(sampleGraphData())
	require.NoError(t, err)

	_, err = decodeGraph(append(blob, 0))
	assert.Error(t, err)
}

func TestDecodeGraph_VersionMismatch(t *testing.T) {
	blob, err := encodeGraph(sampleGraphData())
	require.NoError(t, err)

	binary.LittleEndian.PutUint16(blob, graphFormatVersion+1)
	_, err = decodeGraph(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestDecodeGraph_HugeStateCount(t *testing.T) {
	blob := make([]byte, 14)
	binary.LittleEndian.PutUint16(blob, graphFormatVersion)
	binary.LittleEndian.PutUint32(blob[2:], 1<<31)
	_, err := decodeGraph(blob)
	assert.Error(t, err)
}
