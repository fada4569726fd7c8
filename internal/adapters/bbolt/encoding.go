// Binary encoding for compiled context graph blobs.
//
// Format v1 (little-endian):
//
//	version:        uint16
//	stateCount:     uint32
//	maxDepth:       uint32
//	per state:
//	  flags:        uint8   (bit 0: final)
//	  failure:      int32   (-1 for the start state)
//	  phraseLen:    uint16
//	  phrase:       [phraseLen]byte
//	  arcCount:     uint32
//	  arcs:         [arcCount]× (unit:int32 + next:int32 + weight:float64)
//	fallbackCount:  uint32
//	fallbacks:      [fallbackCount]× (state:int32 + final:int32), sorted by state
//
// The layout is an implementation detail: a graph written by another version
// is rejected and must be recompiled.
package bbolt

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/corey/hotword/internal/ports"
)

const (
	graphFormatVersion = 1
	arcSize            = 16 // int32 + int32 + float64
	fallbackSize       = 8
	flagFinal          = 1
)

// encodeGraph encodes a graph to the compact binary format. A single buffer
// is pre-allocated to avoid repeated growth.
func encodeGraph(g *ports.GraphData) ([]byte, error) {
	if len(g.Failures) != len(g.States) {
		return nil, fmt.Errorf("graph has %d failure links for %d states", len(g.Failures), len(g.States))
	}

	// Header: 2 (version) + 4 (stateCount) + 4 (maxDepth), trailer count: 4
	totalSize := 2 + 4 + 4 + 4
	for _, st := range g.States {
		if len(st.Phrase) > math.MaxUint16 {
			return nil, fmt.Errorf("phrase too long: %d bytes", len(st.Phrase))
		}
		totalSize += 1 + 4 + 2 + len(st.Phrase) + 4 + len(st.Arcs)*arcSize
	}
	totalSize += len(g.FallbackFinals) * fallbackSize

	buf := make([]byte, totalSize)
	offset := 0

	binary.LittleEndian.PutUint16(buf[offset:], graphFormatVersion)
	offset += 2
	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(g.States)))
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], uint32(g.MaxDepth))
	offset += 4

	for i, st := range g.States {
		var flags byte
		if st.Final {
			flags |= flagFinal
		}
		buf[offset] = flags
		offset++
		binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(g.Failures[i])))
		offset += 4

		binary.LittleEndian.PutUint16(buf[offset:], uint16(len(st.Phrase)))
		offset += 2
		copy(buf[offset:], st.Phrase)
		offset += len(st.Phrase)

		binary.LittleEndian.PutUint32(buf[offset:], uint32(len(st.Arcs)))
		offset += 4
		for _, a := range st.Arcs {
			binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(a.Unit)))
			offset += 4
			binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(a.Next)))
			offset += 4
			binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(a.Weight))
			offset += 8
		}
	}

	// Sort fallback states for deterministic output.
	states := make([]int, 0, len(g.FallbackFinals))
	for s := range g.FallbackFinals {
		states = append(states, s)
	}
	sort.Ints(states)

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(states)))
	offset += 4
	for _, s := range states {
		binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(s)))
		offset += 4
		binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(g.FallbackFinals[s])))
		offset += 4
	}

	return buf, nil
}

// decodeGraph decodes a binary graph blob. Every read is bounds-checked to
// avoid panics on corrupt data; structural validation is left to
// contextgraph.Import.
func decodeGraph(data []byte) (*ports.GraphData, error) {
	if len(data) < 10 {
		return nil, fmt.Errorf("graph blob too short: %d bytes", len(data))
	}

	offset := 0
	version := binary.LittleEndian.Uint16(data[offset:])
	offset += 2
	if version != graphFormatVersion {
		return nil, fmt.Errorf("unsupported graph format version %d", version)
	}
	stateCount := binary.LittleEndian.Uint32(data[offset:])
	offset += 4
	maxDepth := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	// Each state needs at least 11 bytes; reject counts the blob can't hold
	// before allocating.
	if uint64(stateCount)*11 > uint64(len(data)-offset) {
		return nil, fmt.Errorf("state count %d exceeds blob size %d", stateCount, len(data))
	}

	g := &ports.GraphData{
		States:         make([]ports.StateData, stateCount),
		Failures:       make([]int, stateCount),
		FallbackFinals: make(map[int]int),
		MaxDepth:       int(maxDepth),
	}

	for i := uint32(0); i < stateCount; i++ {
		if offset+7 > len(data) {
			return nil, fmt.Errorf("truncated at state %d header (offset %d)", i, offset)
		}
		flags := data[offset]
		offset++
		g.Failures[i] = int(int32(binary.LittleEndian.Uint32(data[offset:])))
		offset += 4
		phraseLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2

		if offset+phraseLen > len(data) {
			return nil, fmt.Errorf("truncated at state %d phrase (offset %d, need %d)", i, offset, phraseLen)
		}
		st := ports.StateData{
			Final:  flags&flagFinal != 0,
			Phrase: string(data[offset : offset+phraseLen]),
		}
		offset += phraseLen

		if offset+4 > len(data) {
			return nil, fmt.Errorf("truncated at state %d arc count (offset %d)", i, offset)
		}
		arcCount := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4

		arcBytes := arcCount * arcSize
		if arcCount < 0 || offset+arcBytes > len(data) {
			return nil, fmt.Errorf("truncated at state %d arcs (offset %d, need %d)", i, offset, arcBytes)
		}
		st.Arcs = make([]ports.ArcData, arcCount)
		for j := 0; j < arcCount; j++ {
			st.Arcs[j].Unit = int(int32(binary.LittleEndian.Uint32(data[offset:])))
			offset += 4
			st.Arcs[j].Next = int(int32(binary.LittleEndian.Uint32(data[offset:])))
			offset += 4
			st.Arcs[j].Weight = math.Float64frombits(binary.LittleEndian.Uint64(data[offset:]))
			offset += 8
		}
		g.States[i] = st
	}

	if offset+4 > len(data) {
		return nil, fmt.Errorf("truncated at fallback count (offset %d)", offset)
	}
	fallbackCount := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if fallbackCount < 0 || offset+fallbackCount*fallbackSize != len(data) {
		return nil, fmt.Errorf("fallback section size mismatch (offset %d, count %d, blob %d)", offset, fallbackCount, len(data))
	}
	for i := 0; i < fallbackCount; i++ {
		s := int(int32(binary.LittleEndian.Uint32(data[offset:])))
		offset += 4
		f := int(int32(binary.LittleEndian.Uint32(data[offset:])))
		offset += 4
		g.FallbackFinals[s] = f
	}

	return g, nil
}
