// Package ports defines the interfaces (contracts) that adapters must implement.
// These are the boundaries of the hexagonal architecture. Domain logic depends
// only on these interfaces, never on concrete implementations.
package ports

// Storage persists compiled context graphs so a daemon can start without
// recompiling, and so a graph can be inspected after the fact.
// Graphs are keyed by name. Concurrent reads are safe; writes are serialized
// by the adapter.
//
// Crash safety: SaveGraph must be transactional. A crash mid-write must not
// corrupt a previously committed graph.
type Storage interface {
	// SaveGraph stores a graph and its metadata under name, replacing any
	// prior graph with that name.
	SaveGraph(name string, graph *GraphData, meta *GraphMeta) error

	// LoadGraph retrieves a graph by name.
	// Returns nil, nil, nil if no graph is stored under name.
	LoadGraph(name string) (*GraphData, *GraphMeta, error)

	// DeleteGraph removes a graph. Deleting a missing graph is not an error.
	DeleteGraph(name string) error

	// ListGraphs returns the metadata of every stored graph, sorted by name.
	ListGraphs() ([]GraphMeta, error)
}

// GraphData is the plain-data form of a compiled context graph. State IDs
// are slice indices; Failures[0] is -1 (the start state has no failure link).
type GraphData struct {
	States         []StateData
	Failures       []int
	FallbackFinals map[int]int // state -> nearest final state on its failure chain
	MaxDepth       int
}

// StateData is one state of a GraphData. Phrase is set exactly when Final is.
type StateData struct {
	Arcs   []ArcData
	Final  bool
	Phrase string
}

// ArcData is one arc. Unit 0 marks a fallback arc.
type ArcData struct {
	Unit   int
	Weight float64
	Next   int
}

// GraphMeta describes where a stored graph came from.
type GraphMeta struct {
	Name       string  `json:"name"`
	VocabPath  string  `json:"vocab_path,omitempty"`
	PhrasePath string  `json:"phrase_path,omitempty"`
	Bias       float64 `json:"bias"`
	VocabSize  int     `json:"vocab_size"`
	Phrases    int     `json:"phrases"`
	States     int     `json:"states"`
	Arcs       int     `json:"arcs"`
	BuiltAt    int64   `json:"built_at"`
	Generation uint64  `json:"generation"`
}
