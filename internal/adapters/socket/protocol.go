// Package socket implements a JSON-over-Unix-socket protocol for the hotword daemon.
// The protocol uses newline-delimited JSON: each message is one JSON object + \n.
//
// Decoders keep their own stream state (an integer) and send it with every
// step together with the graph generation it came from. After a reload the
// old integer means nothing in the new graph, so the server answers such a
// step with stale=true and the client restarts the stream from state 0.
package socket

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"time"

	"github.com/corey/hotword/internal/adapters/ahocorasick"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/domain/tokenize"
	"github.com/corey/hotword/internal/domain/vocab"
)

// SocketPath returns the Unix socket path for a given project root.
// Format: /tmp/hotword-{first12hex}.sock
func SocketPath(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("/tmp/hotword-%x.sock", h[:6])
}

// Method names for the protocol.
const (
	MethodStep     = "step"
	MethodFeed     = "feed"
	MethodSpot     = "spot"
	MethodHealth   = "health"
	MethodReload   = "reload"
	MethodShutdown = "shutdown"
)

// Request is the wire format for client-to-server messages.
type Request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Snapshot is one immutable build served by the daemon. Everything in it
// belongs to the same generation.
type Snapshot struct {
	Graph      *contextgraph.Graph
	Vocab      *vocab.Vocabulary   // nil when restored without its vocabulary
	Tokenizer  *tokenize.Tokenizer // nil whenever Vocab is
	Spotter    *ahocorasick.Spotter
	Generation uint64
	BuiltAt    time.Time
}

// Symbol labels unit with its vocabulary symbol, falling back to the number.
func (s *Snapshot) Symbol(unit int) string {
	if s.Vocab != nil {
		if sym, ok := s.Vocab.Symbol(unit); ok {
			return sym
		}
	}
	return fmt.Sprint(unit)
}

// Engine gives server handlers access to the live graph.
// Thread safety is the implementor's responsibility.
type Engine interface {
	// Snapshot returns the current build, or nil before the first build.
	Snapshot() *Snapshot
	// Reload rebuilds from the configured sources and swaps the result in.
	Reload() (ReloadResult, error)
}

// StepParams is the params for a step request.
type StepParams struct {
	Generation uint64 `json:"generation"`
	State      int    `json:"state"`
	Token      int    `json:"token"`
}

// StepReply is the result of a step request.
type StepReply struct {
	Generation uint64   `json:"generation"`
	Next       int      `json:"next"`
	Score      float64  `json:"score"`
	Matched    []string `json:"matched,omitempty"`
	Stale      bool     `json:"stale,omitempty"`
}

// FeedParams is the params for a feed request. Exactly one of Tokens and
// Text is used; Text is segmented with the graph's vocabulary.
type FeedParams struct {
	Tokens []int  `json:"tokens,omitempty"`
	Text   string `json:"text,omitempty"`
}

// FeedResult is the result of a feed request. The stream starts at state 0.
type FeedResult struct {
	Generation uint64                    `json:"generation"`
	Steps      []contextgraph.StepResult `json:"steps"`
	Total      float64                   `json:"total"`
	State      int                       `json:"state"`
	Matched    []string                  `json:"matched,omitempty"`
	OOV        []string                  `json:"oov,omitempty"`
}

// SpotParams is the params for a spot request.
type SpotParams struct {
	Text string `json:"text"`
}

// SpotResult is the result of a spot request.
type SpotResult struct {
	Phrases []string            `json:"phrases"`
	Matches []ahocorasick.Match `json:"matches,omitempty"`
	Count   int                 `json:"count"`
}

// NewSpotResult scans text with sp.
func NewSpotResult(sp *ahocorasick.Spotter, text string) SpotResult {
	phrases := sp.Spot(text)
	if phrases == nil {
		phrases = []string{}
	}
	return SpotResult{
		Phrases: phrases,
		Matches: sp.Scan(text),
		Count:   len(phrases),
	}
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status     string             `json:"status"`
	Generation uint64             `json:"generation"`
	Stats      contextgraph.Stats `json:"stats"`
	BuiltAt    string             `json:"built_at,omitempty"`
	Uptime     string             `json:"uptime"`
}

// NewHealthResult describes snap for a process that started at started.
// A nil snap reports status "empty".
func NewHealthResult(snap *Snapshot, started time.Time) HealthResult {
	result := HealthResult{
		Status: "ok",
		Uptime: time.Since(started).Round(time.Second).String(),
	}
	if snap == nil {
		result.Status = "empty"
		return result
	}
	result.Generation = snap.Generation
	result.Stats = snap.Graph.Stats()
	if !snap.BuiltAt.IsZero() {
		result.BuiltAt = snap.BuiltAt.Format(time.RFC3339)
	}
	return result
}

// ReloadResult is the result of a reload request.
type ReloadResult struct {
	Generation uint64 `json:"generation"`
	Phrases    int    `json:"phrases"`
	States     int    `json:"states"`
	Elapsed    string `json:"elapsed"`
}
