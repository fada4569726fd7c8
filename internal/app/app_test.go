package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/corey/hotword/internal/adapters/socket"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUnits = `<blank> 0
<unk> 1
天 2
行 3
健 4
A 5
B 6
C 7
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConfig writes a vocabulary and phrase list under a temp project root.
func newTestConfig(t *testing.T, phrases string) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Vocab = filepath.Join(dir, "units.txt")
	cfg.Phrases = filepath.Join(dir, "hotwords.txt")
	cfg.Socket = filepath.Join(dir, "hotword.sock")
	cfg.Bias = 2
	cfg.Watch = false
	cfg.HTTP = false
	require.NoError(t, os.WriteFile(cfg.Vocab, []byte(testUnits), 0644))
	require.NoError(t, os.WriteFile(cfg.Phrases, []byte(phrases), 0644))
	return cfg
}

func newTestApp(t *testing.T, cfg *Config) *App {
	t.Helper()
	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	return a
}

func TestCompile(t *testing.T) {
	cfg := newTestConfig(t, "天行健\nab\n\n  行健  \n")

	c, err := Compile(cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "天行健", "行健"}, c.Graph.Phrases(), "original text is kept")
	assert.Len(t, c.Phrases, 3)
	assert.Equal(t, "default", c.Meta.Name)
	assert.Equal(t, 8, c.Meta.VocabSize)
	assert.Equal(t, 3, c.Meta.Phrases)
	assert.Equal(t, c.Graph.NumStates(), c.Meta.States)
	assert.Equal(t, 2.0, c.Meta.Bias)
	assert.NotZero(t, c.Meta.BuiltAt)

	snap := c.Snapshot(7, quietLogger())
	assert.Equal(t, uint64(7), snap.Generation)
	assert.ElementsMatch(t, []string{"天行健", "行健"}, snap.Spotter.Spot("自强不息天行健"))
	units, ok := snap.Tokenizer.Tokenize("天行健")
	assert.True(t, ok)
	assert.Equal(t, []int{2, 3, 4}, units)
}

func TestCompile_Errors(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	_, err := Compile(cfg, nil)
	assert.Error(t, err, "sources are required")

	cfg = newTestConfig(t, "AB\n")
	require.NoError(t, os.WriteFile(cfg.Vocab, []byte("A one\n"), 0644))
	_, err = Compile(cfg, nil)
	assert.Error(t, err)

	cfg = newTestConfig(t, "AB\n")
	require.NoError(t, os.Remove(cfg.Phrases))
	_, err = Compile(cfg, nil)
	assert.Error(t, err)
}

func TestApp_New_RequiresRoot(t *testing.T) {
	_, err := New(&Config{}, nil)
	assert.Error(t, err)
	_, err = New(nil, nil)
	assert.Error(t, err)
}

func TestApp_ReloadBumpsGeneration(t *testing.T) {
	cfg := newTestConfig(t, "天行健\n")
	a := newTestApp(t, cfg)
	defer a.Stop()

	assert.Nil(t, a.Snapshot())
	assert.Equal(t, uint64(0), a.Generation())

	r, err := a.Reload()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Generation)
	assert.Equal(t, 1, r.Phrases)
	assert.Equal(t, uint64(1), a.Generation())
	first := a.Snapshot()

	require.NoError(t, os.WriteFile(cfg.Phrases, []byte("天行健\nAB\n"), 0644))
	r, err = a.Reload()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.Generation)
	assert.Equal(t, 2, r.Phrases)

	// The old snapshot is untouched; holders of it keep a consistent view.
	assert.Equal(t, []string{"天行健"}, first.Graph.Phrases())
	assert.Equal(t, []string{"AB", "天行健"}, a.Snapshot().Graph.Phrases())

	// The store holds the latest build.
	data, meta, err := a.Store.LoadGraph("default")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, uint64(2), meta.Generation)
	assert.Equal(t, 2, meta.Phrases)
}

func TestApp_ReloadFailureKeepsGraph(t *testing.T) {
	cfg := newTestConfig(t, "天行健\n")
	a := newTestApp(t, cfg)
	defer a.Stop()

	_, err := a.Reload()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(cfg.Vocab, []byte("broken\n"), 0644))
	_, err = a.Reload()
	require.Error(t, err)

	snap := a.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, []string{"天行健"}, snap.Graph.Phrases())
}

func TestApp_GenerationSurvivesRestart(t *testing.T) {
	cfg := newTestConfig(t, "AB\n")

	a := newTestApp(t, cfg)
	_, err := a.Reload()
	require.NoError(t, err)
	_, err = a.Reload()
	require.NoError(t, err)
	require.NoError(t, a.Stop())

	b := newTestApp(t, cfg)
	defer b.Stop()
	r, err := b.Reload()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.Generation)
}

func TestApp_RestoreFromStore(t *testing.T) {
	cfg := newTestConfig(t, "ABC\nBC\n")

	a := newTestApp(t, cfg)
	_, err := a.Reload()
	require.NoError(t, err)
	want := a.Snapshot().Graph.Export()
	require.NoError(t, a.Stop())

	// Phrase file gone: Start falls back to the stored graph.
	require.NoError(t, os.Remove(cfg.Phrases))
	b := newTestApp(t, cfg)
	require.NoError(t, b.Start())
	defer b.Stop()

	snap := b.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, want, snap.Graph.Export())
	require.NotNil(t, snap.Tokenizer, "vocabulary is reloaded from its recorded path")

	res, err := socket.NewClient(cfg.Socket).FeedText("abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "BC"}, res.Matched)
}

func TestApp_RestoreWithoutVocabulary(t *testing.T) {
	cfg := newTestConfig(t, "AB\n")

	a := newTestApp(t, cfg)
	_, err := a.Reload()
	require.NoError(t, err)
	require.NoError(t, a.Stop())

	require.NoError(t, os.Remove(cfg.Vocab))
	b := newTestApp(t, cfg)
	defer b.Stop()
	require.NoError(t, b.Restore())

	snap := b.Snapshot()
	require.NotNil(t, snap)
	assert.Nil(t, snap.Tokenizer)
	assert.Equal(t, []string{"AB"}, snap.Spotter.Spot("xxabxx"))
}

func TestApp_StartWithNothing(t *testing.T) {
	cfg := newTestConfig(t, "AB\n")
	require.NoError(t, os.Remove(cfg.Vocab))

	a := newTestApp(t, cfg)
	defer a.Stop()
	err := a.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial build")

	assert.ErrorIs(t, a.Restore(), ErrNoGraph)
}

func TestApp_EndToEndOverSocket(t *testing.T) {
	cfg := newTestConfig(t, "天行健\n")
	a := newTestApp(t, cfg)
	require.NoError(t, a.Start())
	defer a.Stop()

	client := socket.NewClient(cfg.Socket)
	require.True(t, client.Ping())

	// Token by token, the way a decoder drives it.
	state := contextgraph.Start
	var total float64
	var matched []string
	for _, tok := range []int{2, 3, 4} {
		r, err := client.Step(a.Generation(), state, tok)
		require.NoError(t, err)
		require.False(t, r.Stale)
		state = r.Next
		total += r.Score
		matched = append(matched, r.Matched...)
	}
	assert.Equal(t, contextgraph.Start, state)
	assert.InDelta(t, 6.0, total, 1e-9)
	assert.Equal(t, []string{"天行健"}, matched)

	health, err := client.Health()
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, uint64(1), health.Generation)

	r, err := client.Reload()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.Generation)
	assert.Greater(t, a.Uptime(), time.Duration(0))
}

func TestApp_HTTPAPI(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := newTestConfig(t, "ab\n")
	cfg.HTTP = true
	cfg.HTTPPort = port
	a := newTestApp(t, cfg)
	require.NoError(t, a.Start())
	require.Equal(t, port, a.Web.Port(), "port taken by another process")

	resp, err := http.Post(a.Web.URL()+"/api/spot", "application/json", strings.NewReader(`{"text":"cab"}`))
	require.NoError(t, err)
	var result socket.SpotResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, []string{"ab"}, result.Phrases)
	assert.FileExists(t, a.Paths.PortFile)

	require.NoError(t, a.Stop())
	assert.NoFileExists(t, a.Paths.PortFile)
}
