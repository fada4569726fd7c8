package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/corey/hotword/internal/adapters/ahocorasick"
	"github.com/corey/hotword/internal/adapters/socket"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/domain/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine serves a fixed snapshot.
type fakeEngine struct {
	snap *socket.Snapshot
}

func (e *fakeEngine) Snapshot() *socket.Snapshot { return e.snap }

func (e *fakeEngine) Reload() (socket.ReloadResult, error) {
	return socket.ReloadResult{}, nil
}

func newTestSnapshot(t *testing.T) *socket.Snapshot {
	t.Helper()
	v, err := vocab.New(map[string]int{"<blank>": 0, "A": 1, "B": 2, "C": 3})
	require.NoError(t, err)
	g, err := contextgraph.New(v, []string{"AB", "BC"}, 1.5)
	require.NoError(t, err)
	return &socket.Snapshot{
		Graph:      g,
		Vocab:      v,
		Spotter:    ahocorasick.NewSpotter(g.Phrases()),
		Generation: 4,
		BuiltAt:    time.Now(),
	}
}

func setupTestServer(t *testing.T, snap *socket.Snapshot) *httptest.Server {
	t.Helper()
	srv := NewServer(&fakeEngine{snap: snap}, "")
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, newTestSnapshot(t))

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var result socket.HealthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, uint64(4), result.Generation)
	assert.Equal(t, 2, result.Stats.Phrases)
	assert.NotEmpty(t, result.BuiltAt)
}

func TestHealthEndpoint_Empty(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var result socket.HealthResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "empty", result.Status)
}

func TestPhrasesEndpoint(t *testing.T) {
	ts := setupTestServer(t, newTestSnapshot(t))

	resp, err := http.Get(ts.URL + "/api/phrases")
	require.NoError(t, err)
	defer resp.Body.Close()

	var result PhrasesResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, []string{"AB", "BC"}, result.Phrases)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, uint64(4), result.Generation)
}

func TestSpotEndpoint(t *testing.T) {
	ts := setupTestServer(t, newTestSnapshot(t))

	resp, err := http.Post(ts.URL+"/api/spot", "application/json", strings.NewReader(`{"text":"xabc"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	var result socket.SpotResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, []string{"AB", "BC"}, result.Phrases)
	assert.Len(t, result.Matches, 2)
}

func TestSpotEndpoint_Errors(t *testing.T) {
	ts := setupTestServer(t, newTestSnapshot(t))
	resp, err := http.Post(ts.URL+"/api/spot", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	empty := setupTestServer(t, nil)
	resp, err = http.Post(empty.URL+"/api/spot", "application/json", strings.NewReader(`{"text":"ab"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "no graph loaded", body["error"])
}

func TestDotEndpoint(t *testing.T) {
	ts := setupTestServer(t, newTestSnapshot(t))

	resp, err := http.Get(ts.URL + "/api/graph.dot")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph context {"))
	assert.Contains(t, string(data), `label="A/1.5"`)
}

func TestStatusPageHTML(t *testing.T) {
	ts := setupTestServer(t, newTestSnapshot(t))

	resp, err := http.Get(ts.URL + "/static/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	ct := resp.Header.Get("Content-Type")
	assert.True(t, strings.HasPrefix(ct, "text/html"), "content-type should be text/html, got %s", ct)
}

func TestServer_StartStopPortFile(t *testing.T) {
	portFile := filepath.Join(t.TempDir(), "http.port")
	srv := NewServer(&fakeEngine{snap: newTestSnapshot(t)}, portFile)
	require.NoError(t, srv.Start(0))

	data, err := os.ReadFile(portFile)
	require.NoError(t, err)
	port, err := strconv.Atoi(string(data))
	require.NoError(t, err)
	assert.Equal(t, srv.Port(), port)

	resp, err := http.Get(srv.URL() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	srv.Stop()
	srv.Stop()
	assert.NoFileExists(t, portFile)
}

func TestDefaultPort(t *testing.T) {
	port := DefaultPort("/home/user/project")
	assert.GreaterOrEqual(t, port, 19000)
	assert.Less(t, port, 20000)
	assert.Equal(t, port, DefaultPort("/home/user/project"))
}
