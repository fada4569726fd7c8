package web

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corey/hotword/internal/adapters/socket"
)

// maxBody caps POST bodies, matching the socket protocol's message limit.
const maxBody = 1 << 20

// PhrasesResult lists the phrases of the live graph.
type PhrasesResult struct {
	Generation uint64   `json:"generation"`
	Phrases    []string `json:"phrases"`
	Count      int      `json:"count"`
}

// Server serves the status page and JSON API over HTTP.
type Server struct {
	engine   socket.Engine
	listener net.Listener
	httpSrv  *http.Server
	port     int
	started  time.Time
	stopOnce sync.Once

	portFilePath string // .hotword/run/http.port
}

// NewServer creates an HTTP server over engine.
// The portFilePath is where the bound port is written for discovery.
func NewServer(engine socket.Engine, portFilePath string) *Server {
	return &Server{
		engine:       engine,
		portFilePath: portFilePath,
		started:      time.Now(),
	}
}

// DefaultPort computes a project-specific port: 19000 + (hash(abs_path) % 1000).
func DefaultPort(projectRoot string) int {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	// Use first 4 bytes as uint32
	n := uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
	return 19000 + int(n%1000)
}

// Start begins listening on the preferred port (0 picks a free one) and
// writes the bound port to the port file.
func (s *Server) Start(preferredPort int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", preferredPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.started = time.Now()

	s.httpSrv = &http.Server{Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second}

	if s.portFilePath != "" {
		os.WriteFile(s.portFilePath, []byte(fmt.Sprintf("%d", s.port)), 0644)
	}

	go s.httpSrv.Serve(ln)
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(staticFS))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/phrases", s.handlePhrases)
	mux.HandleFunc("POST /api/spot", s.handleSpot)
	mux.HandleFunc("GET /api/graph.dot", s.handleDot)
	return mux
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.httpSrv.Shutdown(ctx)
		}
		if s.portFilePath != "" {
			os.Remove(s.portFilePath)
		}
	})
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

// URL returns the status page URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, socket.NewHealthResult(s.engine.Snapshot(), s.started))
}

func (s *Server) handlePhrases(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no graph loaded")
		return
	}
	phrases := snap.Graph.Phrases()
	if phrases == nil {
		phrases = []string{}
	}
	writeJSON(w, http.StatusOK, PhrasesResult{
		Generation: snap.Generation,
		Phrases:    phrases,
		Count:      len(phrases),
	})
}

func (s *Server) handleSpot(w http.ResponseWriter, r *http.Request) {
	var params socket.SpotParams
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid spot params")
		return
	}
	snap := s.engine.Snapshot()
	if snap == nil || snap.Spotter == nil {
		writeError(w, http.StatusServiceUnavailable, "no graph loaded")
		return
	}
	writeJSON(w, http.StatusOK, socket.NewSpotResult(snap.Spotter, params.Text))
}

func (s *Server) handleDot(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no graph loaded")
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	snap.Graph.WriteDot(w, snap.Symbol)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
