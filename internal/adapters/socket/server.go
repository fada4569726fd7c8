package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/domain/vocab"
)

// Server is the daemon that listens on a Unix socket and serves step requests.
type Server struct {
	engine   Engine
	logger   *slog.Logger
	listener net.Listener
	sockPath string
	started  time.Time

	done         chan struct{}
	shutdownCh   chan struct{} // closed when a remote shutdown request is received
	shutdownOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewServer creates a daemon server backed by engine. A nil logger falls
// back to slog.Default().
func NewServer(engine Engine, sockPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:     engine,
		logger:     logger,
		sockPath:   sockPath,
		done:       make(chan struct{}),
		shutdownCh: make(chan struct{}),
	}
}

// Start begins listening on the Unix socket. It handles stale sockets by
// attempting a connection first. If the connection fails, the stale socket
// is removed before binding.
func (s *Server) Start() error {
	// Handle stale socket
	if _, err := os.Stat(s.sockPath); err == nil {
		conn, err := net.DialTimeout("unix", s.sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("daemon already running at %s", s.sockPath)
		}
		os.Remove(s.sockPath)
	}

	ln, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	s.started = time.Now()

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("daemon listening", "socket", s.sockPath)
	return nil
}

// Stop gracefully shuts down the server, closing the listener and removing the socket file.
// Idempotent, so it is safe after a remote shutdown followed by a signal.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.sockPath)
	})
	return nil
}

// ShutdownCh returns a channel that is closed when a remote shutdown request
// is received. The daemon's main goroutine should select on this alongside
// OS signals so the process actually exits after a remote stop.
func (s *Server) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.sockPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner on Stop so wg.Wait does not hang on idle clients.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-s.done:
			conn.SetReadDeadline(time.Now())
		case <-connDone:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max message

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, Response{Error: "invalid request JSON"})
			continue
		}

		resp := s.handleRequest(req)
		s.writeResponse(conn, resp)

		if req.Method == MethodShutdown {
			s.shutdownOnce.Do(func() { close(s.shutdownCh) })
			return
		}
	}
}

func (s *Server) handleRequest(req Request) Response {
	switch req.Method {
	case MethodStep:
		return s.handleStep(req)
	case MethodFeed:
		return s.handleFeed(req)
	case MethodSpot:
		return s.handleSpot(req)
	case MethodHealth:
		return s.handleHealth(req)
	case MethodReload:
		return s.handleReload(req)
	case MethodShutdown:
		return Response{ID: req.ID, Result: struct{}{}}
	default:
		return Response{ID: req.ID, Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// decodeParams re-marshals the generic params into dst.
func decodeParams(req Request, dst interface{}) error {
	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return err
	}
	return json.Unmarshal(paramsJSON, dst)
}

func (s *Server) handleStep(req Request) Response {
	var params StepParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid step params"}
	}
	snap := s.engine.Snapshot()
	if snap == nil {
		return Response{ID: req.ID, Error: "no graph loaded"}
	}
	if params.Token <= vocab.Epsilon {
		return Response{ID: req.ID, Error: fmt.Sprintf("invalid token %d", params.Token)}
	}

	// State 0 means the same thing in every generation.
	if params.Generation != snap.Generation && params.State != contextgraph.Start {
		return Response{ID: req.ID, Result: StepReply{
			Generation: snap.Generation,
			Next:       contextgraph.Start,
			Stale:      true,
		}}
	}
	g := snap.Graph
	if !g.Empty() && (params.State < 0 || params.State >= g.NumStates()) {
		return Response{ID: req.ID, Error: fmt.Sprintf("state %d out of range", params.State)}
	}

	next, score, matched := g.Step(params.State, params.Token)
	return Response{ID: req.ID, Result: StepReply{
		Generation: snap.Generation,
		Next:       next,
		Score:      score,
		Matched:    matched,
	}}
}

func (s *Server) handleFeed(req Request) Response {
	var params FeedParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid feed params"}
	}
	snap := s.engine.Snapshot()
	if snap == nil {
		return Response{ID: req.ID, Error: "no graph loaded"}
	}

	tokens := params.Tokens
	var oov []string
	if params.Text != "" {
		if len(tokens) > 0 {
			return Response{ID: req.ID, Error: "feed takes tokens or text, not both"}
		}
		if snap.Tokenizer == nil {
			return Response{ID: req.ID, Error: "no vocabulary loaded"}
		}
		seg := snap.Tokenizer.Segment(params.Text)
		tokens, oov = seg.Units, seg.OOV
	}
	for _, t := range tokens {
		if t <= vocab.Epsilon {
			return Response{ID: req.ID, Error: fmt.Sprintf("invalid token %d", t)}
		}
	}

	cursor := contextgraph.NewCursor(snap.Graph)
	steps := cursor.FeedAll(tokens)
	var matched []string
	for _, st := range steps {
		matched = append(matched, st.Matched...)
	}

	return Response{ID: req.ID, Result: FeedResult{
		Generation: snap.Generation,
		Steps:      steps,
		Total:      cursor.Score(),
		State:      cursor.State(),
		Matched:    matched,
		OOV:        oov,
	}}
}

func (s *Server) handleSpot(req Request) Response {
	var params SpotParams
	if err := decodeParams(req, &params); err != nil {
		return Response{ID: req.ID, Error: "invalid spot params"}
	}
	snap := s.engine.Snapshot()
	if snap == nil || snap.Spotter == nil {
		return Response{ID: req.ID, Error: "no graph loaded"}
	}

	return Response{ID: req.ID, Result: NewSpotResult(snap.Spotter, params.Text)}
}

func (s *Server) handleHealth(req Request) Response {
	return Response{ID: req.ID, Result: NewHealthResult(s.engine.Snapshot(), s.started)}
}

func (s *Server) handleReload(req Request) Response {
	result, err := s.engine.Reload()
	if err != nil {
		s.logger.Error("reload failed", "err", err)
		return Response{ID: req.ID, Error: err.Error()}
	}
	return Response{ID: req.ID, Result: result}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	conn.Write(data)
}
