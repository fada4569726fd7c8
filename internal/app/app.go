// Package app wires together all adapters and domain logic.
// It provides lifecycle management for the hotword daemon: create, start, stop.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corey/hotword/internal/adapters/ahocorasick"
	"github.com/corey/hotword/internal/adapters/bbolt"
	fsw "github.com/corey/hotword/internal/adapters/fsnotify"
	"github.com/corey/hotword/internal/adapters/socket"
	"github.com/corey/hotword/internal/adapters/web"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/domain/tokenize"
	"github.com/corey/hotword/internal/domain/vocab"
	"github.com/corey/hotword/internal/ports"
)

// ErrNoGraph is returned when neither the sources nor the store yield a graph.
var ErrNoGraph = errors.New("no graph available")

// Compiled is the product of one build from the configured sources.
type Compiled struct {
	Vocab   *vocab.Vocabulary
	Graph   *contextgraph.Graph
	Phrases []contextgraph.Phrase
	Meta    ports.GraphMeta
}

// Compile loads the vocabulary and phrase files named by cfg and builds the
// context graph. It does not touch the store.
func Compile(cfg *Config, logger *slog.Logger) (*Compiled, error) {
	if err := cfg.RequireSources(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	v, err := vocab.LoadFile(cfg.Vocab)
	if err != nil {
		return nil, err
	}
	phrases, err := contextgraph.LoadPhraseFile(cfg.Phrases, cfg.Bias)
	if err != nil {
		return nil, err
	}
	g, err := contextgraph.Build(v, phrases, contextgraph.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	st := g.Stats()
	return &Compiled{
		Vocab:   v,
		Graph:   g,
		Phrases: phrases,
		Meta: ports.GraphMeta{
			Name:       cfg.Graph,
			VocabPath:  cfg.Vocab,
			PhrasePath: cfg.Phrases,
			Bias:       cfg.Bias,
			VocabSize:  v.Len(),
			Phrases:    st.Phrases,
			States:     st.States,
			Arcs:       st.Arcs,
			BuiltAt:    time.Now().Unix(),
		},
	}, nil
}

// Snapshot packages the build for serving under generation.
func (c *Compiled) Snapshot(generation uint64, logger *slog.Logger) *socket.Snapshot {
	return &socket.Snapshot{
		Graph:      c.Graph,
		Vocab:      c.Vocab,
		Tokenizer:  tokenize.New(c.Vocab, logger),
		Spotter:    ahocorasick.NewSpotter(c.Graph.Phrases()),
		Generation: generation,
		BuiltAt:    time.Unix(c.Meta.BuiltAt, 0),
	}
}

// App is the top-level container wiring all components together.
type App struct {
	Config  *Config
	Paths   *Paths
	Store   *bbolt.Store
	Watcher *fsw.Watcher // nil when watching is disabled
	Server  *socket.Server
	Web     *web.Server // nil when the HTTP API is disabled

	logger     *slog.Logger
	current    atomic.Pointer[socket.Snapshot]
	mu         sync.Mutex // serializes rebuilds
	generation uint64     // last generation handed out, guarded by mu
	started    time.Time
}

var _ socket.Engine = (*App)(nil)

// New creates an App with all dependencies wired. Does not start services.
func New(cfg *Config, logger *slog.Logger) (*App, error) {
	if cfg == nil || cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("project root required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	paths := NewPaths(cfg.ProjectRoot)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create %s: %w", paths.Root, err)
	}

	store, err := bbolt.NewStore(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Generations keep counting across restarts.
	_, meta, err := store.LoadGraph(cfg.Graph)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load graph meta: %w", err)
	}

	a := &App{
		Config: cfg,
		Paths:  paths,
		Store:  store,
		logger: logger,
	}
	if meta != nil {
		a.generation = meta.Generation
	}

	if cfg.Watch {
		a.Watcher, err = fsw.NewWatcher(time.Duration(cfg.Debounce))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
	}

	a.Server = socket.NewServer(a, cfg.Socket, logger)
	if cfg.HTTP {
		a.Web = web.NewServer(a, paths.PortFile)
	}
	return a, nil
}

// Snapshot returns the graph currently being served, or nil.
func (a *App) Snapshot() *socket.Snapshot {
	return a.current.Load()
}

// Generation returns the generation of the graph being served, or 0.
func (a *App) Generation() uint64 {
	if s := a.current.Load(); s != nil {
		return s.Generation
	}
	return 0
}

// Reload compiles the sources, persists the result and swaps it in. On any
// error the previous graph keeps serving.
func (a *App) Reload() (socket.ReloadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	c, err := Compile(a.Config, a.logger)
	if err != nil {
		return socket.ReloadResult{}, err
	}

	gen := a.generation + 1
	c.Meta.Generation = gen
	if err := a.Store.SaveGraph(a.Config.Graph, c.Graph.Export(), &c.Meta); err != nil {
		return socket.ReloadResult{}, fmt.Errorf("save graph: %w", err)
	}
	a.generation = gen
	a.current.Store(c.Snapshot(gen, a.logger))

	elapsed := time.Since(start)
	a.logger.Info("graph swapped",
		"generation", gen,
		"phrases", c.Meta.Phrases,
		"states", c.Meta.States,
		"elapsed", elapsed,
	)
	return socket.ReloadResult{
		Generation: gen,
		Phrases:    c.Meta.Phrases,
		States:     c.Meta.States,
		Elapsed:    elapsed.Round(time.Microsecond).String(),
	}, nil
}

// Restore serves the graph last saved under the configured name. The
// vocabulary is reloaded from the recorded path when possible so that text
// feeds keep working; without it only token feeds are served.
func (a *App) Restore() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, meta, err := a.Store.LoadGraph(a.Config.Graph)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	if data == nil {
		return ErrNoGraph
	}
	g, err := contextgraph.Import(data)
	if err != nil {
		return err
	}

	snap := &socket.Snapshot{
		Graph:      g,
		Spotter:    ahocorasick.NewSpotter(g.Phrases()),
		Generation: meta.Generation,
		BuiltAt:    time.Unix(meta.BuiltAt, 0),
	}
	if meta.VocabPath != "" {
		if v, err := vocab.LoadFile(meta.VocabPath); err == nil {
			snap.Vocab = v
			snap.Tokenizer = tokenize.New(v, a.logger)
		} else {
			a.logger.Warn("stored graph restored without vocabulary", "err", err)
		}
	}
	if meta.Generation > a.generation {
		a.generation = meta.Generation
	}
	a.current.Store(snap)
	a.logger.Info("graph restored", "name", a.Config.Graph, "generation", meta.Generation, "states", g.NumStates())
	return nil
}

// Start builds (or restores) the graph, then starts the socket server and
// the source watcher.
func (a *App) Start() error {
	a.started = time.Now()

	if _, err := a.Reload(); err != nil {
		// An inconsistent graph is a bug, never something to paper over.
		if errors.Is(err, contextgraph.ErrInconsistentGraph) {
			return err
		}
		if rerr := a.Restore(); rerr != nil {
			return fmt.Errorf("initial build: %w", err)
		}
		a.logger.Warn("sources failed to build; serving stored graph", "err", err)
	}

	if err := a.Server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	// HTTP API is non-fatal if the port is taken
	if a.Web != nil {
		port := a.Config.HTTPPort
		if port == 0 {
			port = web.DefaultPort(a.Config.ProjectRoot)
		}
		if err := a.Web.Start(port); err != nil {
			a.logger.Warn("HTTP API unavailable", "err", err)
		} else {
			a.logger.Info("HTTP API listening", "url", a.Web.URL())
		}
	}
	// Start file watcher, non-fatal if setup fails
	if err := a.watchSources(); err != nil {
		a.logger.Warn("file watcher unavailable", "err", err)
	}
	return nil
}

// Stop gracefully shuts down all services and closes the store.
func (a *App) Stop() error {
	if a.Watcher != nil {
		a.Watcher.Stop()
	}
	if a.Web != nil {
		a.Web.Stop()
	}
	if a.Server != nil {
		a.Server.Stop()
	}
	return a.Store.Close()
}

// Uptime returns how long the app has been started.
func (a *App) Uptime() time.Duration {
	if a.started.IsZero() {
		return 0
	}
	return time.Since(a.started)
}
