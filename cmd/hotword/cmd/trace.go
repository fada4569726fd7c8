package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/corey/hotword/internal/app"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/domain/tokenize"
	"github.com/corey/hotword/internal/domain/vocab"
	"github.com/spf13/cobra"
)

var traceStored bool

var traceCmd = &cobra.Command{
	Use:   "trace <text>...",
	Short: "Feed text through the graph and show every step",
	Long: "Segments the text with the vocabulary and steps the context graph one\n" +
		"unit at a time, printing the state, score delta and completed phrases.",
	Args: cobra.MinimumNArgs(1),
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().BoolVar(&traceStored, "stored", false, "Use the stored graph instead of compiling the sources")
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var g *contextgraph.Graph
	var v *vocab.Vocabulary
	if traceStored {
		g, v, err = loadStoredGraph(cfg)
	} else {
		var c *app.Compiled
		c, err = app.Compile(cfg, slog.Default())
		if c != nil {
			g, v = c.Graph, c.Vocab
		}
	}
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("vocabulary unavailable; trace needs it to segment text")
	}

	text := strings.Join(args, " ")
	seg := tokenize.New(v, slog.Default()).Segment(text)
	if !seg.OK() {
		fmt.Printf("%s⚠ out of vocabulary: %s%s\n", colorYellow, strings.Join(seg.OOV, " "), colorReset)
	}

	symbols := make([]string, len(seg.Units))
	for i, u := range seg.Units {
		symbols[i], _ = v.Symbol(u)
	}
	steps := contextgraph.NewCursor(g).FeedAll(seg.Units)
	fmt.Print(formatSteps(symbols, steps))
	return nil
}

// loadStoredGraph reads the configured graph from the database and reloads
// the vocabulary it was built with, when that file still exists.
func loadStoredGraph(cfg *app.Config) (*contextgraph.Graph, *vocab.Vocabulary, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	data, meta, err := store.LoadGraph(cfg.Graph)
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		return nil, nil, fmt.Errorf("no stored graph %q. Build one with: hotword compile", cfg.Graph)
	}
	g, err := contextgraph.Import(data)
	if err != nil {
		return nil, nil, err
	}

	vocabPath := meta.VocabPath
	if cfg.Vocab != "" {
		vocabPath = cfg.Vocab
	}
	if vocabPath == "" {
		return g, nil, nil
	}
	v, err := vocab.LoadFile(vocabPath)
	if err != nil {
		slog.Warn("vocabulary unavailable", "path", vocabPath, "err", err)
		return g, nil, nil
	}
	return g, v, nil
}
