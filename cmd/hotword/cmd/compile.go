package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/corey/hotword/internal/app"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/domain/vocab"
	"github.com/spf13/cobra"
)

var (
	compileDot    string
	compileDump   bool
	compileNoSave bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the phrase list into a context graph",
	Long: "Loads the vocabulary and phrase files, builds the context graph and\n" +
		"stores it in the project database. No daemon required.",
	Args: cobra.NoArgs,
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileDot, "dot", "", "Also write the graph in Graphviz format (- for stdout)")
	compileCmd.Flags().BoolVar(&compileDump, "dump", false, "Also write the graph to .hotword/contexts.dot")
	compileCmd.Flags().BoolVar(&compileNoSave, "no-save", false, "Build and report without storing")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, err := app.Compile(cfg, slog.Default())
	if err != nil {
		return err
	}

	meta := c.Meta
	if !compileNoSave {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		_, prev, err := store.LoadGraph(cfg.Graph)
		if err != nil {
			return err
		}
		meta.Generation = 1
		if prev != nil {
			meta.Generation = prev.Generation + 1
		}
		if err := store.SaveGraph(cfg.Graph, c.Graph.Export(), &meta); err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
	}

	if compileDot != "" {
		if err := writeDot(compileDot, c.Graph, c.Vocab); err != nil {
			return err
		}
	}

	if compileDump {
		paths := app.NewPaths(cfg.ProjectRoot)
		if err := paths.EnsureDirs(); err != nil {
			return err
		}
		if err := writeDot(paths.Dot, c.Graph, c.Vocab); err != nil {
			return err
		}
		slog.Debug("graph dumped", "path", paths.Dot)
	}

	if compileDot != "-" {
		fmt.Print(formatStats(cfg.Graph, c.Graph.Stats(), &meta))
		if compileNoSave {
			fmt.Printf("  %s(not saved)%s\n", colorGray, colorReset)
		}
	}
	return nil
}

// writeDot writes g in Graphviz format to path, or stdout for "-". Units are
// labelled with their vocabulary symbols when v is non-nil.
func writeDot(path string, g *contextgraph.Graph, v *vocab.Vocabulary) error {
	symbol := func(unit int) string {
		if v != nil {
			if s, ok := v.Symbol(unit); ok {
				return s
			}
		}
		return fmt.Sprint(unit)
	}

	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := g.WriteDot(w, symbol); err != nil {
		return fmt.Errorf("write dot: %w", err)
	}
	return nil
}
