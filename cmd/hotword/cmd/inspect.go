package cmd

import (
	"fmt"

	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/domain/vocab"
	"github.com/spf13/cobra"
)

var (
	inspectDot     string
	inspectPhrases bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [name]",
	Short: "Show a stored graph",
	Long:  "Loads a graph from the project database and prints its size and origin. No daemon required.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDot, "dot", "", "Write the graph in Graphviz format (- for stdout)")
	inspectCmd.Flags().BoolVar(&inspectPhrases, "phrases", false, "List the phrases in the graph")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	name := cfg.Graph
	if len(args) == 1 {
		name = args[0]
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	data, meta, err := store.LoadGraph(name)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("no stored graph %q", name)
	}
	g, err := contextgraph.Import(data)
	if err != nil {
		return err
	}

	if inspectDot != "" {
		var v *vocab.Vocabulary
		if meta != nil && meta.VocabPath != "" {
			v, _ = vocab.LoadFile(meta.VocabPath)
		}
		if err := writeDot(inspectDot, g, v); err != nil {
			return err
		}
		if inspectDot == "-" {
			return nil
		}
	}

	fmt.Print(formatStats(name, g.Stats(), meta))
	if inspectPhrases {
		for _, p := range g.Phrases() {
			fmt.Printf("  %s%s%s\n", colorMagenta, p, colorReset)
		}
	}
	return nil
}
