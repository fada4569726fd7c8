package cmd

import (
	"fmt"
	"strconv"

	"github.com/corey/hotword/internal/adapters/socket"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/spf13/cobra"
)

var (
	stepState      int
	stepGeneration uint64
)

var stepCmd = &cobra.Command{
	Use:   "step <token-id>...",
	Short: "Step the daemon's graph with raw token IDs",
	Long: "Sends one step request per token, carrying the state forward the way a\n" +
		"decoder does. A stale reply restarts the stream from state 0.",
	Args: cobra.MinimumNArgs(1),
	RunE: runStep,
}

func init() {
	stepCmd.Flags().IntVar(&stepState, "state", contextgraph.Start, "State to start from")
	stepCmd.Flags().Uint64Var(&stepGeneration, "generation", 0, "Generation the state belongs to (default: current)")
}

func runStep(cmd *cobra.Command, args []string) error {
	tokens := make([]int, len(args))
	for i, a := range args {
		t, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("token %q is not an integer", a)
		}
		tokens[i] = t
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client := socket.NewClient(cfg.Socket)
	if !client.Ping() {
		return fmt.Errorf("daemon not running. Start with: hotword daemon start")
	}

	gen := stepGeneration
	if gen == 0 {
		health, err := client.Health()
		if err != nil {
			return err
		}
		gen = health.Generation
	}

	state := stepState
	steps := make([]contextgraph.StepResult, 0, len(tokens))
	for _, tok := range tokens {
		r, err := client.Step(gen, state, tok)
		if err != nil {
			return err
		}
		if r.Stale {
			fmt.Printf("%s⚠ graph reloaded (generation %d → %d), stream restarted%s\n",
				colorYellow, gen, r.Generation, colorReset)
			gen, state = r.Generation, contextgraph.Start
			if r, err = client.Step(gen, state, tok); err != nil {
				return err
			}
		}
		steps = append(steps, contextgraph.StepResult{Unit: tok, Next: r.Next, Score: r.Score, Matched: r.Matched})
		state = r.Next
	}
	fmt.Print(formatSteps(nil, steps))
	return nil
}
