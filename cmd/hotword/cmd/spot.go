package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/corey/hotword/internal/adapters/ahocorasick"
	"github.com/corey/hotword/internal/adapters/socket"
	"github.com/corey/hotword/internal/app"
	"github.com/spf13/cobra"
)

var spotCmd = &cobra.Command{
	Use:   "spot <transcript>...",
	Short: "List the hot phrases that appear in a transcript",
	Long:  "Asks the running daemon, or compiles the sources locally when no daemon is up.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSpot,
}

func runSpot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	text := strings.Join(args, " ")

	client := socket.NewClient(cfg.Socket)
	if client.Ping() {
		result, err := client.Spot(text)
		if err != nil {
			return err
		}
		fmt.Print(formatSpot(result.Phrases))
		return nil
	}

	c, err := app.Compile(cfg, slog.Default())
	if err != nil {
		return err
	}
	spotter := ahocorasick.NewSpotter(c.Graph.Phrases())
	fmt.Print(formatSpot(spotter.Spot(text)))
	return nil
}
