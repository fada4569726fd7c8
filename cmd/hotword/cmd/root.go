package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/corey/hotword/internal/adapters/bbolt"
	"github.com/corey/hotword/internal/app"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	vocabFlag  string
	phraseFlag string
	biasFlag   float64
	graphFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "hotword",
	Short: "hotword — context biasing graphs for streaming decoders",
	Long: "Compiles hot phrases into a weighted Aho-Corasick graph and serves\n" +
		"per-token score bonuses to a decoder over a local socket.",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// projectRoot returns the project root (cwd by default).
func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return dir
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default .hotword/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&vocabFlag, "vocab", "", "Vocabulary file (symbol id per line)")
	pf.StringVar(&phraseFlag, "phrases", "", "Hot phrase file (one phrase per line)")
	pf.Float64Var(&biasFlag, "bias", 0, "Score bonus per matched unit")
	pf.StringVar(&graphFlag, "graph", "", "Name of the stored graph")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(spotCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
}

// setupLogging installs the default slog handler. Logs go to stderr so
// command output on stdout stays clean.
func setupLogging(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv("HOTWORD_LOG_LEVEL")
	}
	if level == "" {
		level = app.DefaultLogLevel
	}
	lvl, err := app.ParseLogLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*app.Config, error) {
	cfg, err := app.LoadConfig(projectRoot(), configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("vocab") {
		cfg.Vocab = absPath(vocabFlag)
	}
	if flags.Changed("phrases") {
		cfg.Phrases = absPath(phraseFlag)
	}
	if flags.Changed("bias") {
		cfg.Bias = biasFlag
	}
	if flags.Changed("graph") {
		cfg.Graph = graphFlag
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// openStore opens the graph database, turning a lock timeout into guidance.
func openStore(cfg *app.Config) (*bbolt.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
		return nil, err
	}
	store, err := bbolt.NewStore(cfg.DB)
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("%s", diagnoseDBLock(cfg.Socket))
		}
		return nil, err
	}
	return store, nil
}
