package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/corey/hotword/internal/adapters/socket"
	"github.com/corey/hotword/internal/adapters/web"
	"github.com/corey/hotword/internal/app"
	"github.com/spf13/cobra"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long:  "Shows the resolved configuration and daemon status. No daemon required.",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client := socket.NewClient(cfg.Socket)
	daemonStatus := fmt.Sprintf("%s✗ not running%s", colorYellow, colorReset)
	if client.Ping() {
		daemonStatus = fmt.Sprintf("%s✓ running%s", colorGreen, colorReset)
	}
	source := cfg.Path
	if source == "" {
		source = fmt.Sprintf("%s(defaults)%s", colorGray, colorReset)
	}

	fmt.Printf("%s⚡ hotword config%s\n", colorBold, colorReset)
	fmt.Printf("  File:       %s\n", source)
	fmt.Printf("  Root:       %s\n", cfg.ProjectRoot)
	fmt.Printf("  Vocab:      %s\n", orUnset(cfg.Vocab))
	fmt.Printf("  Phrases:    %s\n", orUnset(cfg.Phrases))
	fmt.Printf("  Bias:       %g\n", cfg.Bias)
	fmt.Printf("  Graph:      %s\n", cfg.Graph)
	fmt.Printf("  DB:         %s\n", cfg.DB)
	fmt.Printf("  Socket:     %s\n", cfg.Socket)
	fmt.Printf("  Watch:      %t (debounce %s)\n", cfg.Watch, time.Duration(cfg.Debounce))
	fmt.Printf("  Log level:  %s\n", cfg.LogLevel)
	if cfg.HTTP {
		port := cfg.HTTPPort
		if port == 0 {
			port = web.DefaultPort(cfg.ProjectRoot)
		}
		fmt.Printf("  HTTP:       http://localhost:%d\n", port)
	} else {
		fmt.Printf("  HTTP:       %s(disabled)%s\n", colorGray, colorReset)
	}
	fmt.Printf("  Daemon:     %s\n", daemonStatus)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := configPath
	if path == "" {
		path = app.NewPaths(cfg.ProjectRoot).Config
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("⚡ wrote %s\n", path)
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return fmt.Sprintf("%s(unset)%s", colorGray, colorReset)
	}
	return s
}
