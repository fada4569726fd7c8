package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored graphs",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var dropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Delete a stored graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runDrop,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metas, err := store.ListGraphs()
	if err != nil {
		return err
	}
	fmt.Print(formatGraphList(metas))
	return nil
}

func runDrop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteGraph(args[0]); err != nil {
		return err
	}
	fmt.Printf("⚡ graph %s dropped\n", args[0])
	return nil
}
