package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/gridinsight/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  `Writes the default configuration to the config file path so it can be edited.`,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath()

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(path, config.Default()); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("✓ Wrote default config to %s\n", path)
	return nil
}
