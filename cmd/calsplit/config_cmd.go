package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"calsplit/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the calsplit config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a config file with default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, args[0], force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "replace an existing config file")

	cmd.AddCommand(initCmd)
	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s: %w (use --force to replace)", path, fs.ErrExist)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := config.Save(path, config.DefaultConfig()); err != nil {
		return fmt.Errorf("config: save %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config written: %s\n", path)
	return nil
}
