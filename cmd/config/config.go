package config

import (
	"fmt"
	"io"
	"os"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/sidkik/dirsync/cmd/util"
	"github.com/sidkik/dirsync/pkg/config"
	"github.com/sidkik/dirsync/pkg/errors"
)

// Mocked for unit testing.
var (
	stdout       io.Writer = os.Stdout
	writeDefault           = config.WriteDefault
)

// New creates a new `config` command.
func New(global *util.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the dirsync configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if err := initConfig(global, force); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			if err := show(global); err != nil {
				util.HandleFatalError(err)
			}
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func initConfig(global *util.GlobalOptions, force bool) error {
	path, err := writeDefault(global.ConfigPath, force)
	if err != nil {
		return errors.WithContext(err, "write config")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}

func show(global *util.GlobalOptions) error {
	cfg, err := global.Config()
	if err != nil {
		return err
	}

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	_, err = stdout.Write(yamlBytes)
	return err
}
