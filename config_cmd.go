package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/lector/internal/extract"
	"github.com/dgnsrekt/lector/tts"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configExtensions = []string{".yaml", ".yml"}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Edit the lector config file",
	Long:    paragraph(fmt.Sprintf("\n%s the lector config file with $EDITOR. A missing file is first written out with every setting at its default.", keyword("Edit"))),
	Example: paragraph("lector config\nlector config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Lector", configFile)
		if err != nil {
			return fmt.Errorf("unable to open editor: %w", err)
		}
		c.Stdin = cmd.InOrStdin()
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()
		if err := c.Run(); err != nil {
			return fmt.Errorf("editor exited with an error: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Config file:", configFile)
		return nil
	},
}

// registerDefaults sets every known setting's default on v.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("width", 0)
	v.SetDefault("mouse", false)
	tts.RegisterDefaults(v)
	extract.RegisterDefaults(v)
}

// ensureConfigFile writes the defaults to configFile unless a file is
// already there.
func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.ConfigFileUsed()
	}
	if configFile == "" {
		return errors.New("no config file location; pass --config")
	}
	if ext := filepath.Ext(configFile); !slices.Contains(configExtensions, ext) {
		return fmt.Errorf("%q is not a supported config file: use a .yaml or .yml extension", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	defaults := viper.New()
	registerDefaults(defaults)

	err := defaults.SafeWriteConfigAs(configFile)
	var exists viper.ConfigFileAlreadyExistsError
	switch {
	case errors.As(err, &exists):
		return nil
	case err != nil:
		return fmt.Errorf("unable to write config file: %w", err)
	}
	return nil
}
