package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		manPage, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return fmt.Errorf("unable to generate man page: %w", err)
		}

		manPage = manPage.WithSection("Environment", manEnvironment)
		fmt.Println(manPage.Build(roff.NewDocument()))
		return nil
	},
}

const manEnvironment = `LECTOR_CONFIG_HOME overrides the configuration directory.
LECTOR_DEBUG writes debug logs to the cache directory.
LECTOR_HIGHLIGHT_COLOR sets the highlight color of the spoken sentence.
LECTOR_WATCH reloads the document when it changes on disk.`
