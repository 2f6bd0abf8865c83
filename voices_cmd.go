package main

import (
	"fmt"
	"io"

	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var voicesCmd = &cobra.Command{
	Use:   "voices [QUERY]",
	Short: "List the voices of the speech engine",
	Long: paragraph(fmt.Sprintf("\n%s the voices the configured engine offers. With a query, print the voice %s would pick for it.",
		keyword("List"), keyword("--voice"))),
	Example: paragraph("lector voices\nlector voices --engine espeak english"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := tts.LoadConfigFromViper()
		if err != nil {
			return err
		}
		engine, err := engines.New(cfg)
		if err != nil {
			return fmt.Errorf("unable to create speech engine: %w", err)
		}
		defer engine.Close() //nolint:errcheck

		if !engine.Available() {
			return fmt.Errorf("%w: %s", tts.ErrUnsupportedEngine, engine.Name())
		}

		if len(args) == 1 {
			v, err := engines.MatchVoice(engine, args[0])
			if err != nil {
				return err
			}
			return printVoices(cmd.OutOrStdout(), []tts.Voice{v}, "")
		}
		return printVoices(cmd.OutOrStdout(), engine.Voices(), cfg.Voice)
	},
}

// printVoices writes one aligned line per voice, marking current.
func printVoices(w io.Writer, voices []tts.Voice, current string) error {
	if len(voices) == 0 {
		_, err := fmt.Fprintln(w, subtle("No voices reported."))
		return err
	}

	idWidth := 0
	for _, v := range voices {
		idWidth = max(idWidth, runewidth.StringWidth(v.ID))
	}

	for _, v := range voices {
		mark := "  "
		if v.ID == current {
			mark = keyword("• ")
		}
		details := v.Language
		if v.Gender != "" {
			details += ", " + v.Gender
		}
		if _, err := fmt.Fprintf(w, "%s%s  %s %s\n",
			mark, runewidth.FillRight(v.ID, idWidth), v.Name, subtle(details)); err != nil {
			return err
		}
	}
	return nil
}
