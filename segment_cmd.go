package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgnsrekt/lector/internal/extract"
	"github.com/dgnsrekt/lector/tts/sentence"
	"github.com/dgnsrekt/lector/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var segmentCmd = &cobra.Command{
	Use:   "segment [FILE]",
	Short: "Print the sentences lector would read",
	Long: paragraph(fmt.Sprintf("\n%s a document into numbered sentences, grouped by paragraph, exactly as they are spoken.",
		keyword("Split"))),
	Example: paragraph("lector segment book.epub\ncat notes.txt | lector segment"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readDocument(cmd.Context(), args)
		if err != nil {
			return err
		}

		excerpt := 0
		if term.IsTerminal(int(os.Stdout.Fd())) {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				excerpt = w - 8
			}
		}
		return printSegments(cmd.OutOrStdout(), sentence.Segment(text), excerpt)
	},
}

// readDocument extracts the document named by args, or reads stdin.
func readDocument(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from stdin: %w", err)
		}
		return extract.Normalize(string(b)), nil
	}

	path := utils.ExpandPath(args[0])
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	return extract.New().Extract(ctx, filepath.Base(path), f)
}

// printSegments writes one numbered line per sentence. Sentences longer
// than excerpt runes are shortened; 0 prints them in full.
func printSegments(w io.Writer, table sentence.Table, excerpt int) error {
	var b strings.Builder
	for p := 0; p < table.Paragraphs; p++ {
		if p > 0 {
			b.WriteString("\n")
		}
		for _, c := range table.Paragraph(p) {
			text := strings.TrimSpace(c.Text)
			if excerpt > 0 {
				text = utils.Excerpt(text, excerpt)
			}
			fmt.Fprintf(&b, "%s %s\n", keyword(fmt.Sprintf("%4d", c.Index+1)), text)
		}
	}
	fmt.Fprintf(&b, "\n%s\n", subtle(fmt.Sprintf("%d sentences in %d paragraphs", table.Len(), table.Paragraphs)))

	_, err := io.WriteString(w, b.String())
	return err
}
