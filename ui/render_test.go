package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/sentence"
)

func TestRenderDocument(t *testing.T) {
	table := sentence.Segment("One. Two.\n\nThree four five. Six.")
	plain := lipgloss.NewStyle()

	tests := []struct {
		name     string
		active   int
		width    int
		wantLine int
	}{
		{"no highlight", tts.NoSentence, 0, -1},
		{"first sentence", 0, 0, 0},
		{"second paragraph", 2, 0, 2},
		{"wrapped sentence", 3, 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, line := renderDocument(table, tt.active, tt.width, plain)
			if line != tt.wantLine {
				t.Errorf("line = %d, want %d\n%s", line, tt.wantLine, out)
			}
			if tt.width == 0 && out != "One. Two.\n\nThree four five. Six." {
				t.Errorf("out = %q", out)
			}
		})
	}
}

func TestRenderDocumentWraps(t *testing.T) {
	table := sentence.Segment("Three four five. Six.")
	out, _ := renderDocument(table, tts.NoSentence, 10, lipgloss.NewStyle())
	for _, l := range strings.Split(out, "\n") {
		if len(strings.TrimRight(l, " ")) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
}

func TestRenderEmptyDocument(t *testing.T) {
	out, line := renderDocument(sentence.Segment(""), 0, 80, lipgloss.NewStyle())
	if out != "" || line != -1 {
		t.Errorf("renderDocument(empty) = %q, %d", out, line)
	}
}

func TestHighlightStyle(t *testing.T) {
	if !highlightStyle("none").GetUnderline() {
		t.Error("none should underline")
	}
	if bg := highlightStyle("Yellow").GetBackground(); bg != lipgloss.Color("3") {
		t.Errorf("yellow background = %v", bg)
	}
	if bg := highlightStyle("#ff00ff").GetBackground(); bg != lipgloss.Color("#ff00ff") {
		t.Errorf("hex background = %v", bg)
	}
}

func TestCenterOffset(t *testing.T) {
	tests := []struct{ line, height, want int }{
		{0, 10, 0},
		{4, 10, 0},
		{20, 10, 15},
	}
	for _, tt := range tests {
		if got := centerOffset(tt.line, tt.height); got != tt.want {
			t.Errorf("centerOffset(%d, %d) = %d, want %d", tt.line, tt.height, got, tt.want)
		}
	}
}
