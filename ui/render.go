package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/sentence"
	"github.com/dustin/go-humanize"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const (
	statusBarHeight = 1
	ellipsis        = "…"
)

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	darkRed   = lipgloss.AdaptiveColor{Light: "#5C1A2A", Dark: "#5C1A2A"}
	amber     = lipgloss.AdaptiveColor{Light: "#F5B44A", Dark: "#F5B44A"}
	darkAmber = lipgloss.AdaptiveColor{Light: "#5E4317", Dark: "#5E4317"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#7B51E5")).
			Bold(true)

	statusBarScrollPosStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg)

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"})

	// Status message styles by level.
	messageStyles = map[tts.Level]lipgloss.Style{
		tts.LevelInfo:    lipgloss.NewStyle().Foreground(statusBarNoteFg).Background(statusBarBg),
		tts.LevelSuccess: lipgloss.NewStyle().Foreground(mintGreen).Background(darkGreen),
		tts.LevelWarning: lipgloss.NewStyle().Foreground(amber).Background(darkAmber),
		tts.LevelDanger:  lipgloss.NewStyle().Foreground(red).Background(darkRed),
	}

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(lipgloss.Color("#FF5F87")).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"})
)

// highlightStyle returns the style of the active sentence. color is a
// named ANSI color, an ANSI code or a hex color; "none" underlines instead.
func highlightStyle(color string) lipgloss.Style {
	names := map[string]string{
		"black": "0", "red": "1", "green": "2", "yellow": "3",
		"blue": "4", "magenta": "5", "cyan": "6", "white": "7",
	}

	s := lipgloss.NewStyle().Bold(true)
	if color == "" || color == "none" {
		return s.Underline(true)
	}
	if code, ok := names[strings.ToLower(color)]; ok {
		color = code
	}
	return s.Background(lipgloss.Color(color)).Foreground(lipgloss.Color("0"))
}

// renderDocument lays out the sentence cells paragraph by paragraph,
// styling the active sentence. It returns the rendered text and the line on
// which the active sentence starts, or -1.
func renderDocument(table sentence.Table, active, width int, highlight lipgloss.Style) (string, int) {
	var (
		b          strings.Builder
		line       int
		activeLine = -1
	)

	for p := 0; p < table.Paragraphs; p++ {
		var para, prefix strings.Builder
		for _, c := range table.Paragraph(p) {
			if c.Index != active {
				para.WriteString(c.Text)
				prefix.WriteString(c.Text)
				continue
			}

			activeLine = line + max(0, lineCount(wrap(prefix.String(), width))-1)
			text := strings.TrimRight(c.Text, " ")
			para.WriteString(highlight.Render(text))
			para.WriteString(c.Text[len(text):])
		}

		wrapped := wrap(para.String(), width)
		if p > 0 {
			b.WriteString("\n\n")
			line++
		}
		b.WriteString(wrapped)
		line += lineCount(wrapped)
	}

	return b.String(), activeLine
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// centerOffset returns the viewport offset that centers line.
func centerOffset(line, height int) int {
	return max(0, line-height/2)
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoStyle.Render(" Lector ")

	// Reading position
	state := m.ctrl.State()
	position := " –/– "
	if state.Total > 0 {
		current := state.Cursor + 1
		if state.Current == tts.StateIdle {
			current = state.Cursor
		}
		position = fmt.Sprintf(" %d/%d ", current, state.Total)
	}
	position = statusBarScrollPosStyle.Render(position)

	helpNote := statusBarHelpStyle.Render(" ? Help ")

	noteStyle := statusBarNoteStyle
	var note string
	switch {
	case m.loading:
		note = m.spinner.View() + " Extracting " + m.sourceName() + "…"
	case m.statusMessage != "":
		note = m.statusMessage
		noteStyle = messageStyles[m.statusLevel]
	default:
		note = m.playbackNote(state)
	}

	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		noteStyle.Render(note),
		noteStyle.Render(strings.Repeat(" ", padding)),
		position,
		helpNote,
	)
}

// playbackNote summarizes the playback state and voice settings.
func (m model) playbackNote(state tts.State) string {
	var icon string
	switch {
	case state.Disabled:
		icon = "✕ speech unavailable"
	case state.Current == tts.StateSpeaking:
		icon = "▶ speaking"
	case state.Current == tts.StatePaused:
		icon = "⏸ paused"
	case state.Current == tts.StateStopping:
		icon = "■ stopping"
	default:
		icon = "■ idle"
	}

	p := state.Params
	parts := []string{
		icon,
		fmt.Sprintf("%.1fx", p.Rate),
		fmt.Sprintf("pitch %.1f", p.Pitch),
		fmt.Sprintf("vol %d%%", int(math.Round(p.Volume*100))),
	}
	if p.Voice != "" {
		parts = append(parts, m.voiceName(p.Voice))
	}
	if m.doc != nil && m.doc.meta != nil {
		meta := m.doc.meta
		parts = append(parts, fmt.Sprintf("%s (%s, %s chars)", meta.Filename, meta.Format, humanize.Comma(int64(meta.Length))))
	}
	return strings.Join(parts, " · ")
}

func (m model) helpView() string {
	s := indent(m.help.View(m.keys), 2)

	// Fill up empty cells with spaces for background coloring
	if m.width > 0 {
		lines := strings.Split(s, "\n")
		for i := range lines {
			n := max(m.width-ansi.PrintableRuneWidth(lines[i]), 0)
			lines[i] += strings.Repeat(" ", n)
		}
		s = strings.Join(lines, "\n")
	}

	return helpViewStyle.Render(s)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}

// maxVoiceWidth bounds the voice name shown in the status bar.
const maxVoiceWidth = 24

func (m model) voiceName(id string) string {
	name := id
	for _, v := range m.voices {
		if v.ID == id {
			name = v.Name
			break
		}
	}
	return runewidth.Truncate(name, maxVoiceWidth, ellipsis)
}
