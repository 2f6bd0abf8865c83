// Package ui provides the terminal reader: the document with the spoken
// sentence highlighted, a status bar and the playback keys.
package ui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/extract"
	"github.com/dgnsrekt/lector/tts"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/termenv"
)

// Step sizes for the voice parameter keys.
const (
	rateStep   = 0.1
	pitchStep  = 0.1
	volumeStep = 0.1
)

type (
	statusMessageTimeoutMsg struct{ id int }
	voicesLoadedMsg         []tts.Voice
	controlDoneMsg          struct {
		action string
		err    error
	}
)

type model struct {
	cfg  Config
	ctrl *tts.Controller
	sink *Sink
	load Loader
	keys keyMap

	help      help.Model
	viewport  viewport.Model
	spinner   spinner.Model
	highlight lipgloss.Style

	doc     *document
	loading bool
	active  int

	voices []tts.Voice
	voice  int

	statusMessage string
	statusLevel   tts.Level
	statusID      int

	watcher  *fsnotify.Watcher
	watching bool

	width    int
	height   int
	fatalErr error
}

// NewProgram returns a new Tea program reading through ctrl. The
// controller must have been created with sink as its highlight sink and
// reporter, and with sink.StateChanged registered as a state observer.
func NewProgram(cfg Config, ctrl *tts.Controller, sink *Sink, load Loader) *tea.Program {
	log.Debug("Starting lector", "path", cfg.Path, "engine", ctrl.Engine().Name())

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, ctrl, sink, load), opts...)
}

func newModel(cfg Config, ctrl *tts.Controller, sink *Sink, load Loader) model {
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 3 * time.Second
	}

	vp := viewport.New(0, 0)
	// Space is reserved for play/pause.
	vp.KeyMap.PageDown = key.NewBinding(key.WithKeys("pgdown", "f"))

	m := model{
		cfg:       cfg,
		ctrl:      ctrl,
		sink:      sink,
		load:      load,
		keys:      newKeyMap(),
		help:      help.New(),
		viewport:  vp,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		highlight: highlightStyle(cfg.HighlightColor),
		active:    tts.NoSentence,
		voice:     -1,
	}

	switch {
	case cfg.Path != "":
		m.loading = true
		if cfg.Watch {
			m.watcher = newWatcher()
		}
	case cfg.Content != "":
		m.doc = newDocument("", &extract.Result{OK: true, Text: extract.Normalize(cfg.Content)})
		m.loadTable()
	}

	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.sink.wait(), loadVoices(m.ctrl.Engine())}
	if m.loading {
		cmds = append(cmds, m.spinner.Tick, loadDocument(m.load, m.cfg.Path))
	} else if m.doc != nil && m.cfg.AutoPlay {
		cmds = append(cmds, control("play", m.ctrl.Play))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.setSize()
		m.render(false)

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case documentLoadedMsg:
		m.loading = false
		m.doc = msg.doc
		m.loadTable()
		m.viewport.GotoTop()
		if m.doc.table.Len() == 0 {
			cmds = append(cmds, m.showStatusMessage(tts.LevelWarning, "Nothing to read in "+m.sourceName()))
		}
		if m.watcher != nil && !m.watching && m.doc.path != "" {
			m.watching = true
			cmds = append(cmds, watchFile(m.watcher, m.doc.path))
		}
		if m.cfg.AutoPlay && m.doc.table.Len() > 0 {
			cmds = append(cmds, control("play", m.ctrl.Play))
		}
		return m, tea.Batch(cmds...)

	case reloadMsg:
		m.watching = false
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, loadDocument(m.load, m.cfg.Path))

	case editorFinishedMsg:
		if msg.err != nil {
			return m, m.showStatusMessage(tts.LevelDanger, "Editor failed: "+msg.err.Error())
		}
		if m.watching {
			// The watcher reloads the document.
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, loadDocument(m.load, m.cfg.Path))

	case errMsg:
		m.loading = false
		if m.doc == nil {
			m.fatalErr = msg
			return m, nil
		}
		return m, m.showStatusMessage(tts.LevelDanger, msg.Error())

	case sinkMsg:
		for _, n := range msg {
			cmds = append(cmds, m.handleNotification(n))
		}
		cmds = append(cmds, m.sink.wait())
		return m, tea.Batch(cmds...)

	case voicesLoadedMsg:
		m.voices = msg
		current := m.ctrl.VoiceParams().Voice
		for i, v := range m.voices {
			if v.ID == current {
				m.voice = i
			}
		}
		return m, nil

	case controlDoneMsg:
		if errors.Is(msg.err, tts.ErrInvalidIndex) {
			return m, m.showStatusMessage(tts.LevelWarning, "No more sentences in that direction")
		}
		if msg.err != nil && !isReported(msg.err) {
			return m, m.showStatusMessage(tts.LevelDanger, fmt.Sprintf("Unable to %s: %v", msg.action, msg.err))
		}
		return m, nil

	case statusMessageTimeoutMsg:
		if msg.id == m.statusID {
			m.statusMessage = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		_ = m.ctrl.Stop()
		return tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.setSize()
		return nil, true

	case m.loading || m.doc == nil:
		return nil, false

	case key.Matches(msg, m.keys.Play):
		switch m.ctrl.State().Current {
		case tts.StateSpeaking:
			return control("pause", m.ctrl.Pause), true
		case tts.StatePaused:
			return control("resume", m.ctrl.Resume), true
		default:
			return control("play", m.ctrl.Play), true
		}

	case key.Matches(msg, m.keys.Stop):
		return control("stop", m.ctrl.Stop), true

	case key.Matches(msg, m.keys.Next):
		return control("skip", m.ctrl.Next), true

	case key.Matches(msg, m.keys.Previous):
		return control("go back", m.ctrl.Previous), true

	case key.Matches(msg, m.keys.Restart):
		return control("restart", m.ctrl.RestartCurrent), true

	case key.Matches(msg, m.keys.RateUp):
		return m.adjust("change rate", func(p *tts.VoiceParams) { p.Rate = clamp(p.Rate+rateStep, tts.MinRate, tts.MaxRate) }), true
	case key.Matches(msg, m.keys.RateDown):
		return m.adjust("change rate", func(p *tts.VoiceParams) { p.Rate = clamp(p.Rate-rateStep, tts.MinRate, tts.MaxRate) }), true
	case key.Matches(msg, m.keys.PitchUp):
		return m.adjust("change pitch", func(p *tts.VoiceParams) { p.Pitch = clamp(p.Pitch+pitchStep, tts.MinPitch, tts.MaxPitch) }), true
	case key.Matches(msg, m.keys.PitchDown):
		return m.adjust("change pitch", func(p *tts.VoiceParams) { p.Pitch = clamp(p.Pitch-pitchStep, tts.MinPitch, tts.MaxPitch) }), true
	case key.Matches(msg, m.keys.VolumeUp):
		return m.adjust("change volume", func(p *tts.VoiceParams) { p.Volume = clamp(p.Volume+volumeStep, tts.MinVolume, tts.MaxVolume) }), true
	case key.Matches(msg, m.keys.VolumeDown):
		return m.adjust("change volume", func(p *tts.VoiceParams) { p.Volume = clamp(p.Volume-volumeStep, tts.MinVolume, tts.MaxVolume) }), true

	case key.Matches(msg, m.keys.Voice):
		if len(m.voices) == 0 {
			return m.showStatusMessage(tts.LevelWarning, "No voices reported by "+m.ctrl.Engine().Name()), true
		}
		m.voice = (m.voice + 1) % len(m.voices)
		v := m.voices[m.voice]
		return tea.Batch(
			control("change voice", func() error { return m.ctrl.SetVoice(v.ID) }),
			m.showStatusMessage(tts.LevelInfo, "Voice: "+v.String()),
		), true

	case key.Matches(msg, m.keys.Copy):
		text := m.currentSentence()
		if text == "" {
			return nil, true
		}
		// Copy using OSC 52
		termenv.Copy(text)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(text)
		return m.showStatusMessage(tts.LevelSuccess, "Copied sentence"), true

	case key.Matches(msg, m.keys.Edit):
		if m.doc.path == "" || !editable(m.doc.path) {
			return m.showStatusMessage(tts.LevelWarning, "This document cannot be edited"), true
		}
		_ = m.ctrl.Stop()
		return openEditor(m.doc.path), true

	case key.Matches(msg, m.keys.Reload):
		if m.doc.path == "" {
			return nil, true
		}
		m.loading = true
		return tea.Batch(m.spinner.Tick, loadDocument(m.load, m.doc.path)), true
	}

	return nil, false
}

func (m *model) handleNotification(n tea.Msg) tea.Cmd {
	switch n := n.(type) {
	case highlightMsg:
		m.active = int(n)
		m.render(true)
	case statusMsg:
		return m.showStatusMessage(n.Level, n.Message)
	case stateMsg:
		log.Debug("Playback state changed", "state", tts.StateType(n))
	}
	return nil
}

// adjust steps a voice parameter. The step is applied to whatever the
// controller holds when the command runs, so repeated presses accumulate.
func (m *model) adjust(action string, step func(*tts.VoiceParams)) tea.Cmd {
	return control(action, func() error {
		return m.ctrl.UpdateVoiceParams(func(p tts.VoiceParams) tts.VoiceParams {
			step(&p)
			return p
		})
	})
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// loadTable hands the segmented document to the controller.
func (m *model) loadTable() {
	if err := m.ctrl.Load(m.doc.table.Sentences); err != nil {
		log.Error("Unable to load sentences", "error", err)
	}
	m.active = tts.NoSentence
	m.render(false)
}

func (m *model) setSize() {
	m.viewport.Width = m.width
	m.viewport.Height = m.height - statusBarHeight
	if m.help.ShowAll {
		m.viewport.Height -= lineCount(m.helpView())
	}
	m.viewport.Height = max(0, m.viewport.Height)
}

// render lays out the document and, when scroll is set, centers the
// active sentence.
func (m *model) render(scroll bool) {
	if m.doc == nil {
		return
	}
	width := m.viewport.Width
	if m.cfg.Width > 0 && (width == 0 || int(m.cfg.Width) < width) { //nolint:gosec
		width = int(m.cfg.Width) //nolint:gosec
	}

	content, line := renderDocument(m.doc.table, m.active, width, m.highlight)
	m.viewport.SetContent(content)

	if scroll && line >= 0 {
		m.viewport.SetYOffset(centerOffset(line, m.viewport.Height))
	}
}

func (m *model) showStatusMessage(level tts.Level, msg string) tea.Cmd {
	m.statusID++
	m.statusMessage = msg
	m.statusLevel = level

	id := m.statusID
	return tea.Tick(m.cfg.StatusTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{id}
	})
}

func (m model) currentSentence() string {
	sentences := m.doc.table.Sentences
	i := m.active
	if i < 0 {
		i = m.ctrl.Cursor()
	}
	if i < 0 || i >= len(sentences) {
		return ""
	}
	return sentences[i].Text
}

func (m model) sourceName() string {
	if m.cfg.Path == "" {
		return "document"
	}
	return filepath.Base(m.cfg.Path)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	m.statusBarView(&b)
	if m.help.ShowAll {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

// COMMANDS

func control(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{action: action, err: fn()}
	}
}

func loadVoices(engine tts.Engine) tea.Cmd {
	return func() tea.Msg {
		return voicesLoadedMsg(engine.Voices())
	}
}

// isReported reports whether the controller has already surfaced err
// through the sink.
func isReported(err error) bool {
	return errors.Is(err, tts.ErrEmptyDocument)
}

func editable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}
