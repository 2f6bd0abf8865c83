package ui

import (
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/extract"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines/mock"
	"github.com/dgnsrekt/lector/tts/sentence"
)

func newTestModel(t *testing.T, content string) (model, *mock.Engine) {
	t.Helper()
	engine := mock.NewScripted()
	sink := NewSink()
	ctrl := tts.NewController(engine, sentence.NewParser(),
		tts.WithHighlightSink(sink),
		tts.WithReporter(sink),
		tts.WithLogger(log.New(io.Discard)),
	)
	ctrl.OnStateChange(sink.StateChanged)
	t.Cleanup(func() { _ = ctrl.Close() })

	return newModel(Config{Content: content, HighlightColor: "none"}, ctrl, sink, nil), engine
}

func press(t *testing.T, m model, msg tea.KeyMsg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// deliver feeds sink notifications to the model until cond holds.
func deliver(t *testing.T, m model, cond func(model) bool) model {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond(m) {
		ch := make(chan tea.Msg, 1)
		go func() { ch <- m.sink.wait()() }()
		select {
		case msg := <-ch:
			next, _ := m.Update(msg)
			m = next.(model)
		case <-deadline:
			t.Fatal("condition not met in time")
		}
	}
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayHighlightsSentence(t *testing.T) {
	m, engine := newTestModel(t, "One. Two.\n\nThree.")

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if cmd == nil {
		t.Fatal("space should start playback")
	}
	if done, ok := cmd().(controlDoneMsg); !ok || done.err != nil {
		t.Fatalf("play = %+v", done)
	}
	if engine.CallCount() != 1 {
		t.Fatalf("CallCount() = %d, want 1", engine.CallCount())
	}

	engine.Current().Start()
	m = deliver(t, m, func(m model) bool { return m.active == 0 })

	// Space again pauses.
	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if done := cmd().(controlDoneMsg); done.action != "pause" || done.err != nil {
		t.Errorf("second space = %+v, want pause", done)
	}
	if got := m.ctrl.State().Current; got != tts.StatePaused {
		t.Errorf("state = %v, want paused", got)
	}

	engine.Current().End()
	waitFor(t, func() bool { return m.ctrl.Cursor() == 1 })

	_, cmd = press(t, m, runes("s"))
	cmd()
	m = deliver(t, m, func(m model) bool { return m.active == tts.NoSentence })
	if m.ctrl.State().Current != tts.StateIdle {
		t.Errorf("state after stop = %v", m.ctrl.State().Current)
	}
}

func TestVoiceParameterKeys(t *testing.T) {
	m, _ := newTestModel(t, "One. Two.")

	tests := []struct {
		key  string
		get  func(tts.VoiceParams) float64
		want float64
	}{
		{"+", func(p tts.VoiceParams) float64 { return p.Rate }, 1.1},
		{"-", func(p tts.VoiceParams) float64 { return p.Rate }, 1.0},
		{"[", func(p tts.VoiceParams) float64 { return p.Pitch }, 0.9},
		{"<", func(p tts.VoiceParams) float64 { return p.Volume }, 0.9},
		{">", func(p tts.VoiceParams) float64 { return p.Volume }, 1.0},
		{">", func(p tts.VoiceParams) float64 { return p.Volume }, 1.0},
	}

	for _, tt := range tests {
		var cmd tea.Cmd
		m, cmd = press(t, m, runes(tt.key))
		if done := cmd().(controlDoneMsg); done.err != nil {
			t.Fatalf("key %q: %v", tt.key, done.err)
		}
		if got := tt.get(m.ctrl.VoiceParams()); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("after %q got %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestQueuedParameterKeysAccumulate(t *testing.T) {
	m, _ := newTestModel(t, "One. Two.")

	// Both presses are handled before either command runs.
	m, first := press(t, m, runes("+"))
	m, second := press(t, m, runes("+"))

	var wg sync.WaitGroup
	for _, cmd := range []tea.Cmd{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if done := cmd().(controlDoneMsg); done.err != nil {
				t.Errorf("change rate: %v", done.err)
			}
		}()
	}
	wg.Wait()

	if got := m.ctrl.VoiceParams().Rate; math.Abs(got-1.2) > 1e-9 {
		t.Errorf("rate = %v, want 1.2", got)
	}
}

func TestParameterKeysClamp(t *testing.T) {
	m, _ := newTestModel(t, "One.")

	// volume starts at its maximum
	m, cmd := press(t, m, runes(">"))
	if done := cmd().(controlDoneMsg); done.err != nil {
		t.Fatalf("change volume: %v", done.err)
	}
	if got := m.ctrl.VoiceParams().Volume; got != tts.MaxVolume {
		t.Errorf("volume = %v, want %v", got, tts.MaxVolume)
	}
}

func TestVoiceCycling(t *testing.T) {
	m, _ := newTestModel(t, "One.")
	next, _ := m.Update(loadVoices(m.ctrl.Engine())())
	m = next.(model)

	m, cmd := press(t, m, runes("v"))
	if cmd == nil {
		t.Fatal("voice key returned no command")
	}
	// The first command applies the voice; the second clears the status.
	batch := cmd().(tea.BatchMsg)
	if done := batch[0]().(controlDoneMsg); done.err != nil {
		t.Fatalf("change voice: %v", done.err)
	}
	if got := m.ctrl.VoiceParams().Voice; got != "mock-voice-1" {
		t.Errorf("voice = %q, want mock-voice-1", got)
	}
	if !strings.HasPrefix(m.statusMessage, "Voice: Mock Voice 1") {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, "One.")
	_, cmd := press(t, m, runes("q"))
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestView(t *testing.T) {
	m, _ := newTestModel(t, "One. Two.\n\nThree.")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 10})
	m = next.(model)

	view := m.View()
	for _, want := range []string{"One. Two.", "Three.", "idle", "stdin.txt", "? Help"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, _ = press(t, m, runes("?"))
	if !strings.Contains(m.View(), "play/pause") {
		t.Error("help should list the play key")
	}
}

func TestFatalError(t *testing.T) {
	m, _ := newTestModel(t, "")
	next, _ := m.Update(errMsg{errors.New("file not found")})
	m = next.(model)

	if view := m.View(); !strings.Contains(view, "ERROR") || !strings.Contains(view, "file not found") {
		t.Errorf("view = %q", view)
	}
	if _, cmd := press(t, m, runes("x")); cmd == nil {
		t.Error("any key should exit after a fatal error")
	} else if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("any key should exit after a fatal error")
	}
}

func TestEmptyDocument(t *testing.T) {
	m, _ := newTestModel(t, "")

	next, _ := m.Update(documentLoadedMsg{newDocument("empty.txt", &extract.Result{OK: true})})
	m = next.(model)
	if !strings.Contains(m.statusMessage, "Nothing to read") {
		t.Errorf("status = %q", m.statusMessage)
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	done := cmd().(controlDoneMsg)
	if !errors.Is(done.err, tts.ErrEmptyDocument) {
		t.Fatalf("play error = %v, want ErrEmptyDocument", done.err)
	}

	m.statusMessage = ""
	next, _ = m.Update(done)
	m = next.(model)
	if m.statusMessage != "" {
		t.Errorf("reported error shown twice: %q", m.statusMessage)
	}

	m = deliver(t, m, func(m model) bool { return m.statusMessage != "" })
	if !strings.HasPrefix(m.statusMessage, "Nothing to read") {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestNextPastEnd(t *testing.T) {
	m, _ := newTestModel(t, "Only one.")
	m, cmd := press(t, m, runes("n"))
	next, _ := m.Update(cmd())
	m = next.(model)
	if m.statusMessage != "No more sentences in that direction" {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestStatusMessageTimeout(t *testing.T) {
	m, _ := newTestModel(t, "One.")
	m.showStatusMessage(tts.LevelInfo, "first")
	stale := m.statusID
	m.showStatusMessage(tts.LevelInfo, "second")

	next, _ := m.Update(statusMessageTimeoutMsg{stale})
	if m = next.(model); m.statusMessage != "second" {
		t.Errorf("stale timeout cleared %q", m.statusMessage)
	}
	next, _ = m.Update(statusMessageTimeoutMsg{m.statusID})
	if m = next.(model); m.statusMessage != "" {
		t.Errorf("timeout did not clear %q", m.statusMessage)
	}
}

func TestEditable(t *testing.T) {
	for path, want := range map[string]bool{
		"notes.md": true, "a.TXT": true, "book.epub": false, "doc.docx": false,
	} {
		if got := editable(path); got != want {
			t.Errorf("editable(%q) = %v", path, got)
		}
	}
}
