// Package piper speaks through the Piper neural synthesizer. Each utterance
// runs one piper process that writes raw PCM, which is then played through
// an audio.Output.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/audio"
	gap "github.com/muesli/go-app-paths"
)

const (
	modelExt     = ".onnx"
	pollInterval = 10 * time.Millisecond
)

type utterance struct {
	release   context.CancelFunc
	events    chan tts.Event
	player    audio.Player
	paused    bool
	cancelled bool
}

// Engine is a Piper speech engine.
type Engine struct {
	mu      sync.Mutex
	cfg     tts.PiperConfig
	out     audio.Output
	closed  bool
	current *utterance
}

// New creates a Piper engine that plays through out.
func New(cfg tts.PiperConfig, out audio.Output) *Engine {
	return &Engine{cfg: cfg, out: out}
}

// Name returns "piper".
func (e *Engine) Name() string {
	return "piper"
}

// Available reports whether piper is installed and an audio output is
// attached.
func (e *Engine) Available() bool {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	return !closed && e.out != nil && e.Installed()
}

// Installed reports whether the piper binary and the configured voice model
// can be found.
func (e *Engine) Installed() bool {
	if _, err := exec.LookPath(e.cfg.Binary); err != nil {
		return false
	}
	_, err := e.modelPath("")
	return err == nil
}

// Voices lists the models found in the model directories.
func (e *Engine) Voices() []tts.Voice {
	seen := map[string]bool{}
	var voices []tts.Voice

	for _, dir := range e.modelDirs() {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+modelExt))
		if err != nil {
			continue
		}
		for _, path := range matches {
			name := strings.TrimSuffix(filepath.Base(path), modelExt)
			if seen[name] {
				continue
			}
			seen[name] = true
			voices = append(voices, voiceFor(name))
		}
	}

	sort.Slice(voices, func(i, j int) bool { return voices[i].ID < voices[j].ID })
	return voices
}

// voiceFor derives a voice from a model name such as en_US-lessac-medium.
func voiceFor(model string) tts.Voice {
	v := tts.Voice{ID: model, Name: model}
	parts := strings.SplitN(model, "-", 3)
	if len(parts) >= 2 {
		v.Language = strings.ReplaceAll(parts[0], "_", "-")
		v.Name = parts[1]
		if len(parts) == 3 {
			v.Name += " (" + parts[2] + ")"
		}
	}
	return v
}

func (e *Engine) modelDirs() []string {
	var dirs []string
	if e.cfg.DataDir != "" {
		dirs = append(dirs, e.cfg.DataDir)
	}
	scope := gap.NewScope(gap.User, "lector")
	if data, err := scope.DataDirs(); err == nil {
		for _, d := range data {
			dirs = append(dirs, filepath.Join(d, "voices"))
		}
	}
	return dirs
}

// modelPath resolves a voice to a model file. An empty voice selects the
// configured model.
func (e *Engine) modelPath(voice string) (string, error) {
	if voice == "" {
		if e.cfg.ModelPath != "" {
			return existing(e.cfg.ModelPath)
		}
		voice = e.cfg.Model
	}

	if strings.HasSuffix(voice, modelExt) || strings.ContainsRune(voice, os.PathSeparator) {
		return existing(voice)
	}

	for _, dir := range e.modelDirs() {
		if path, err := existing(filepath.Join(dir, voice+modelExt)); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, voice)
}

func existing(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %w", tts.ErrVoiceNotFound, err)
	}
	return path, nil
}

// Args builds the piper command line for a model and parameters. Piper has
// no pitch control; rate maps to the inverse length scale.
func Args(cfg tts.PiperConfig, model string, params tts.VoiceParams) []string {
	args := []string{
		"--model", model,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/params.Rate, 'f', 3, 64),
		"--noise_scale", strconv.FormatFloat(cfg.NoiseScale, 'f', 3, 64),
		"--noise_w", strconv.FormatFloat(cfg.NoiseW, 'f', 3, 64),
		"--sentence_silence", strconv.FormatFloat(cfg.SentenceSilence.Seconds(), 'f', 3, 64),
	}
	if cfg.SpeakerID > 0 {
		args = append(args, "--speaker", strconv.Itoa(cfg.SpeakerID))
	}
	return args
}

// Speak synthesizes text and plays it. Started is emitted when audio
// begins; Ended follows when the player drains.
func (e *Engine) Speak(ctx context.Context, text string, params tts.VoiceParams) (<-chan tts.Event, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, tts.ErrEngineClosed
	}
	if e.out == nil {
		return nil, tts.ErrUnsupportedEngine
	}
	if e.current != nil {
		return nil, tts.ErrSpeakInProgress
	}

	model, err := e.modelPath(params.Voice)
	if err != nil {
		return nil, err
	}

	ctx, release := context.WithCancel(ctx)
	u := &utterance{
		release: release,
		events:  make(chan tts.Event, 2),
	}
	e.current = u

	go e.run(ctx, u, text, model, params)

	return u.events, nil
}

func (e *Engine) run(ctx context.Context, u *utterance, text, model string, params tts.VoiceParams) {
	defer close(u.events)
	defer e.finish(u)

	pcm, err := e.synthesize(ctx, text, model, params)
	if err != nil {
		if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			u.events <- tts.Failed(err)
		}
		return
	}

	e.mu.Lock()
	if u.cancelled {
		e.mu.Unlock()
		return
	}
	player, err := e.out.NewPlayer(bytes.NewReader(pcm))
	if err != nil {
		e.mu.Unlock()
		u.events <- tts.Failed(fmt.Errorf("failed to open audio player: %w", err))
		return
	}
	player.SetVolume(params.Volume)
	u.player = player
	if !u.paused {
		player.Play()
	}
	e.mu.Unlock()

	log.Debug("piper playback started",
		"bytes", len(pcm),
		"duration", audio.Duration(len(pcm), e.out.SampleRate()))

	u.events <- tts.Started()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			done := !u.paused && !player.IsPlaying()
			e.mu.Unlock()
			if done {
				u.events <- tts.Ended()
				return
			}
		}
	}
}

func (e *Engine) finish(u *utterance) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u.release()
	if u.player != nil {
		if err := u.player.Close(); err != nil {
			log.Debug("failed to close audio player", "error", err)
		}
	}
	if e.current == u {
		e.current = nil
	}
}

func (e *Engine) synthesize(ctx context.Context, text, model string, params tts.VoiceParams) ([]byte, error) {
	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = tts.DefaultPiperConfig().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cfg.Binary, Args(e.cfg, model, params)...)
	cmd.Stdin = strings.NewReader(text + "\n")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("piper timed out after %v", timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("piper failed: %w\nstderr: %s", err, msg)
		}
		return nil, fmt.Errorf("piper failed: %w", err)
	}

	if stdout.Len() == 0 {
		return nil, errors.New("piper produced no audio")
	}
	return stdout.Bytes(), nil
}

// Pause pauses playback. Pausing during synthesis holds the audio until
// Resume.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	e.current.paused = true
	if e.current.player != nil {
		e.current.player.Pause()
	}
	return nil
}

// Resume continues paused playback.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	e.current.paused = false
	if e.current.player != nil {
		e.current.player.Play()
	}
	return nil
}

// Cancel stops the current utterance without a terminal event.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	return nil
}

func (e *Engine) cancelLocked() {
	u := e.current
	if u == nil {
		return
	}
	u.cancelled = true
	if u.player != nil {
		u.player.Pause()
	}
	u.release()
	e.current = nil
}

// IsSpeaking reports whether an utterance is in flight.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// IsPaused reports whether the current utterance is paused.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.current.paused
}

// Close cancels playback and refuses further utterances.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.closed = true
	return nil
}
