// Package command drives system speech synthesizers (espeak-ng, espeak and
// macOS say) as one subprocess per utterance.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/tts"
)

// Flavor selects the argument dialect of the synthesizer.
type Flavor string

// Supported flavors.
const (
	Espeak Flavor = "espeak"
	Say    Flavor = "say"
)

// baseWordsPerMinute is the speaking rate both synthesizers use at rate 1.
const baseWordsPerMinute = 175

// espeak accepts 80 to 450 words per minute.
const (
	espeakMinSpeed = 80
	espeakMaxSpeed = 450
)

// defaultBinaries lists the executables tried for each flavor, in order.
var defaultBinaries = map[Flavor][]string{
	Espeak: {"espeak-ng", "espeak"},
	Say:    {"say"},
}

type process struct {
	cmd       *exec.Cmd
	release   context.CancelFunc
	events    chan tts.Event
	paused    bool
	cancelled bool

	// stall guard; only running time counts against it
	guard    *time.Timer
	left     time.Duration
	resumed  time.Time
	timedOut bool
}

// arm starts the stall guard with whatever running time is left.
func (e *Engine) arm(p *process) {
	p.resumed = time.Now()
	p.guard = time.AfterFunc(p.left, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if p.paused || p.cancelled {
			return
		}
		p.timedOut = true
		p.release()
	})
}

// disarm stops the stall guard and keeps the unused running time.
func (p *process) disarm() {
	if p.guard == nil {
		return
	}
	p.guard.Stop()
	p.guard = nil
	p.left -= time.Since(p.resumed)
}

// Engine speaks through an external synthesizer. Only one process is alive
// at a time.
type Engine struct {
	mu      sync.Mutex
	flavor  Flavor
	binary  string
	timeout time.Duration
	closed  bool
	current *process

	voicesOnce sync.Once
	voices     []tts.Voice
}

// New creates an engine for the given flavor. When cfg.Binary is empty the
// first default binary found on PATH is used.
func New(flavor Flavor, cfg tts.CommandConfig) (*Engine, error) {
	if _, ok := defaultBinaries[flavor]; !ok {
		return nil, fmt.Errorf("%w: unknown command flavor %q", tts.ErrInvalidConfig, flavor)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = tts.DefaultCommandConfig().Timeout
	}

	return &Engine{
		flavor:  flavor,
		binary:  resolveBinary(flavor, cfg.Binary),
		timeout: timeout,
	}, nil
}

func resolveBinary(flavor Flavor, configured string) string {
	if configured != "" {
		return configured
	}
	candidates := defaultBinaries[flavor]
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return candidates[0]
}

// Name returns the flavor name.
func (e *Engine) Name() string {
	return string(e.flavor)
}

// Binary returns the executable the engine runs.
func (e *Engine) Binary() string {
	return e.binary
}

// Available reports whether the synthesizer binary can be found.
func (e *Engine) Available() bool {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return false
	}
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// Voices lists the voices the synthesizer reports. The list is read once.
func (e *Engine) Voices() []tts.Voice {
	e.voicesOnce.Do(func() {
		if !e.Available() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var args []string
		switch e.flavor {
		case Espeak:
			args = []string{"--voices"}
		case Say:
			args = []string{"-v", "?"}
		}

		out, err := exec.CommandContext(ctx, e.binary, args...).Output()
		if err != nil {
			log.Debug("failed to list voices", "engine", e.flavor, "error", err)
			return
		}

		switch e.flavor {
		case Espeak:
			e.voices = ParseEspeakVoices(string(out))
		case Say:
			e.voices = ParseSayVoices(string(out))
		}
	})
	return e.voices
}

// Speak starts a synthesizer process for text. Started is emitted once the
// process is running; Ended or Failed follows when it exits. A process that
// keeps running for longer than the configured timeout is killed; time spent
// paused does not count.
func (e *Engine) Speak(ctx context.Context, text string, params tts.VoiceParams) (<-chan tts.Event, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, tts.ErrEngineClosed
	}
	if e.current != nil {
		return nil, tts.ErrSpeakInProgress
	}

	ctx, release := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, e.binary, Args(e.flavor, params)...)

	// stdin is wired before Start so the process never sees a partial write.
	cmd.Stdin = strings.NewReader(Input(e.flavor, text, params))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		release()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", tts.ErrUnsupportedEngine, err)
		}
		return nil, fmt.Errorf("failed to start %s: %w", e.flavor, err)
	}

	p := &process{
		cmd:     cmd,
		release: release,
		events:  make(chan tts.Event, 2),
		left:    e.timeout,
	}
	e.arm(p)
	e.current = p
	p.events <- tts.Started()

	log.Debug("synthesizer started", "engine", e.flavor, "pid", cmd.Process.Pid, "chars", len(text))

	go e.wait(p, &stderr)

	return p.events, nil
}

func (e *Engine) wait(p *process, stderr *bytes.Buffer) {
	err := p.cmd.Wait()
	p.release()

	e.mu.Lock()
	if e.current == p {
		e.current = nil
	}
	p.disarm()
	cancelled, timedOut := p.cancelled, p.timedOut
	e.mu.Unlock()

	switch {
	case cancelled:
	case timedOut:
		p.events <- tts.Failed(fmt.Errorf("%s timed out after %v", e.flavor, e.timeout))
	case err != nil:
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%s failed: %w\nstderr: %s", e.flavor, err, msg)
		} else {
			err = fmt.Errorf("%s failed: %w", e.flavor, err)
		}
		p.events <- tts.Failed(err)
	default:
		p.events <- tts.Ended()
	}
	close(p.events)
}

// Pause suspends the running process.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if e.current.paused {
		return nil
	}
	if err := suspend(e.current.cmd.Process); err != nil {
		return err
	}
	e.current.disarm()
	e.current.paused = true
	return nil
}

// Resume continues a suspended process.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return tts.ErrNotSpeaking
	}
	if !e.current.paused {
		return nil
	}
	if err := resume(e.current.cmd.Process); err != nil {
		return err
	}
	e.current.paused = false
	e.arm(e.current)
	return nil
}

// Cancel kills the running process. No terminal event is emitted for it.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	return nil
}

func (e *Engine) cancelLocked() {
	p := e.current
	if p == nil {
		return
	}
	p.cancelled = true
	p.disarm()
	p.release()
	e.current = nil
}

// IsSpeaking reports whether a process is running.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// IsPaused reports whether the running process is suspended.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.current.paused
}

// Close kills any running process and refuses further utterances.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.closed = true
	return nil
}

// Args builds the synthesizer arguments for params.
func Args(flavor Flavor, params tts.VoiceParams) []string {
	var args []string
	switch flavor {
	case Espeak:
		speed := clamp(int(math.Round(baseWordsPerMinute*params.Rate)), espeakMinSpeed, espeakMaxSpeed)
		pitch := clamp(int(math.Round(params.Pitch*50)), 0, 99)
		amplitude := clamp(int(math.Round(params.Volume*100)), 0, 200)

		args = append(args,
			"-s", strconv.Itoa(speed),
			"-p", strconv.Itoa(pitch),
			"-a", strconv.Itoa(amplitude),
		)
		if params.Voice != "" {
			args = append(args, "-v", params.Voice)
		}
		args = append(args, "--stdin")
	case Say:
		if params.Voice != "" {
			args = append(args, "-v", params.Voice)
		}
		rate := max(1, int(math.Round(baseWordsPerMinute*params.Rate)))
		args = append(args, "-r", strconv.Itoa(rate), "-f", "-")
	}
	return args
}

// Input returns the text written to the synthesizer's stdin. say has no
// volume flag, so volume is set with an embedded command.
func Input(flavor Flavor, text string, params tts.VoiceParams) string {
	if flavor == Say && params.Volume < 1 {
		return fmt.Sprintf("[[volm %.2f]] %s", params.Volume, text)
	}
	return text
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// ParseEspeakVoices parses the table printed by espeak --voices.
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
func ParseEspeakVoices(out string) []tts.Voice {
	var voices []tts.Voice
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 4 {
			continue
		}

		gender := ""
		if _, g, ok := strings.Cut(fields[2], "/"); ok {
			switch g {
			case "M":
				gender = "male"
			case "F":
				gender = "female"
			}
		}

		voices = append(voices, tts.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
			Gender:   gender,
		})
	}
	return voices
}

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// ParseSayVoices parses the listing printed by say -v '?'.
//
//	Alex                en_US    # Most people recognize me by my voice.
func ParseSayVoices(out string) []tts.Voice {
	var voices []tts.Voice
	for _, line := range strings.Split(out, "\n") {
		m := sayVoiceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, tts.Voice{
			ID:       name,
			Name:     name,
			Language: strings.ReplaceAll(m[2], "_", "-"),
		})
	}
	return voices
}
