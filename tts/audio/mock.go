package audio

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// MockOutput simulates playback in real time without a device. Speed
// scales playback; 2 plays twice as fast.
type MockOutput struct {
	Rate  int
	Speed float64

	mu      sync.Mutex
	players []*MockPlayer
	err     error
}

// NewMockOutput creates a mock output at sampleRate.
func NewMockOutput(sampleRate int) *MockOutput {
	return &MockOutput{Rate: sampleRate, Speed: 1}
}

// NewPlayer reads r fully and returns a paused player for it.
func (m *MockOutput) NewPlayer(r io.Reader) (Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	speed := m.Speed
	if speed <= 0 {
		speed = 1
	}

	p := &MockPlayer{
		Bytes:    len(data),
		duration: time.Duration(float64(Duration(len(data), m.Rate)) / speed),
		volume:   1,
	}
	m.players = append(m.players, p)
	return p, nil
}

// SampleRate returns the simulated rate.
func (m *MockOutput) SampleRate() int {
	return m.Rate
}

// SetError makes NewPlayer fail with err. A nil err clears it.
func (m *MockOutput) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Players returns every player created so far.
func (m *MockOutput) Players() []*MockPlayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockPlayer(nil), m.players...)
}

// MockPlayer tracks simulated playback position against the wall clock.
type MockPlayer struct {
	Bytes int

	mu       sync.Mutex
	duration time.Duration
	elapsed  time.Duration
	started  time.Time
	playing  bool
	closed   bool
	volume   float64
}

// Play starts or resumes playback.
func (p *MockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing || p.closed {
		return
	}
	p.playing = true
	p.started = time.Now()
}

// Pause freezes the playback position.
func (p *MockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseLocked()
}

func (p *MockPlayer) pauseLocked() {
	if !p.playing {
		return
	}
	p.elapsed += time.Since(p.started)
	p.playing = false
}

// IsPlaying reports whether audio remains and playback is running.
func (p *MockPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return false
	}
	if p.elapsed+time.Since(p.started) >= p.duration {
		p.pauseLocked()
		p.elapsed = p.duration
		return false
	}
	return true
}

// SetVolume records the volume.
func (p *MockPlayer) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
}

// Volume returns the last volume set.
func (p *MockPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Close stops playback for good.
func (p *MockPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseLocked()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockPlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Finished reports whether the whole stream was played.
func (p *MockPlayer) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed >= p.duration
}
