//go:build !nocgo && (cgo || darwin || windows)

package audio

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoRate    int
	otoErr     error
)

// OtoOutput plays PCM through the system audio device.
type OtoOutput struct {
	ctx        *oto.Context
	sampleRate int
}

// NewOtoOutput opens the audio device at sampleRate. Later calls must use the
// same rate as the first.
func NewOtoOutput(sampleRate int) (*OtoOutput, error) {
	otoOnce.Do(func() {
		otoRate = sampleRate
		otoContext, otoErr = newContext(sampleRate)
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if sampleRate != otoRate {
		return nil, fmt.Errorf("audio device already opened at %d Hz, cannot reopen at %d Hz", otoRate, sampleRate)
	}
	return &OtoOutput{ctx: otoContext, sampleRate: sampleRate}, nil
}

func newContext(sampleRate int) (*oto.Context, error) {
	options := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	switch runtime.GOOS {
	case "darwin":
		options.BufferSize = 100 * time.Millisecond
	case "windows":
		options.BufferSize = 80 * time.Millisecond
	default:
		options.BufferSize = 50 * time.Millisecond
	}

	log.Debug("initializing audio context",
		"sample_rate", options.SampleRate,
		"buffer_size", options.BufferSize)

	ctx, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	select {
	case <-ready:
		return ctx, nil
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("%w: audio context initialization timeout", ErrUnavailable)
	}
}

// NewPlayer creates a paused player reading from r.
func (o *OtoOutput) NewPlayer(r io.Reader) (Player, error) {
	return o.ctx.NewPlayer(r), nil
}

// SampleRate returns the device sample rate.
func (o *OtoOutput) SampleRate() int {
	return o.sampleRate
}
