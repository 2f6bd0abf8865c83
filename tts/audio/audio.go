// Package audio plays raw PCM produced by local synthesizers.
package audio

import (
	"errors"
	"io"
	"time"
)

// Format of the PCM stream handed to an Output.
const (
	Channels       = 1
	BitDepth       = 16
	BytesPerSample = BitDepth / 8
)

// ErrUnavailable is returned when no audio device can be opened.
var ErrUnavailable = errors.New("audio output is not available")

// Output opens players for mono signed 16-bit little-endian PCM.
type Output interface {
	NewPlayer(r io.Reader) (Player, error)
	SampleRate() int
}

// Player plays a single PCM stream.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// Duration returns how long n bytes of PCM last at sampleRate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / (BytesPerSample * Channels)
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
