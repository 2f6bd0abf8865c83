//go:build nocgo || !(cgo || darwin || windows)

package audio

import "io"

// OtoOutput is unavailable in builds without cgo.
type OtoOutput struct{}

// NewOtoOutput always fails in builds without cgo.
func NewOtoOutput(int) (*OtoOutput, error) {
	return nil, ErrUnavailable
}

// NewPlayer always fails in builds without cgo.
func (o *OtoOutput) NewPlayer(io.Reader) (Player, error) {
	return nil, ErrUnavailable
}

// SampleRate returns zero in builds without cgo.
func (o *OtoOutput) SampleRate() int {
	return 0
}
