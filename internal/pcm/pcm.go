// Package pcm holds the PCM wire format shared by the decoder, the rendering
// device, and the stream transport.
package pcm

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
)

// Buffer is decoded audio, one float64 slice per channel. The core reads
// seek offsets into it and never mutates the contents.
type Buffer struct {
	Channels   [][]float64
	SampleRate int
}

// Empty reports whether the buffer carries no audio.
func (b Buffer) Empty() bool {
	return b.SampleRate <= 0 || len(b.Channels) == 0 || len(b.Channels[0]) == 0
}

// Duration returns the buffer length in seconds.
func (b Buffer) Duration() float64 {
	if b.Empty() {
		return 0
	}
	return float64(len(b.Channels[0])) / float64(b.SampleRate)
}

// Sample reads channel ch at a fractional frame position with linear
// interpolation. Positions outside the buffer read as silence.
func (b Buffer) Sample(ch int, pos float64) float64 {
	if ch >= len(b.Channels) {
		ch = len(b.Channels) - 1
	}
	data := b.Channels[ch]
	if pos < 0 || len(data) == 0 {
		return 0
	}
	i := int(pos)
	if i >= len(data)-1 {
		if i == len(data)-1 {
			return data[i]
		}
		return 0
	}
	frac := pos - float64(i)
	return data[i]*(1-frac) + data[i+1]*frac
}
