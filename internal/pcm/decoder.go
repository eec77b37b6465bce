package pcm

import (
	"encoding/binary"
	"fmt"
	"os/exec"
)

// DecodeFile runs FFmpeg to decode an audio file to per-channel float64
// samples at the engine rate.
func DecodeFile(path string) (Buffer, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return Buffer{}, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	// Ensure whole interleaved frames for int16 alignment
	out = out[:len(out)/4*4]

	frames := len(out) / 4
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left[i] = float64(int16(binary.LittleEndian.Uint16(out[i*4:]))) / 32768.0
		right[i] = float64(int16(binary.LittleEndian.Uint16(out[i*4+2:]))) / 32768.0
	}

	return Buffer{Channels: [][]float64{left, right}, SampleRate: SampleRate}, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// Int16 converts a float sample in [-1,1] to int16 with clipping.
func Int16(v float64) int16 {
	s := v * 32767
	if s > 32767 {
		return 32767
	}
	if s < -32768 {
		return -32768
	}
	return int16(s)
}
