// Package wav serializes interleaved PCM into a canonical RIFF/WAVE byte
// layout. Pure and deterministic; no I/O.
package wav

import (
	"encoding/binary"
	"fmt"
	"math"
)

const headerSize = 44

// Encode packs per-channel float samples into a 16-bit PCM WAV container.
// Floats are clamped to [-1,1], scaled asymmetrically (0x8000 negative,
// 0x7FFF non-negative), and rounded. Channels must be equal length.
func Encode(channels [][]float64, sampleRate, bitDepth int) ([]byte, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("encode wav: no channels")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: invalid sample rate %d", sampleRate)
	}
	if bitDepth != 16 {
		return nil, fmt.Errorf("encode wav: unsupported bit depth %d", bitDepth)
	}
	frames := len(channels[0])
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("encode wav: channel %d length %d, want %d", i, len(ch), frames)
		}
	}

	numChannels := len(channels)
	blockAlign := numChannels * 2
	byteRate := sampleRate * blockAlign
	dataSize := frames * blockAlign

	out := make([]byte, headerSize+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1) // PCM format tag
	binary.LittleEndian.PutUint16(out[22:], uint16(numChannels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], uint16(bitDepth))
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))

	pos := headerSize
	for i := 0; i < frames; i++ {
		for _, ch := range channels {
			binary.LittleEndian.PutUint16(out[pos:], uint16(quantize(ch[i])))
			pos += 2
		}
	}
	return out, nil
}

// quantize clamps to [-1,1] and scales asymmetrically, rounding so that
// 0.5 maps to 16384 and -0.5 to -16384.
func quantize(v float64) int16 {
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	if v < 0 {
		return int16(math.Round(v * 0x8000))
	}
	return int16(math.Round(v * 0x7FFF))
}
