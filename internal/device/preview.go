package device

import (
	"context"
	"time"

	"github.com/seguelab/segue/internal/pcm"
)

// StreamFrames renders a job at real-time rate, sending interleaved stereo
// int16 frames of 20ms to out. It returns when the job is fully played or
// the context is cancelled. The same mixer math drives Render, so preview
// and export stay in lockstep.
func StreamFrames(ctx context.Context, job Job, out chan<- []int16) error {
	m, err := newMixer(job)
	if err != nil {
		return err
	}

	totalFrames := int(job.Duration * float64(m.rate) / pcm.FrameSize)

	ticker := time.NewTicker(pcm.FrameDuration)
	defer ticker.Stop()

	for i := 0; i < totalFrames; i++ {
		frame := make([]int16, pcm.FrameSamples)
		for s := 0; s < pcm.FrameSize; s++ {
			l, r := m.next()
			frame[s*2] = pcm.Int16(l)
			frame[s*2+1] = pcm.Int16(r)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
