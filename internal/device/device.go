// Package device is a software rendering device for transition keyframes.
// It honors the scheduler contract: keyframes are monotonically time-ordered
// and every parameter is linearly interpolated between them. The same mixer
// serves the offline render and the paced real-time preview.
package device

import (
	"context"
	"fmt"
	"math"

	"github.com/seguelab/segue/internal/automation"
	"github.com/seguelab/segue/internal/pcm"
)

// Job describes one transition render: two decoded sources, their seek
// offsets, the keyframe sequence, and the output length in seconds.
type Job struct {
	A, B     pcm.Buffer
	StartA   float64 // seconds into A
	StartB   float64 // seconds into B
	Frames   []automation.Keyframe
	Duration float64 // total output seconds (crossfade + tail)
}

// Render produces the full output buffer in one call. Long renders abort on
// context cancellation.
func Render(ctx context.Context, job Job) (pcm.Buffer, error) {
	m, err := newMixer(job)
	if err != nil {
		return pcm.Buffer{}, err
	}

	total := int(job.Duration * float64(m.rate))
	if total <= 0 {
		return pcm.Buffer{}, fmt.Errorf("render: non-positive duration %v", job.Duration)
	}

	left := make([]float64, total)
	right := make([]float64, total)
	for i := 0; i < total; i++ {
		if i%m.rate == 0 {
			select {
			case <-ctx.Done():
				return pcm.Buffer{}, ctx.Err()
			default:
			}
		}
		left[i], right[i] = m.next()
	}

	return pcm.Buffer{Channels: [][]float64{left, right}, SampleRate: m.rate}, nil
}

// mixer advances sample by sample, reading both sources at automation-driven
// rates and applying gain, filter-swap, and EQ-shelf lanes.
type mixer struct {
	job  Job
	rate int

	t    float64 // output clock, seconds
	dt   float64
	posA float64 // fractional sample position into A
	posB float64

	cursor int // current keyframe segment

	hpA   [2]onePole // high-pass sweep on A
	lpB   [2]onePole // low-pass sweep on B
	lowA  [2]onePole // low-shelf band split on A
	lowB  [2]onePole
	highB [2]onePole // high-shelf band split on B
}

// Shelf crossover points for the EQ lanes.
const (
	lowShelfHz  = 200.0
	highShelfHz = 2000.0
)

func newMixer(job Job) (*mixer, error) {
	if job.A.Empty() || job.B.Empty() {
		return nil, fmt.Errorf("render: missing source audio")
	}
	if len(job.Frames) == 0 {
		return nil, fmt.Errorf("render: empty keyframe sequence")
	}
	rate := job.A.SampleRate
	return &mixer{
		job:  job,
		rate: rate,
		dt:   1 / float64(rate),
		posA: job.StartA * float64(rate),
		posB: job.StartB * float64(rate),
	}, nil
}

func (m *mixer) next() (l, r float64) {
	kf := m.at(m.t)
	m.t += m.dt

	rateA, rateB := kf.RateA, kf.RateB
	if rateA <= 0 {
		rateA = 1
	}
	if rateB <= 0 {
		rateB = 1
	}

	aL := m.job.A.Sample(0, m.posA)
	aR := m.job.A.Sample(1, m.posA)
	bL := m.job.B.Sample(0, m.posB)
	bR := m.job.B.Sample(1, m.posB)
	m.posA += rateA
	m.posB += rateB

	if kf.HighpassA > 0 {
		aL = highpass(&m.hpA[0], aL, kf.HighpassA, m.dt)
		aR = highpass(&m.hpA[1], aR, kf.HighpassA, m.dt)
	}
	if kf.LowpassB > 0 {
		bL = m.lpB[0].lowpass(bL, kf.LowpassB, m.dt)
		bR = m.lpB[1].lowpass(bR, kf.LowpassB, m.dt)
	}
	if kf.EQLowA != 0 {
		aL = shelfLow(&m.lowA[0], aL, kf.EQLowA, m.dt)
		aR = shelfLow(&m.lowA[1], aR, kf.EQLowA, m.dt)
	}
	if kf.EQLowB != 0 {
		bL = shelfLow(&m.lowB[0], bL, kf.EQLowB, m.dt)
		bR = shelfLow(&m.lowB[1], bR, kf.EQLowB, m.dt)
	}
	if kf.EQHighB != 0 {
		bL = shelfHigh(&m.highB[0], bL, kf.EQHighB, m.dt)
		bR = shelfHigh(&m.highB[1], bR, kf.EQHighB, m.dt)
	}

	return aL*kf.GainA + bL*kf.GainB, aR*kf.GainA + bR*kf.GainB
}

// at interpolates the keyframe lanes at output time t. Before the first
// keyframe the first frame holds; after the last, the last holds.
func (m *mixer) at(t float64) automation.Keyframe {
	frames := m.job.Frames
	for m.cursor < len(frames)-1 && frames[m.cursor+1].Time <= t {
		m.cursor++
	}
	cur := frames[m.cursor]
	if m.cursor == len(frames)-1 || t <= cur.Time {
		return cur
	}
	next := frames[m.cursor+1]
	span := next.Time - cur.Time
	if span <= 0 {
		return next
	}
	f := (t - cur.Time) / span
	return automation.Keyframe{
		Progress:  cur.Progress + (next.Progress-cur.Progress)*f,
		Time:      t,
		GainA:     cur.GainA + (next.GainA-cur.GainA)*f,
		GainB:     cur.GainB + (next.GainB-cur.GainB)*f,
		EQLowA:    cur.EQLowA + (next.EQLowA-cur.EQLowA)*f,
		EQHighB:   cur.EQHighB + (next.EQHighB-cur.EQHighB)*f,
		EQLowB:    cur.EQLowB + (next.EQLowB-cur.EQLowB)*f,
		HighpassA: cur.HighpassA + (next.HighpassA-cur.HighpassA)*f,
		LowpassB:  cur.LowpassB + (next.LowpassB-cur.LowpassB)*f,
		RateA:     cur.RateA + (next.RateA-cur.RateA)*f,
		RateB:     cur.RateB + (next.RateB-cur.RateB)*f,
	}
}

// onePole is the RC filter topology shared by the sweeps and shelf band
// splits.
type onePole struct {
	state float64
}

func (p *onePole) lowpass(x, cutoff, dt float64) float64 {
	rc := 1 / (2 * math.Pi * cutoff)
	alpha := dt / (rc + dt)
	p.state += alpha * (x - p.state)
	return p.state
}

func highpass(p *onePole, x, cutoff, dt float64) float64 {
	return x - p.lowpass(x, cutoff, dt)
}

func shelfLow(p *onePole, x, gainDb, dt float64) float64 {
	low := p.lowpass(x, lowShelfHz, dt)
	return low*dbGain(gainDb) + (x - low)
}

func shelfHigh(p *onePole, x, gainDb, dt float64) float64 {
	low := p.lowpass(x, highShelfHz, dt)
	high := x - low
	return low + high*dbGain(gainDb)
}

func dbGain(db float64) float64 {
	return math.Pow(10, db/20)
}
