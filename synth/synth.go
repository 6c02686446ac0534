// Package synth generates deterministic test signals.
package synth

import (
	"math"

	"github.com/mager/chromamind/chromamind"
)

// BeatSweep returns a sine sweep from f0 to f1 Hz, gated into short decaying
// bursts on every beat at the given tempo.
func BeatSweep(sampleRate int, seconds, bpm, f0, f1 float64) chromamind.PCM {
	n := int(math.Round(seconds * float64(sampleRate)))
	out := make([]float64, n)
	beat := 60 / bpm
	var phase float64
	for i := range out {
		t := float64(i) / float64(sampleRate)
		f := f0 + (f1-f0)*t/seconds
		phase += 2 * math.Pi * f / float64(sampleRate)
		since := math.Mod(t, beat)
		out[i] = 0.8 * math.Exp(-since/0.05) * math.Sin(phase)
	}
	return chromamind.PCM{Samples: out, SampleRate: sampleRate}
}

// Silence returns a constant-zero buffer.
func Silence(sampleRate int, seconds float64) chromamind.PCM {
	return chromamind.PCM{
		Samples:    make([]float64, int(math.Round(seconds*float64(sampleRate)))),
		SampleRate: sampleRate,
	}
}
