// Package reducer compresses LED frames into the three-field mode descriptor
// understood by bandwidth-constrained devices.
package reducer

import (
	"math"

	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/util"
	"github.com/pkg/errors"
)

// Inputs is the per-hop context a reduction needs besides the matrix.
type Inputs struct {
	HopIndex      int
	MoodIntensity float64
	TempoBPM      float64
}

// Stats summarizes which pixels of a matrix are lit.
type Stats struct {
	Pixels int
	Lit    int
	Edge   int
	SumA   int
}

// Activity is the share of pixels with a non-zero amplification.
func (s Stats) Activity() float64 {
	if s.Pixels == 0 {
		return 0
	}
	return float64(s.Lit) / float64(s.Pixels)
}

// EdgeRatio is the share of lit pixels sitting on either end column.
func (s Stats) EdgeRatio() float64 {
	if s.Lit == 0 {
		return 0
	}
	return float64(s.Edge) / float64(s.Lit)
}

// MeanA is the mean amplification of lit pixels.
func (s Stats) MeanA() float64 {
	if s.Lit == 0 {
		return 0
	}
	return float64(s.SumA) / float64(s.Lit)
}

// Measure counts lit and edge pixels.
func Measure(m chromamind.LedMatrix) Stats {
	var s Stats
	for _, row := range m {
		last := len(row) - 1
		for col, px := range row {
			s.Pixels++
			if px.A == 0 {
				continue
			}
			s.Lit++
			s.SumA += int(px.A)
			if col == 0 || col == last {
				s.Edge++
			}
		}
	}
	return s
}

// Mode applies the decision table. The first matching rule wins.
func Mode(s Stats, in Inputs) int {
	activity := s.Activity()
	switch {
	case activity > 0.8:
		if in.MoodIntensity < 0.5 {
			return 1
		}
		return 2
	case s.EdgeRatio() > 0.3:
		return 3
	case activity > 0.5:
		if in.HopIndex%2 == 0 {
			return 4
		}
		return 5
	case activity > 0.2:
		if in.MoodIntensity > 0.5 {
			return 6
		}
		return 7
	default:
		return 8
	}
}

// BlinkInterval derives the device blink period from tempo and mood. The
// result always lies in [MinBlinkMs, SafeMaxBlinkMs].
func BlinkInterval(tempoBPM, mood float64) int {
	factor := 0.5 + 1.5*util.Clamp(mood, 0, 1)
	ms := 60000 / tempoBPM * factor
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return chromamind.SafeMaxBlinkMs
	}
	return int(math.Round(util.Clamp(ms, chromamind.MinBlinkMs, chromamind.SafeMaxBlinkMs)))
}

// Brightness rescales the mean lit amplification onto the device's 0-20 scale.
func Brightness(s Stats, maxA uint8) int {
	if maxA == 0 {
		return 0
	}
	b := math.Round(s.MeanA() * chromamind.MaxModeBrightness / float64(maxA))
	return util.ClampInt(int(b), 0, chromamind.MaxModeBrightness)
}

// Reduce maps one matrix to a mode descriptor.
func Reduce(m chromamind.LedMatrix, profile chromamind.Profile, in Inputs) chromamind.ModeDescriptor {
	s := Measure(m)
	return chromamind.ModeDescriptor{
		ModeID:          Mode(s, in),
		BlinkIntervalMs: BlinkInterval(in.TempoBPM, in.MoodIntensity),
		Brightness:      Brightness(s, profile.MaxA),
	}
}

// Timeline reduces every frame of a matrix timeline, pairing frame i with
// hop i of the analysis.
func Timeline(tl *chromamind.Timeline, a *chromamind.Analysis, profile chromamind.Profile) (*chromamind.Timeline, error) {
	if tl == nil || a == nil {
		return nil, errors.New("reduce: nil timeline or analysis")
	}
	if tl.Kind != chromamind.PayloadMatrix {
		return nil, errors.Errorf("reduce: timeline carries %s frames", tl.Kind)
	}
	moods := a.Features.MoodIntensity
	if len(moods) != tl.Len() {
		return nil, errors.Errorf("reduce: %d frames for %d analysis hops", tl.Len(), len(moods))
	}

	out := &chromamind.Timeline{
		Kind:       chromamind.PayloadMode,
		Frames:     make([]chromamind.Frame, tl.Len()),
		DurationMs: tl.DurationMs,
		TempoBPM:   tl.TempoBPM,
	}
	for i, f := range tl.Frames {
		d := Reduce(f.Leds, profile, Inputs{
			HopIndex:      i,
			MoodIntensity: moods[i],
			TempoBPM:      a.TempoBPM,
		})
		out.Frames[i] = chromamind.Frame{TimeMs: f.TimeMs, Mode: &d}
	}
	return out, nil
}
