package chromamind

import (
	"fmt"
	"sort"
)

// SafeMaxBlinkMs is the ceiling on a mode descriptor's blink interval.
const SafeMaxBlinkMs = 50

// MinBlinkMs is the floor on a mode descriptor's blink interval.
const MinBlinkMs = 20

// MaxModeBrightness is the top of the mode descriptor brightness scale.
const MaxModeBrightness = 20

// Profile describes the physical LED layout of the target device.
type Profile struct {
	// Rows is the number of LED rows on the strip.
	// Example: 2
	Rows int `json:"rows" yaml:"rows"`
	// Cols is the number of LEDs per row. Column 0 and Cols-1 are the physical ends of the strip.
	// Example: 16
	Cols int `json:"cols" yaml:"cols"`
	// MinA is the smallest amplification weight a lit pixel can carry.
	// Example: 5
	MinA uint8 `json:"min_a" yaml:"min_a"`
	// MaxA is the largest amplification weight a lit pixel can carry.
	// Example: 20
	MaxA uint8 `json:"max_a" yaml:"max_a"`
}

// DefaultProfile is the 2x16 sunglasses strip.
func DefaultProfile() Profile {
	return Profile{Rows: 2, Cols: 16, MinA: 5, MaxA: 20}
}

// Validate reports whether the profile can be rendered to.
func (p Profile) Validate() error {
	if p.Rows <= 0 || p.Cols <= 0 {
		return fmt.Errorf("profile dimensions must be positive, got %dx%d", p.Rows, p.Cols)
	}
	if p.MinA == 0 || p.MinA > p.MaxA {
		return fmt.Errorf("profile amplification range [%d,%d] is invalid", p.MinA, p.MaxA)
	}
	return nil
}

// LedPixel is one LED. A is an amplification / blink weight, not transparency.
type LedPixel struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Off reports whether the pixel emits no light.
func (p LedPixel) Off() bool {
	return p.R == 0 && p.G == 0 && p.B == 0
}

// LedMatrix is a Rows x Cols grid, indexed [row][col].
type LedMatrix [][]LedPixel

// NewMatrix returns an all-off matrix sized for the profile.
func NewMatrix(p Profile) LedMatrix {
	m := make(LedMatrix, p.Rows)
	for r := range m {
		m[r] = make([]LedPixel, p.Cols)
	}
	return m
}

// Dims returns the matrix dimensions.
func (m LedMatrix) Dims() (rows, cols int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// ModeDescriptor is the compact stand-in for a full frame on constrained devices.
type ModeDescriptor struct {
	// ModeID selects one of the device's eight built-in animations.
	// Range: 1 - 8
	ModeID int `json:"mode_id"`
	// BlinkIntervalMs is the device blink period.
	// Range: 20 - 50
	BlinkIntervalMs int `json:"blink_interval_ms"`
	// Brightness is the device brightness level.
	// Range: 0 - 20
	Brightness int `json:"brightness"`
}

// String renders the descriptor in its wire form.
func (d ModeDescriptor) String() string {
	return fmt.Sprintf("%d;%d;%d", d.ModeID, d.BlinkIntervalMs, d.Brightness)
}

// PayloadKind says which payload a Timeline's frames carry.
type PayloadKind string

const (
	PayloadMatrix PayloadKind = "matrix"
	PayloadMode   PayloadKind = "mode"
)

// Frame is one timestamped instruction. Exactly one of Leds and Mode is set,
// matching the owning Timeline's Kind.
type Frame struct {
	TimeMs int64           `json:"time"`
	Leds   LedMatrix       `json:"leds,omitempty"`
	Mode   *ModeDescriptor `json:"mode,omitempty"`
}

// Timeline is the ordered frame sequence for one track. It is built once and
// must not be mutated after it has been published.
type Timeline struct {
	Kind       PayloadKind `json:"kind"`
	Frames     []Frame     `json:"frames"`
	DurationMs int64       `json:"duration_ms"`
	TempoBPM   float64     `json:"tempo_bpm"`
}

// Len returns the number of frames.
func (t *Timeline) Len() int {
	return len(t.Frames)
}

// At returns the last frame whose timestamp is <= positionMs. Positions before
// the first frame return the first frame.
func (t *Timeline) At(positionMs int64) (Frame, bool) {
	if len(t.Frames) == 0 {
		return Frame{}, false
	}
	i := sort.Search(len(t.Frames), func(i int) bool {
		return t.Frames[i].TimeMs > positionMs
	})
	if i == 0 {
		return t.Frames[0], true
	}
	return t.Frames[i-1], true
}

// Validate checks ordering, payload kind and matrix dimensions.
func (t *Timeline) Validate() error {
	rows, cols := -1, -1
	for i, f := range t.Frames {
		if f.TimeMs < 0 {
			return fmt.Errorf("frame %d has negative timestamp %d", i, f.TimeMs)
		}
		if i > 0 && f.TimeMs < t.Frames[i-1].TimeMs {
			return fmt.Errorf("frame %d timestamp %d precedes frame %d", i, f.TimeMs, i-1)
		}
		switch t.Kind {
		case PayloadMatrix:
			if f.Leds == nil || f.Mode != nil {
				return fmt.Errorf("frame %d does not carry a matrix payload", i)
			}
			r, c := f.Leds.Dims()
			if rows < 0 {
				rows, cols = r, c
			} else if r != rows || c != cols {
				return fmt.Errorf("frame %d is %dx%d, timeline is %dx%d", i, r, c, rows, cols)
			}
		case PayloadMode:
			if f.Mode == nil || f.Leds != nil {
				return fmt.Errorf("frame %d does not carry a mode payload", i)
			}
		default:
			return fmt.Errorf("unknown payload kind %q", t.Kind)
		}
	}
	return nil
}

// PCM is a decoded mono sample buffer.
type PCM struct {
	Samples    []float64
	SampleRate int
}

// DurationMs returns the buffer length in milliseconds, rounded up so that
// every sample's floored timestamp is strictly below it.
func (p PCM) DurationMs() int64 {
	if p.SampleRate <= 0 {
		return 0
	}
	sr := int64(p.SampleRate)
	return (int64(len(p.Samples))*1000 + sr - 1) / sr
}

// FeatureSeries holds per-hop features. Every scalar series is min-max
// normalized to [0,1] over the whole track.
type FeatureSeries struct {
	// TimesMs is the start time of each hop.
	TimesMs []int64 `json:"times_ms"`
	// RMS is the root-mean-square energy of each hop's frame.
	RMS []float64 `json:"rms"`
	// Centroid is the magnitude-weighted mean frequency of each hop.
	Centroid []float64 `json:"spectral_centroid"`
	// Rolloff is the frequency under which most of the hop's spectral magnitude lies.
	Rolloff []float64 `json:"spectral_rolloff"`
	// ZCR is the zero-crossing rate of each hop.
	ZCR []float64 `json:"zero_crossing_rate"`
	// MoodIntensity is the mean of normalized RMS, centroid and rolloff.
	// Range: 0 - 1
	MoodIntensity []float64 `json:"mood_intensity"`
	// BandDB is the mean decibel level (relative to the track peak, so <= 0) of
	// equal-width frequency bands, indexed [hop][band].
	BandDB [][]float64 `json:"band_db"`
}

// Len returns the hop count.
func (f *FeatureSeries) Len() int {
	return len(f.TimesMs)
}

// Analysis is the one-shot result of analyzing a track.
type Analysis struct {
	SampleRate int           `json:"sample_rate"`
	WindowSize int           `json:"window_size"`
	HopLength  int           `json:"hop_length"`
	DurationMs int64         `json:"duration_ms"`
	TempoBPM   float64       `json:"tempo_bpm"`
	Features   FeatureSeries `json:"features"`
}

// HopSeconds returns the hop duration in seconds.
func (a *Analysis) HopSeconds() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.HopLength) / float64(a.SampleRate)
}
