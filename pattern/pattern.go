package pattern

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/util"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

var (
	// ErrUnknownPattern is returned for a name the library does not hold.
	ErrUnknownPattern = errors.New("unknown pattern")
	// ErrMissingParam is returned when a pattern's declared input is absent or invalid.
	ErrMissingParam = errors.New("missing pattern parameter")
)

// DefaultStepSeconds is the time base used when the caller supplies none (50 steps/s).
const DefaultStepSeconds = 0.02

// Band names an EEG frequency band used by entrainment patterns.
type Band string

const (
	Delta Band = "delta"
	Theta Band = "theta"
	Alpha Band = "alpha"
	Beta  Band = "beta"
	Gamma Band = "gamma"
)

var bandHz = map[Band]float64{
	Delta: 0.5,
	Theta: 4,
	Alpha: 8,
	Beta:  13,
	Gamma: 40,
}

// Hz returns the band's fixed entrainment frequency.
func (b Band) Hz() (float64, bool) {
	hz, ok := bandHz[b]
	return hz, ok
}

// Param is a bit set of the optional inputs a pattern declares.
type Param uint8

const (
	ParamBand Param = 1 << iota
	ParamMood
	ParamTempo
)

// Has reports whether every bit in q is set.
func (p Param) Has(q Param) bool {
	return p&q == q
}

func (p Param) String() string {
	var names []string
	if p.Has(ParamBand) {
		names = append(names, "frequency_band")
	}
	if p.Has(ParamMood) {
		names = append(names, "mood_intensity")
	}
	if p.Has(ParamTempo) {
		names = append(names, "tempo_bpm")
	}
	return fmt.Sprint(names)
}

// Seeding states where a pattern's randomness comes from.
type Seeding int

const (
	// SeedStep draws from a generator seeded by (library seed, step); output is reproducible.
	SeedStep Seeding = iota
	// SeedProcess draws from a generator seeded once per call from process entropy.
	SeedProcess
)

func (s Seeding) String() string {
	switch s {
	case SeedStep:
		return "step"
	case SeedProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Inputs is everything the composer knows about the current hop.
type Inputs struct {
	Band          Band
	MoodIntensity float64
	TempoBPM      float64
	// StepSeconds is the duration of one animation step.
	StepSeconds float64
}

// Params is what a generator sees. Inputs the pattern did not declare are zero.
type Params struct {
	Band          Band
	BandHz        float64
	MoodIntensity float64
	TempoBPM      float64
	StepSeconds   float64
}

// Seconds converts a step count to seconds.
func (p Params) Seconds(step int) float64 {
	return float64(step) * p.StepSeconds
}

// Generator paints one frame onto the canvas.
type Generator func(c *Canvas, step int, brightness float64, p Params)

// Pattern is one named entry of the library.
type Pattern struct {
	Name     string
	Requires Param
	Seeding  Seeding
	Generate Generator
}

// Bind selects the declared subset of in. It fails closed when a declared
// input is missing or out of range.
func (p Pattern) Bind(in Inputs) (Params, error) {
	out := Params{StepSeconds: in.StepSeconds}
	if out.StepSeconds <= 0 || math.IsNaN(out.StepSeconds) {
		out.StepSeconds = DefaultStepSeconds
	}
	if p.Requires.Has(ParamBand) {
		hz, ok := in.Band.Hz()
		if !ok {
			return Params{}, errors.Wrapf(ErrMissingParam, "pattern %s: frequency band %q", p.Name, in.Band)
		}
		out.Band, out.BandHz = in.Band, hz
	}
	if p.Requires.Has(ParamMood) {
		if math.IsNaN(in.MoodIntensity) {
			return Params{}, errors.Wrapf(ErrMissingParam, "pattern %s: mood intensity", p.Name)
		}
		out.MoodIntensity = util.Clamp(in.MoodIntensity, 0, 1)
	}
	if p.Requires.Has(ParamTempo) {
		if in.TempoBPM <= 0 || math.IsNaN(in.TempoBPM) || math.IsInf(in.TempoBPM, 0) {
			return Params{}, errors.Wrapf(ErrMissingParam, "pattern %s: tempo %v", p.Name, in.TempoBPM)
		}
		out.TempoBPM = in.TempoBPM
	}
	return out, nil
}

// Canvas is the drawing surface handed to a generator. Every write is clamped
// and keeps the amplification channel consistent with the pixel's state.
type Canvas struct {
	profile chromamind.Profile
	m       chromamind.LedMatrix
	rng     *rand.Rand
}

func (c *Canvas) Rows() int { return c.profile.Rows }
func (c *Canvas) Cols() int { return c.profile.Cols }

// Rand returns the per-call random source.
func (c *Canvas) Rand() *rand.Rand { return c.rng }

// Set lights a pixel with channel levels in [0,1]. A lit pixel gets a random
// amplification in [MinA, MaxA]; an unlit one gets zero. Writes outside the
// grid are ignored.
func (c *Canvas) Set(row, col int, r, g, b float64) {
	if row < 0 || row >= c.profile.Rows || col < 0 || col >= c.profile.Cols {
		return
	}
	px := chromamind.LedPixel{R: util.ToByte(r), G: util.ToByte(g), B: util.ToByte(b)}
	if !px.Off() {
		span := int(c.profile.MaxA) - int(c.profile.MinA) + 1
		px.A = c.profile.MinA + uint8(c.rng.IntN(span))
	}
	c.m[row][col] = px
}

// Fill sets every pixel to the same color.
func (c *Canvas) Fill(r, g, b float64) {
	for row := 0; row < c.profile.Rows; row++ {
		for col := 0; col < c.profile.Cols; col++ {
			c.Set(row, col, r, g, b)
		}
	}
}

// Library is a name-keyed table of patterns for one device profile.
type Library struct {
	profile  chromamind.Profile
	seed     uint64
	patterns map[string]Pattern
}

// NewLibrary builds a library from the given patterns.
func NewLibrary(profile chromamind.Profile, seed uint64, patterns ...Pattern) (*Library, error) {
	if err := profile.Validate(); err != nil {
		return nil, errors.Wrap(err, "pattern library")
	}
	l := &Library{
		profile:  profile,
		seed:     seed,
		patterns: make(map[string]Pattern, len(patterns)),
	}
	for _, p := range patterns {
		if p.Name == "" || p.Generate == nil {
			return nil, errors.Errorf("pattern %q is incomplete", p.Name)
		}
		if _, dup := l.patterns[p.Name]; dup {
			return nil, errors.Errorf("pattern %q registered twice", p.Name)
		}
		l.patterns[p.Name] = p
	}
	return l, nil
}

// Profile returns the device profile the library renders for.
func (l *Library) Profile() chromamind.Profile {
	return l.profile
}

// Len returns the number of patterns.
func (l *Library) Len() int {
	return len(l.patterns)
}

// Names returns the pattern names in sorted order.
func (l *Library) Names() []string {
	names := maps.Keys(l.patterns)
	sort.Strings(names)
	return names
}

// Get looks up a pattern by name.
func (l *Library) Get(name string) (Pattern, error) {
	p, ok := l.patterns[name]
	if !ok {
		return Pattern{}, errors.Wrapf(ErrUnknownPattern, "%q", name)
	}
	return p, nil
}

// Render runs a bound pattern for one step.
func (l *Library) Render(p Pattern, step int, brightness float64, params Params) chromamind.LedMatrix {
	c := &Canvas{
		profile: l.profile,
		m:       chromamind.NewMatrix(l.profile),
		rng:     l.rngFor(p.Seeding, step),
	}
	p.Generate(c, step, util.Clamp(brightness, 0, 1), params)
	return c.m
}

// RenderByName looks up, binds and renders a pattern.
func (l *Library) RenderByName(name string, step int, brightness float64, in Inputs) (chromamind.LedMatrix, error) {
	p, err := l.Get(name)
	if err != nil {
		return nil, err
	}
	params, err := p.Bind(in)
	if err != nil {
		return nil, err
	}
	return l.Render(p, step, brightness, params), nil
}

func (l *Library) rngFor(s Seeding, step int) *rand.Rand {
	if s == SeedProcess {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(l.seed, uint64(step)))
}
