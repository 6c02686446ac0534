package composer

import (
	"context"
	"math/rand/v2"

	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/pattern"
	"github.com/mager/chromamind/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	minBrightness = 0.1
	maxBrightness = 1.0

	ctxCheckEvery = 256
)

// Options tunes frame composition.
type Options struct {
	// PatternEpoch is how many hops a selected pattern stays active.
	PatternEpoch int
	// MoodWindow is how many trailing hops feed the band choice.
	MoodWindow int
	// StepPeriod wraps the animation step so motion stays continuous.
	StepPeriod int
	// Seed drives pattern selection.
	Seed uint64
	// Playlist restricts selection to these pattern names. Empty means the whole library.
	Playlist []string
}

func DefaultOptions() Options {
	return Options{PatternEpoch: 30, MoodWindow: 30, StepPeriod: 720, Seed: 1}
}

// Composer turns an Analysis into a matrix Timeline.
type Composer struct {
	lib  *pattern.Library
	opts Options
	log  *zap.SugaredLogger
	pool []pattern.Pattern
}

// New builds a Composer over lib.
func New(lib *pattern.Library, opts Options, log *zap.SugaredLogger) (*Composer, error) {
	if lib == nil || lib.Len() == 0 {
		return nil, errors.New("composer needs a non-empty pattern library")
	}
	if opts.PatternEpoch <= 0 || opts.MoodWindow <= 0 || opts.StepPeriod <= 0 {
		return nil, errors.Errorf("composer options must be positive, got epoch=%d window=%d period=%d",
			opts.PatternEpoch, opts.MoodWindow, opts.StepPeriod)
	}

	names := opts.Playlist
	if len(names) == 0 {
		names = lib.Names()
	}
	pool := make([]pattern.Pattern, 0, len(names))
	for _, name := range names {
		p, err := lib.Get(name)
		if err != nil {
			return nil, errors.Wrap(err, "playlist")
		}
		pool = append(pool, p)
	}

	return &Composer{lib: lib, opts: opts, log: log, pool: pool}, nil
}

// BandFor maps an average mood to the entrainment band.
func BandFor(mood float64) pattern.Band {
	switch {
	case mood < 0.3:
		return pattern.Theta
	case mood < 0.6:
		return pattern.Alpha
	default:
		return pattern.Beta
	}
}

// Brightness maps each hop's mean band level to [0.1, 1.0] over the track.
func Brightness(f *chromamind.FeatureSeries) []float64 {
	out := make([]float64, f.Len())
	for i := range out {
		if i < len(f.BandDB) {
			out[i] = util.Mean(f.BandDB[i])
		}
	}
	util.Normalize(out)
	for i, v := range out {
		out[i] = util.Lerp(minBrightness, maxBrightness, v)
	}
	return out
}

// Compose renders one frame per hop. A pattern that cannot be bound to the
// hop's inputs aborts the whole composition.
func (c *Composer) Compose(ctx context.Context, a *chromamind.Analysis) (*chromamind.Timeline, error) {
	if a == nil {
		return nil, errors.New("compose: nil analysis")
	}
	f := &a.Features
	n := f.Len()
	if len(f.MoodIntensity) != n {
		return nil, errors.Errorf("compose: %d mood samples for %d hops", len(f.MoodIntensity), n)
	}

	rng := rand.New(rand.NewPCG(c.opts.Seed, uint64(n)))
	brightness := Brightness(f)
	stepSeconds := a.HopSeconds()

	tl := &chromamind.Timeline{
		Kind:       chromamind.PayloadMatrix,
		Frames:     make([]chromamind.Frame, n),
		DurationMs: a.DurationMs,
		TempoBPM:   a.TempoBPM,
	}

	var (
		active pattern.Pattern
		band   pattern.Band
		picks  int
	)
	for hop := 0; hop < n; hop++ {
		if hop%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if hop%c.opts.PatternEpoch == 0 {
			active = c.pool[rng.IntN(len(c.pool))]
			from := max(0, hop-c.opts.MoodWindow+1)
			band = BandFor(util.Mean(f.MoodIntensity[from : hop+1]))
			picks++
			c.log.Debugw("Pattern selected", "hop", hop, "pattern", active.Name, "band", band)
		}

		params, err := active.Bind(pattern.Inputs{
			Band:          band,
			MoodIntensity: f.MoodIntensity[hop],
			TempoBPM:      a.TempoBPM,
			StepSeconds:   stepSeconds,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "compose hop %d", hop)
		}

		tl.Frames[hop] = chromamind.Frame{
			TimeMs: f.TimesMs[hop],
			Leds:   c.lib.Render(active, hop%c.opts.StepPeriod, brightness[hop], params),
		}
	}

	c.log.Infow("Composition complete",
		"frames", n,
		"duration_ms", a.DurationMs,
		"selections", picks,
	)
	return tl, nil
}
