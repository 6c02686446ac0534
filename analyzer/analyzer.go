package analyzer

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrAnalysis marks input that cannot be analyzed. No partial output is
// returned alongside it.
var ErrAnalysis = errors.New("audio analysis failed")

const (
	// amin is the magnitude floor used before taking logarithms.
	amin = 1e-10
	// ctxCheckEvery is how many hops are processed between context checks.
	ctxCheckEvery = 256
	// maxCachedBins bounds the spectra kept between passes (64 MiB of float32).
	// Longer tracks recompute the FFT in the second pass.
	maxCachedBins = 1 << 24
)

// Options tunes the short-time analysis.
type Options struct {
	// WindowSize is the FFT frame length in samples.
	WindowSize int
	// HopLength is the distance between successive frames in samples.
	HopLength int
	// Bands is the number of equal-width frequency bands summarized per hop.
	Bands int
	// RolloffPercent is the share of spectral magnitude below the rolloff frequency.
	RolloffPercent float64
	// TopDB is the dynamic range kept below the track peak.
	TopDB float64
}

// DefaultOptions matches the usual 2048/512 analysis at two row bands.
func DefaultOptions() Options {
	return Options{
		WindowSize:     2048,
		HopLength:      512,
		Bands:          2,
		RolloffPercent: 0.85,
		TopDB:          80,
	}
}

func (o Options) validate() error {
	if o.WindowSize < 2 {
		return errors.Errorf("window size %d too small", o.WindowSize)
	}
	if o.HopLength <= 0 {
		return errors.Errorf("hop length must be positive, got %d", o.HopLength)
	}
	if o.Bands <= 0 || o.Bands > o.WindowSize/2+1 {
		return errors.Errorf("band count %d out of range", o.Bands)
	}
	if o.RolloffPercent <= 0 || o.RolloffPercent > 1 {
		return errors.Errorf("rolloff percent %v out of range", o.RolloffPercent)
	}
	if o.TopDB <= 0 {
		return errors.Errorf("top dB must be positive, got %v", o.TopDB)
	}
	return nil
}

// Analyzer extracts tempo and per-hop features from PCM. It keeps no state
// between calls and is safe for concurrent use.
type Analyzer struct {
	opts       Options
	log        *zap.SugaredLogger
	window     []float64
	cacheLimit int
}

// New builds an Analyzer.
func New(opts Options, log *zap.SugaredLogger) (*Analyzer, error) {
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid analyzer options")
	}
	return &Analyzer{
		opts:   opts,
		log:    log,
		window:     hann(opts.WindowSize),
		cacheLimit: maxCachedBins,
	}, nil
}

// Options returns the analyzer's settings.
func (a *Analyzer) Options() Options {
	return a.opts
}

// hann returns a periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// stft holds per-call scratch buffers.
type stft struct {
	a        *Analyzer
	pcm      chromamind.PCM
	fft      *fourier.FFT
	frame    []float64
	windowed []float64
	coeffs   []complex128
	mags     []float64
}

func (a *Analyzer) newSTFT(pcm chromamind.PCM) *stft {
	n := a.opts.WindowSize
	return &stft{
		a:        a,
		pcm:      pcm,
		fft:      fourier.NewFFT(n),
		frame:    make([]float64, n),
		windowed: make([]float64, n),
		coeffs:   make([]complex128, n/2+1),
		mags:     make([]float64, n/2+1),
	}
}

// load fills the frame centered on hop i, zero-padded past either end, and
// computes its magnitude spectrum.
func (s *stft) load(i int) {
	n := s.a.opts.WindowSize
	start := i*s.a.opts.HopLength - n/2
	for j := 0; j < n; j++ {
		idx := start + j
		if idx < 0 || idx >= len(s.pcm.Samples) {
			s.frame[j] = 0
		} else {
			s.frame[j] = s.pcm.Samples[idx]
		}
		s.windowed[j] = s.frame[j] * s.a.window[j]
	}
	s.coeffs = s.fft.Coefficients(s.coeffs, s.windowed)
	for k, c := range s.coeffs {
		s.mags[k] = cmplx.Abs(c)
	}
}

// logMag is a magnitude in dB relative to 1. Both passes round through it so
// cached and recomputed spectra agree exactly.
func logMag(m float64) float32 {
	return float32(20 * math.Log10(math.Max(m, amin)))
}

// Analyze runs the full batch analysis over a loaded track.
func (a *Analyzer) Analyze(ctx context.Context, pcm chromamind.PCM) (*chromamind.Analysis, error) {
	if pcm.SampleRate <= 0 {
		return nil, errors.Wrapf(ErrAnalysis, "sample rate %d", pcm.SampleRate)
	}
	if len(pcm.Samples) == 0 {
		return nil, errors.Wrap(ErrAnalysis, "zero-length input")
	}
	for i, x := range pcm.Samples {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, errors.Wrapf(ErrAnalysis, "non-finite sample at %d", i)
		}
	}

	hop := a.opts.HopLength
	hops := (len(pcm.Samples) + hop - 1) / hop
	nbins := a.opts.WindowSize/2 + 1
	binHz := float64(pcm.SampleRate) / float64(a.opts.WindowSize)

	fs := chromamind.FeatureSeries{
		TimesMs:       make([]int64, hops),
		RMS:           make([]float64, hops),
		Centroid:      make([]float64, hops),
		Rolloff:       make([]float64, hops),
		ZCR:           make([]float64, hops),
		MoodIntensity: make([]float64, hops),
		BandDB:        make([][]float64, hops),
	}

	// First pass: time-domain features, spectral shape and the track peak.
	s := a.newSTFT(pcm)
	var spectra []float32
	if hops*nbins <= a.cacheLimit {
		spectra = make([]float32, hops*nbins)
	}
	var peak float64
	for i := 0; i < hops; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "analysis interrupted")
			}
		}
		s.load(i)
		fs.TimesMs[i] = int64(i) * int64(hop) * 1000 / int64(pcm.SampleRate)
		fs.RMS[i] = rms(s.frame)
		fs.ZCR[i] = zeroCrossingRate(s.frame)
		fs.Centroid[i] = centroid(s.mags, binHz)
		fs.Rolloff[i] = rolloff(s.mags, binHz, a.opts.RolloffPercent)
		for _, m := range s.mags {
			peak = math.Max(peak, m)
		}
		if spectra != nil {
			row := spectra[i*nbins : (i+1)*nbins]
			for k, m := range s.mags {
				row[k] = logMag(m)
			}
		}
	}

	// Second pass: decibel bands and onset strength relative to the peak.
	refDB := float64(logMag(peak))
	var row []float32
	if spectra == nil {
		row = make([]float32, nbins)
	}
	onset := make([]float64, hops)
	prev := make([]float64, nbins)
	cur := make([]float64, nbins)
	for i := 0; i < hops; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "analysis interrupted")
			}
		}
		if spectra != nil {
			row = spectra[i*nbins : (i+1)*nbins]
		} else {
			s.load(i)
			for k, m := range s.mags {
				row[k] = logMag(m)
			}
		}
		for k, v := range row {
			cur[k] = math.Max(float64(v)-refDB, -a.opts.TopDB)
		}
		fs.BandDB[i] = bandMeans(cur, a.opts.Bands)
		if i > 0 {
			var flux float64
			for k := range cur {
				if d := cur[k] - prev[k]; d > 0 {
					flux += d
				}
			}
			onset[i] = flux / float64(nbins)
		}
		prev, cur = cur, prev
	}

	util.Normalize(fs.RMS)
	util.Normalize(fs.Centroid)
	util.Normalize(fs.Rolloff)
	util.Normalize(fs.ZCR)
	for i := range fs.MoodIntensity {
		fs.MoodIntensity[i] = util.Clamp((fs.RMS[i]+fs.Centroid[i]+fs.Rolloff[i])/3, 0, 1)
	}

	hopSeconds := float64(hop) / float64(pcm.SampleRate)
	tempo := estimateTempo(onset, hopSeconds)

	res := &chromamind.Analysis{
		SampleRate: pcm.SampleRate,
		WindowSize: a.opts.WindowSize,
		HopLength:  hop,
		DurationMs: pcm.DurationMs(),
		TempoBPM:   tempo,
		Features:   fs,
	}

	a.log.Infow("Analysis complete",
		"hops", hops,
		"duration_ms", res.DurationMs,
		"tempo_bpm", tempo,
	)

	return res, nil
}

func rms(frame []float64) float64 {
	var sum float64
	for _, x := range frame {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func zeroCrossingRate(frame []float64) float64 {
	var crossings int
	for i := 1; i < len(frame); i++ {
		if (frame[i] >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}

func centroid(mags []float64, binHz float64) float64 {
	var weighted, total float64
	for k, m := range mags {
		weighted += float64(k) * binHz * m
		total += m
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

func rolloff(mags []float64, binHz, percent float64) float64 {
	var total float64
	for _, m := range mags {
		total += m
	}
	if total == 0 {
		return 0
	}
	threshold := total * percent
	var cum float64
	for k, m := range mags {
		cum += m
		if cum >= threshold {
			return float64(k) * binHz
		}
	}
	return float64(len(mags)-1) * binHz
}

// bandMeans averages db over n contiguous, near-equal bin ranges.
func bandMeans(db []float64, n int) []float64 {
	out := make([]float64, n)
	for b := 0; b < n; b++ {
		lo := b * len(db) / n
		hi := (b + 1) * len(db) / n
		out[b] = util.Mean(db[lo:hi])
	}
	return out
}
