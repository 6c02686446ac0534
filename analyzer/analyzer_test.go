package analyzer

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/logger"
	"github.com/mager/chromamind/synth"
)

const testRate = 22050

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	opts := DefaultOptions()
	opts.HopLength = testRate / 50
	log, _ := logger.NewTestLogger()
	a, err := New(opts, log)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return a
}

func TestAnalyzeBeatSweep(t *testing.T) {
	a := newTestAnalyzer(t)
	pcm := synth.BeatSweep(testRate, 4.0, 120, 220, 880)

	res, err := a.Analyze(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Analyze() = %v", err)
	}

	if got := res.Features.Len(); got != 200 {
		t.Errorf("hop count = %d, want 200", got)
	}
	if res.DurationMs != 4000 {
		t.Errorf("DurationMs = %d, want 4000", res.DurationMs)
	}
	if math.Abs(res.TempoBPM-120) > 5 {
		t.Errorf("TempoBPM = %.2f, want 120 +/- 5", res.TempoBPM)
	}

	last := res.Features.TimesMs[len(res.Features.TimesMs)-1]
	if res.Features.TimesMs[0] != 0 || last >= 4000 {
		t.Errorf("hop times span [%d, %d], want within [0, 4000)", res.Features.TimesMs[0], last)
	}

	series := map[string][]float64{
		"rms":      res.Features.RMS,
		"centroid": res.Features.Centroid,
		"rolloff":  res.Features.Rolloff,
		"zcr":      res.Features.ZCR,
		"mood":     res.Features.MoodIntensity,
	}
	for name, xs := range series {
		if len(xs) != 200 {
			t.Errorf("%s has %d samples, want 200", name, len(xs))
		}
		for i, x := range xs {
			if x < 0 || x > 1 || math.IsNaN(x) {
				t.Fatalf("%s[%d] = %v, outside [0,1]", name, i, x)
			}
		}
	}
	for i, bands := range res.Features.BandDB {
		if len(bands) != 2 {
			t.Fatalf("BandDB[%d] has %d bands, want 2", i, len(bands))
		}
		for _, db := range bands {
			if db > 0 || db < -80 {
				t.Fatalf("BandDB[%d] = %v, outside [-80, 0]", i, bands)
			}
		}
	}
}

func TestAnalyzeSilence(t *testing.T) {
	a := newTestAnalyzer(t)

	res, err := a.Analyze(context.Background(), synth.Silence(testRate, 1.0))
	if err != nil {
		t.Fatalf("Analyze() = %v", err)
	}
	if res.Features.Len() == 0 {
		t.Fatal("silence produced no hops")
	}
	for i, m := range res.Features.MoodIntensity {
		if m != 0 {
			t.Fatalf("MoodIntensity[%d] = %v, want 0", i, m)
		}
	}
	if res.TempoBPM != DefaultTempo {
		t.Errorf("TempoBPM = %v, want default %v", res.TempoBPM, DefaultTempo)
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		name string
		pcm  chromamind.PCM
	}{
		{"empty", chromamind.PCM{SampleRate: testRate}},
		{"no sample rate", chromamind.PCM{Samples: []float64{0.1, 0.2}}},
		{"nan", chromamind.PCM{Samples: []float64{0.1, math.NaN()}, SampleRate: testRate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Analyze(context.Background(), tt.pcm)
			if !errors.Is(err, ErrAnalysis) {
				t.Errorf("Analyze() error = %v, want ErrAnalysis", err)
			}
			if res != nil {
				t.Error("Analyze() returned partial output alongside an error")
			}
		})
	}
}

func TestAnalyzeHonorsContext(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Analyze(ctx, synth.BeatSweep(testRate, 1.0, 120, 220, 440)); !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	log, _ := logger.NewTestLogger()
	opts := DefaultOptions()
	opts.HopLength = 0
	if _, err := New(opts, log); err == nil {
		t.Error("New() accepted a zero hop length")
	}
}

func TestEstimateTempoPeriodicOnsets(t *testing.T) {
	hop := 0.01
	for _, bpm := range []float64{90, 128, 150} {
		period := 60 / bpm / hop
		onset := make([]float64, 1000)
		for i := range onset {
			if math.Mod(float64(i), period) < 1 {
				onset[i] = 1
			}
		}
		got := estimateTempo(onset, hop)
		if math.Abs(got-bpm) > 5 {
			t.Errorf("estimateTempo(%v BPM) = %.2f", bpm, got)
		}
	}
}

func TestEstimateTempoShortInput(t *testing.T) {
	if got := estimateTempo([]float64{1, 0, 1}, 0.02); got != DefaultTempo {
		t.Errorf("estimateTempo(short) = %v, want %v", got, DefaultTempo)
	}
}

func TestAnalyzeWithoutSpectrumCache(t *testing.T) {
	pcm := synth.BeatSweep(testRate, 2.0, 100, 200, 1200)

	cached := newTestAnalyzer(t)
	want, err := cached.Analyze(context.Background(), pcm)
	if err != nil {
		t.Fatal(err)
	}

	recomputed := newTestAnalyzer(t)
	recomputed.cacheLimit = 0
	got, err := recomputed.Analyze(context.Background(), pcm)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Error("recomputing spectra changed the analysis")
	}
}
