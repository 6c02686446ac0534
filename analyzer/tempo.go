package analyzer

import (
	"math"

	"github.com/mager/chromamind/util"
)

const (
	// DefaultTempo is reported when the onset envelope is too short or flat.
	DefaultTempo = 120.0

	minTempo   = 60.0
	maxTempo   = 200.0
	priorTempo = 120.0
	// priorOctaves is the width of the log-normal tempo prior.
	priorOctaves = 1.0
)

// estimateTempo picks the dominant beat period of the onset envelope by
// autocorrelation, weighted toward priorTempo.
func estimateTempo(onset []float64, hopSeconds float64) float64 {
	if hopSeconds <= 0 {
		return DefaultTempo
	}
	minLag := int(math.Ceil(60 / (maxTempo * hopSeconds)))
	maxLag := int(math.Floor(60 / (minTempo * hopSeconds)))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > len(onset)/2 {
		maxLag = len(onset) / 2
	}
	if maxLag <= minLag {
		return DefaultTempo
	}

	mean := util.Mean(onset)
	x := make([]float64, len(onset))
	var energy float64
	for i, v := range onset {
		x[i] = v - mean
		energy += x[i] * x[i]
	}
	if energy < util.Epsilon {
		return DefaultTempo
	}

	scores := make([]float64, maxLag+2)
	best := -1
	for lag := minLag; lag <= maxLag; lag++ {
		var c float64
		for i := 0; i+lag < len(x); i++ {
			c += x[i] * x[i+lag]
		}
		scores[lag] = c * tempoPrior(lagToBPM(float64(lag), hopSeconds))
		if scores[lag] > 0 && (best < 0 || scores[lag] > scores[best]) {
			best = lag
		}
	}
	if best < 0 {
		return DefaultTempo
	}

	lag := float64(best)
	if best > minLag && best < maxLag {
		a, b, c := scores[best-1], scores[best], scores[best+1]
		if denom := a - 2*b + c; denom < 0 {
			lag += util.Clamp(0.5*(a-c)/denom, -0.5, 0.5)
		}
	}

	return util.Clamp(lagToBPM(lag, hopSeconds), minTempo, maxTempo)
}

func lagToBPM(lag, hopSeconds float64) float64 {
	return 60 / (lag * hopSeconds)
}

func tempoPrior(bpm float64) float64 {
	z := math.Log2(bpm/priorTempo) / priorOctaves
	return math.Exp(-0.5 * z * z)
}
