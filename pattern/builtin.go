package pattern

import (
	"math"

	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/util"
)

// Builtin returns every built-in pattern. All of them are step-seeded: the
// only randomness is the amplification jitter and the random-field patterns,
// both drawn from the per-call generator.
func Builtin() []Pattern {
	return []Pattern{
		// Ramps and hue rotations.
		{Name: "wave_vertical", Generate: waveVertical},
		{Name: "gradient_rainbow", Generate: gradientRainbow},
		{Name: "diagonal_wave", Generate: diagonalWave},
		{Name: "fade_left_to_right", Generate: fadeLeftToRight},
		{Name: "fade_right_to_left", Generate: fadeRightToLeft},
		{Name: "fade_center_out", Generate: fadeCenterOut},
		{Name: "zigzag", Generate: zigzag},
		{Name: "checkerboard", Generate: checkerboard},
		{Name: "alternating_rows", Generate: alternatingRows},
		{Name: "vertical_bars", Generate: verticalBars},
		{Name: "horizontal_bars", Generate: horizontalBars},
		{Name: "flashing_all", Generate: flashingAll},
		{Name: "strobe_random", Generate: strobeRandom},
		{Name: "random_pulses", Generate: randomPulses},

		// Moving elements.
		{Name: "spiral", Generate: spiral},
		{Name: "bouncing_dot", Generate: bouncingDot},
		{Name: "snake", Generate: snake},
		{Name: "cylon", Generate: cylon},

		// Feature-driven.
		{Name: "brainwave", Requires: ParamBand | ParamTempo, Generate: brainwave},
		{Name: "tempo_pulse", Requires: ParamTempo, Generate: tempoPulse},
		{Name: "mood_temperature", Requires: ParamMood, Generate: moodTemperature},
		{Name: "photic_strobe", Requires: ParamBand, Generate: photicStrobe},

		// Trips.
		{Name: "ocean_calm", Generate: oceanCalm},
		{Name: "forest_focus", Generate: forestFocus},
		{Name: "sunrise_uplift", Generate: sunriseUplift},
		{Name: "joy_ride", Generate: joyRide},
		{Name: "momentum", Generate: momentum},
		{Name: "power_nap", Generate: powerNap},
		{Name: "cool_down", Generate: coolDown},
		{Name: "balance_mode", Generate: balanceMode},
	}
}

// Default returns a library holding every built-in pattern.
func Default(profile chromamind.Profile, seed uint64) (*Library, error) {
	return NewLibrary(profile, seed, Builtin()...)
}

func waveVertical(c *Canvas, step int, brightness float64, _ Params) {
	freq := 2 * math.Pi / float64(c.Cols())
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			level := (math.Sin(freq*float64(col+step)) + 1) / 2
			c.Set(row, col, level*brightness, 0, (1-level)*brightness)
		}
	}
}

func gradientRainbow(c *Canvas, step int, brightness float64, _ Params) {
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			r, g, b := HSV(float64(col)*360/float64(c.Cols())+float64(step)*10, 1, brightness)
			c.Set(row, col, r, g, b)
		}
	}
}

func diagonalWave(c *Canvas, step int, brightness float64, _ Params) {
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			level := (math.Sin(float64(col+row*2+step)*0.5) + 1) / 2 * brightness
			c.Set(row, col, level, 0, level)
		}
	}
}

func fadeLeftToRight(c *Canvas, step int, brightness float64, _ Params) {
	n := c.Cols()
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < n; col++ {
			d := posMod(col-step, n)
			level := math.Max(0, 1-float64(d)/float64(n)) * brightness
			c.Set(row, col, level, level, level)
		}
	}
}

func fadeRightToLeft(c *Canvas, step int, brightness float64, _ Params) {
	n := c.Cols()
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < n; col++ {
			d := posMod(step-col, n)
			level := math.Max(0, 1-float64(d)/float64(n)) * brightness
			c.Set(row, col, level, level, level)
		}
	}
}

func fadeCenterOut(c *Canvas, step int, brightness float64, _ Params) {
	n := c.Cols()
	center := n / 2
	offset := posMod(step, n)
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < n; col++ {
			d := col - center
			if d < 0 {
				d = -d
			}
			level := math.Max(0, 1-float64(d+offset)/float64(n)) * brightness
			c.Set(row, col, level, level/2, 0)
		}
	}
}

func zigzag(c *Canvas, step int, brightness float64, _ Params) {
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			if posMod(row+col+step, 4) < 2 {
				c.Set(row, col, brightness, brightness, 0)
			}
		}
	}
}

func checkerboard(c *Canvas, step int, brightness float64, _ Params) {
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			if posMod(row+col+step, 2) == 0 {
				c.Set(row, col, 0, brightness, brightness)
			}
		}
	}
}

func alternatingRows(c *Canvas, step int, brightness float64, _ Params) {
	for row := 0; row < c.Rows(); row++ {
		red := posMod(step+row, 2) == 0
		for col := 0; col < c.Cols(); col++ {
			if red {
				c.Set(row, col, brightness, 0, 0)
			} else {
				c.Set(row, col, 0, 0, brightness)
			}
		}
	}
}

func verticalBars(c *Canvas, step int, brightness float64, _ Params) {
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			if posMod(col/2+step, 2) == 0 {
				c.Set(row, col, 0, brightness, brightness)
			}
		}
	}
}

func horizontalBars(c *Canvas, step int, brightness float64, _ Params) {
	on := posMod(step/3, c.Rows())
	for col := 0; col < c.Cols(); col++ {
		c.Set(on, col, brightness, brightness, 0)
	}
}

func flashingAll(c *Canvas, step int, brightness float64, _ Params) {
	if posMod(step/5, 2) == 0 {
		c.Fill(brightness, brightness, brightness)
	}
}

func strobeRandom(c *Canvas, _ int, brightness float64, _ Params) {
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			if c.Rand().Float64() > 0.5 {
				c.Set(row, col, brightness, brightness, brightness)
			}
		}
	}
}

func randomPulses(c *Canvas, step int, brightness float64, _ Params) {
	chance := 0.05 + 0.05*math.Sin(float64(step)*0.2)
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			if c.Rand().Float64() < chance {
				c.Set(row, col, brightness, 0, brightness)
			}
		}
	}
}

func spiral(c *Canvas, step int, brightness float64, _ Params) {
	pos := posMod(step, c.Rows()*c.Cols())
	c.Set(pos/c.Cols(), pos%c.Cols(), brightness, 0, brightness)
}

func bouncingDot(c *Canvas, step int, brightness float64, _ Params) {
	c.Set(posMod(step, c.Rows()), bounce(step, c.Cols()), brightness, brightness, 0)
}

func snake(c *Canvas, step int, brightness float64, _ Params) {
	const length = 5
	lap := c.Cols() + length
	pos := posMod(step, lap)
	row := posMod(step/lap, c.Rows())
	for offset := 0; offset < length; offset++ {
		level := brightness * (1 - float64(offset)/length)
		c.Set(row, pos-offset, 0, level, 0)
	}
}

func cylon(c *Canvas, step int, brightness float64, _ Params) {
	pos := bounce(step, c.Cols())
	for row := 0; row < c.Rows(); row++ {
		c.Set(row, pos, brightness, 0, 0)
	}
}

var bandHue = map[Band]float64{
	Delta: 270,
	Theta: 220,
	Alpha: 140,
	Beta:  35,
	Gamma: 0,
}

// brainwave pulses the whole strip near the band's frequency, nudged toward the track tempo.
func brainwave(c *Canvas, step int, brightness float64, p Params) {
	f := 0.7*p.BandHz + 0.3*p.TempoBPM/60
	level := 0.5 + 0.5*math.Sin(2*math.Pi*f*p.Seconds(step))
	sat := 1.0
	if p.Band == Gamma {
		sat = 0.1
	}
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			r, g, b := HSV(bandHue[p.Band]+float64(col)*2, sat, level*brightness)
			c.Set(row, col, r, g, b)
		}
	}
}

// tempoPulse is a Gaussian envelope centred on every beat.
func tempoPulse(c *Canvas, step int, brightness float64, p Params) {
	const sigma = 0.08
	phase := util.Frac(p.Seconds(step) * p.TempoBPM / 60)
	d := math.Min(phase, 1-phase)
	env := math.Exp(-d * d / (2 * sigma * sigma))
	c.Fill(HSV(320+20*env, 0.8, env*brightness))
}

// moodTemperature runs cool at low mood and warm at high mood, breathing slowly.
func moodTemperature(c *Canvas, step int, brightness float64, p Params) {
	breath := 0.75 + 0.25*math.Sin(2*math.Pi*0.25*p.Seconds(step))
	for col := 0; col < c.Cols(); col++ {
		t := p.MoodIntensity + (float64(col)/float64(c.Cols())-0.5)*0.2
		r, g, b := Temperature(t)
		k := breath * brightness
		for row := 0; row < c.Rows(); row++ {
			c.Set(row, col, r*k, g*k, b*k)
		}
	}
}

// photicStrobe is strictly on or off. Flashes last about 50ms, so the duty
// cycle grows with the target frequency up to a square wave.
func photicStrobe(c *Canvas, step int, _ float64, p Params) {
	duty := util.Clamp(p.BandHz*0.05, 0.05, 0.5)
	if util.Frac(p.Seconds(step)*p.BandHz) < duty {
		c.Fill(1, 1, 1)
	}
}

func oceanCalm(c *Canvas, step int, brightness float64, _ Params) {
	v := (100 + 80*math.Sin(float64(step)*0.2)) / 255
	c.Fill(0, 0, v*brightness)
}

func forestFocus(c *Canvas, step int, brightness float64, _ Params) {
	v := (100 + 100*math.Sin(float64(step)*0.15)) / 255
	c.Fill(0, v*brightness, 0)
}

func sunriseUplift(c *Canvas, step int, brightness float64, _ Params) {
	const frames = 60
	t := float64(posMod(step, frames)) / frames
	c.Fill(t*brightness, t/2*brightness, 0)
}

func joyRide(c *Canvas, step int, brightness float64, _ Params) {
	const frames = 60
	hue := float64(posMod(step, frames)) / frames * 360
	for row := 0; row < c.Rows(); row++ {
		for col := 0; col < c.Cols(); col++ {
			r, g, b := HSV(hue+float64(col)*15+float64(row)*10, 1, brightness)
			c.Set(row, col, r, g, b)
		}
	}
}

func momentum(c *Canvas, step int, brightness float64, _ Params) {
	if posMod(step, 2) == 0 {
		c.Fill(brightness, 0, 0)
	}
}

func powerNap(c *Canvas, step int, brightness float64, _ Params) {
	v := (80 + 40*math.Sin(float64(step)*0.1)) / 255 * brightness
	c.Fill(v, v, v)
}

func coolDown(c *Canvas, step int, brightness float64, _ Params) {
	v := (150 + 80*math.Sin(float64(step)*0.2)) / 255
	c.Fill(0, 0, v*brightness)
}

func balanceMode(c *Canvas, step int, brightness float64, _ Params) {
	s := float64(step) * 0.2
	r := (100 + 50*math.Sin(s)) / 255
	g := (100 + 50*math.Sin(s+2)) / 255
	b := (100 + 50*math.Sin(s+4)) / 255
	c.Fill(r*brightness, g*brightness, b*brightness)
}
