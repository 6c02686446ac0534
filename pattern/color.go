package pattern

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mager/chromamind/util"
)

// HSV converts hue in degrees (any value, wrapped), saturation and value in
// [0,1] to RGB levels in [0,1].
func HSV(h, s, v float64) (r, g, b float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := colorful.Hsv(h, util.Clamp(s, 0, 1), util.Clamp(v, 0, 1)).Clamped()
	return c.R, c.G, c.B
}

var (
	coolWhite = colorful.Color{R: 0.10, G: 0.45, B: 1.00}
	warmAmber = colorful.Color{R: 1.00, G: 0.35, B: 0.08}
)

// Temperature blends from a cool blue at 0 to a warm amber at 1.
func Temperature(t float64) (r, g, b float64) {
	c := coolWhite.BlendHcl(warmAmber, util.Clamp(t, 0, 1)).Clamped()
	return c.R, c.G, c.B
}

// posMod is a modulus that is never negative.
func posMod(a, n int) int {
	if n <= 0 {
		return 0
	}
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

// bounce maps step onto a back-and-forth sweep over n positions.
func bounce(step, n int) int {
	if n < 2 {
		return 0
	}
	period := 2 * (n - 1)
	pos := posMod(step, period)
	if pos >= n {
		pos = period - pos
	}
	return pos
}
