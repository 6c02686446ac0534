// Package preview draws frames as colored terminal cells.
package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mager/chromamind/chromamind"
)

const (
	litCell = "██"
	offCell = "··"
)

var (
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#333"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	modeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff")).Background(lipgloss.Color("#444")).Padding(0, 1)
)

// Color returns the display color of a pixel, dimmed by its amplification
// relative to maxA.
func Color(px chromamind.LedPixel, maxA uint8) lipgloss.Color {
	k := 1.0
	if maxA > 0 {
		k = 0.35 + 0.65*float64(px.A)/float64(maxA)
	}
	c := colorful.Color{
		R: float64(px.R) / 255 * k,
		G: float64(px.G) / 255 * k,
		B: float64(px.B) / 255 * k,
	}.Clamped()
	return lipgloss.Color(c.Hex())
}

// Matrix renders one grid, one text line per row.
func Matrix(m chromamind.LedMatrix, maxA uint8) string {
	lines := make([]string, len(m))
	for r, row := range m {
		var b strings.Builder
		for _, px := range row {
			if px.Off() {
				b.WriteString(offStyle.Render(offCell))
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(Color(px, maxA)).Render(litCell))
		}
		lines[r] = b.String()
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Frame renders a frame of either payload kind under a timestamp header.
func Frame(f chromamind.Frame, maxA uint8) string {
	header := headerStyle.Render(fmt.Sprintf("t=%dms", f.TimeMs))
	if f.Mode != nil {
		return lipgloss.JoinHorizontal(lipgloss.Center, header, " ", modeStyle.Render(Mode(*f.Mode)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, Matrix(f.Leds, maxA))
}

// Mode describes a descriptor in words.
func Mode(d chromamind.ModeDescriptor) string {
	return fmt.Sprintf("mode %d  blink %dms  brightness %d/%d", d.ModeID, d.BlinkIntervalMs, d.Brightness, chromamind.MaxModeBrightness)
}
