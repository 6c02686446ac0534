package preview

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/mager/chromamind/chromamind"
)

func TestMatrixShape(t *testing.T) {
	p := chromamind.DefaultProfile()
	m := chromamind.NewMatrix(p)
	m[0][0] = chromamind.LedPixel{R: 255, A: 20}
	m[1][15] = chromamind.LedPixel{B: 128, A: 5}

	out := Matrix(m, p.MaxA)
	if h := lipgloss.Height(out); h != p.Rows {
		t.Errorf("height = %d, want %d", h, p.Rows)
	}
	if w := lipgloss.Width(out); w != p.Cols*2 {
		t.Errorf("width = %d, want %d", w, p.Cols*2)
	}
	if strings.Count(out, litCell) != 2 {
		t.Errorf("want 2 lit cells in %q", out)
	}
}

func TestColor(t *testing.T) {
	if got := Color(chromamind.LedPixel{R: 255, A: 20}, 20); got != "#ff0000" {
		t.Errorf("full red = %s, want #ff0000", got)
	}
	dim := Color(chromamind.LedPixel{R: 255, A: 0}, 20)
	if dim == "#ff0000" || dim == "#000000" {
		t.Errorf("A=0 color = %s, want a dimmed red", dim)
	}
}

func TestFrameMode(t *testing.T) {
	f := chromamind.Frame{TimeMs: 40, Mode: &chromamind.ModeDescriptor{ModeID: 3, BlinkIntervalMs: 30, Brightness: 12}}
	out := Frame(f, 20)
	for _, want := range []string{"t=40ms", "mode 3", "blink 30ms", "brightness 12/20"} {
		if !strings.Contains(out, want) {
			t.Errorf("Frame() = %q, missing %q", out, want)
		}
	}
}
