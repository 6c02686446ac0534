package chromamind

import (
	"bytes"
	"reflect"
	"testing"
	"time"
)

func testTimeline() *Timeline {
	p := Profile{Rows: 2, Cols: 3, MinA: 5, MaxA: 20}
	t := &Timeline{Kind: PayloadMatrix, DurationMs: 60, TempoBPM: 121.5}
	for i := 0; i < 3; i++ {
		m := NewMatrix(p)
		m[i%2][i] = LedPixel{R: uint8(10 * i), G: 200, B: 7, A: uint8(5 + i)}
		t.Frames = append(t.Frames, Frame{TimeMs: int64(i * 20), Leds: m})
	}
	return t
}

func TestTimelineAt(t *testing.T) {
	tl := testTimeline()

	tests := []struct {
		pos  int64
		want int64
	}{
		{-5, 0},
		{0, 0},
		{19, 0},
		{20, 20},
		{39, 20},
		{40, 40},
		{10000, 40},
	}
	for _, tt := range tests {
		f, ok := tl.At(tt.pos)
		if !ok {
			t.Fatalf("At(%d) found nothing", tt.pos)
		}
		if f.TimeMs != tt.want {
			t.Errorf("At(%d) = frame at %d, want %d", tt.pos, f.TimeMs, tt.want)
		}
	}

	var empty Timeline
	if _, ok := empty.At(0); ok {
		t.Error("At on empty timeline reported a frame")
	}
}

func TestTimelineValidate(t *testing.T) {
	tl := testTimeline()
	if err := tl.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	tl.Frames[2].TimeMs = 10
	if err := tl.Validate(); err == nil {
		t.Error("Validate() accepted decreasing timestamps")
	}

	tl = testTimeline()
	tl.Frames[1].Leds = NewMatrix(Profile{Rows: 1, Cols: 3, MinA: 1, MaxA: 1})
	if err := tl.Validate(); err == nil {
		t.Error("Validate() accepted mixed matrix dimensions")
	}

	tl = testTimeline()
	tl.Frames[0].Mode = &ModeDescriptor{ModeID: 1}
	if err := tl.Validate(); err == nil {
		t.Error("Validate() accepted a mixed payload frame")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	tl := testTimeline()
	generated := time.Date(2026, 10, 16, 12, 30, 0, 0, time.UTC)
	doc := NewDocument(tl, "sunrise", "test track", generated)

	var buf bytes.Buffer
	if err := Save(&buf, doc); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, doc)
	}

	back, err := got.Timeline()
	if err != nil {
		t.Fatalf("Timeline() = %v", err)
	}
	if !reflect.DeepEqual(back, tl) {
		t.Errorf("timeline mismatch:\n got %+v\nwant %+v", back, tl)
	}
}

func TestDocumentRoundTripModes(t *testing.T) {
	tl := &Timeline{Kind: PayloadMode, DurationMs: 40, TempoBPM: 90}
	for i := 0; i < 2; i++ {
		tl.Frames = append(tl.Frames, Frame{TimeMs: int64(i * 20), Mode: &ModeDescriptor{ModeID: 8 - i, BlinkIntervalMs: 50, Brightness: 3}})
	}
	doc := NewDocument(tl, "modes", "", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	var buf bytes.Buffer
	if err := Save(&buf, doc); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	back, err := got.Timeline()
	if err != nil {
		t.Fatalf("Timeline() = %v", err)
	}
	if !reflect.DeepEqual(back, tl) {
		t.Errorf("timeline mismatch:\n got %+v\nwant %+v", back, tl)
	}
}

func TestLoadRejectsFrameCountMismatch(t *testing.T) {
	in := `{"metadata":{"total_frames":2},"frames":[{"time":0,"leds":[[{"r":0,"g":0,"b":0,"a":0}]]}]}`
	if _, err := Load(bytes.NewBufferString(in)); err == nil {
		t.Error("Load() accepted a document with the wrong frame count")
	}
}

func TestModeDescriptorString(t *testing.T) {
	d := ModeDescriptor{ModeID: 3, BlinkIntervalMs: 40, Brightness: 12}
	if got := d.String(); got != "3;40;12" {
		t.Errorf("String() = %q, want %q", got, "3;40;12")
	}
}

func TestProfileValidate(t *testing.T) {
	if err := DefaultProfile().Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
	if err := (Profile{Rows: 0, Cols: 16, MinA: 5, MaxA: 20}).Validate(); err == nil {
		t.Error("zero rows accepted")
	}
	if err := (Profile{Rows: 2, Cols: 16, MinA: 30, MaxA: 20}).Validate(); err == nil {
		t.Error("MinA > MaxA accepted")
	}
}

func TestPCMDurationRoundsUp(t *testing.T) {
	tests := []struct {
		samples, rate int
		want          int64
	}{
		{8000, 8000, 1000},
		{513, 44100, 12},
		{1, 44100, 1},
		{0, 44100, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		p := PCM{Samples: make([]float64, tt.samples), SampleRate: tt.rate}
		if got := p.DurationMs(); got != tt.want {
			t.Errorf("DurationMs(%d @ %d) = %d, want %d", tt.samples, tt.rate, got, tt.want)
		}
	}
}
