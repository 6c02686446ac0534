package timeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/mager/chromamind/catalog"
	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/config"
	"github.com/mager/chromamind/logger"
	"github.com/mager/chromamind/show"
	"github.com/mager/chromamind/stream"
	"github.com/mager/chromamind/synth"
	"go.uber.org/zap"
)

type nopDialer struct{}

func (nopDialer) Dial(context.Context) (stream.Conn, error) { return nil, context.Canceled }

func newManager(t *testing.T) (*show.Manager, *zap.SugaredLogger) {
	t.Helper()
	log, _ := logger.NewTestLogger()
	store, _ := catalog.ProvideStore(nil, log)
	sched, _ := stream.NewScheduler(nopDialer{}, stream.DefaultOptions(), log)
	cfg := config.Config{WindowSize: 2048, HopLength: 441, PatternEpoch: 30, MoodWindow: 30, StepPeriod: 720, Seed: 1}
	m, err := show.ProvideManager(cfg, chromamind.DefaultProfile(), sched, store, log)
	if err != nil {
		t.Fatal(err)
	}
	return m, log
}

func loaded(t *testing.T) (*show.Manager, *zap.SugaredLogger) {
	t.Helper()
	m, log := newManager(t)
	pcm := synth.BeatSweep(22050, 2, 120, 220, 880)
	if _, err := m.LoadPCM(context.Background(), pcm, show.Track{Name: "sweep"}); err != nil {
		t.Fatal(err)
	}
	return m, log
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func writeWav(t *testing.T, pcm chromamind.PCM) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pos := 0
	s := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(pcm.Samples) {
			return 0, false
		}
		n := 0
		for ; n < len(samples) && pos < len(pcm.Samples); n++ {
			samples[n] = [2]float64{pcm.Samples[pos], pcm.Samples[pos]}
			pos++
		}
		return n, true
	})
	format := beep.Format{SampleRate: beep.SampleRate(pcm.SampleRate), NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, s, format); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadHandler(t *testing.T) {
	m, log := newManager(t)
	h := NewLoadHandler(log, m)
	path := writeWav(t, synth.BeatSweep(22050, 1, 120, 220, 880))

	rr := serve(h, http.MethodPost, "/timeline", `{"path":"`+path+`","name":"upload"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp TimelineResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Metadata.Name != "upload" || resp.Metadata.TotalFrames != 50 || resp.Source != path {
		t.Errorf("response = %+v", resp)
	}
}

func TestLoadHandlerErrors(t *testing.T) {
	m, log := newManager(t)
	h := NewLoadHandler(log, m)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"path":`, http.StatusBadRequest},
		{"no path", `{"name":"x"}`, http.StatusBadRequest},
		{"missing file", `{"path":"/nonexistent/track.wav"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := serve(h, http.MethodPost, "/timeline", tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestGetHandler(t *testing.T) {
	m, log := newManager(t)
	h := NewGetHandler(log, m)
	if rr := serve(h, http.MethodGet, "/timeline", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status before load = %d, want 404", rr.Code)
	}

	m, log = loaded(t)
	rr := serve(NewGetHandler(log, m), http.MethodGet, "/timeline", "")
	var resp TimelineResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if rr.Code != http.StatusOK || resp.Metadata.TotalFrames != 100 || resp.Metadata.DurationMs != 2000 {
		t.Errorf("status = %d, response = %+v", rr.Code, resp)
	}
}

func TestFrameHandler(t *testing.T) {
	m, log := loaded(t)
	h := NewFrameHandler(log, m)

	rr := serve(h, http.MethodGet, "/timeline/frame?position_ms=515", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var f chromamind.Frame
	json.Unmarshal(rr.Body.Bytes(), &f)
	if f.TimeMs != 500 || len(f.Leds) != 2 || f.Mode != nil {
		t.Errorf("frame = %+v", f)
	}

	rr = serve(h, http.MethodGet, "/timeline/frame?position_ms=515&kind=mode", "")
	f = chromamind.Frame{}
	json.Unmarshal(rr.Body.Bytes(), &f)
	if f.Mode == nil || f.Mode.ModeID < 1 || f.Mode.ModeID > 8 {
		t.Errorf("mode frame = %+v", f)
	}

	if rr := serve(h, http.MethodGet, "/timeline/frame?position_ms=soon", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad position status = %d, want 400", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/timeline/frame?position_ms=0&kind=hologram", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad kind status = %d, want 400", rr.Code)
	}
}

func TestExportHandler(t *testing.T) {
	m, log := loaded(t)
	rr := serve(NewExportHandler(log, m), http.MethodGet, "/timeline/export?kind=mode", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "sweep.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	doc, err := chromamind.Load(rr.Body)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if doc.Metadata.TotalFrames != 100 || doc.Frames[0].Mode == nil {
		t.Errorf("exported %d frames", doc.Metadata.TotalFrames)
	}
}
