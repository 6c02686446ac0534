package show

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mager/chromamind/analyzer"
	"github.com/mager/chromamind/catalog"
	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/config"
	"github.com/mager/chromamind/logger"
	"github.com/mager/chromamind/stream"
	"github.com/mager/chromamind/synth"
)

type recordingConn struct {
	mu   sync.Mutex
	msgs []string
}

func (c *recordingConn) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *recordingConn) Close() error { return nil }

type recordingDialer struct{ conn *recordingConn }

func (d recordingDialer) Dial(context.Context) (stream.Conn, error) { return d.conn, nil }

func testConfig() config.Config {
	return config.Config{
		WindowSize:   2048,
		HopLength:    441,
		PatternEpoch: 30,
		MoodWindow:   30,
		StepPeriod:   720,
		Seed:         1,
	}
}

func newManager(t *testing.T) (*Manager, *recordingConn) {
	t.Helper()
	log, _ := logger.NewTestLogger()
	conn := &recordingConn{}
	sched, err := stream.NewScheduler(recordingDialer{conn}, stream.DefaultOptions(), log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sched.Stop)
	store, _ := catalog.ProvideStore(nil, log)
	m, err := ProvideManager(testConfig(), chromamind.DefaultProfile(), sched, store, log)
	if err != nil {
		t.Fatalf("ProvideManager() = %v", err)
	}
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m, conn
}

func TestLoadPCM(t *testing.T) {
	m, _ := newManager(t)
	if _, err := m.FrameAt(0, chromamind.PayloadMatrix); !errors.Is(err, ErrNoTimeline) {
		t.Errorf("FrameAt() before load = %v, want ErrNoTimeline", err)
	}
	if got := m.Status().State; got != Idle {
		t.Errorf("State = %s, want idle", got)
	}

	snap, err := m.LoadPCM(context.Background(), synth.BeatSweep(22050, 4, 120, 220, 880), Track{Name: "sweep"})
	if err != nil {
		t.Fatalf("LoadPCM() = %v", err)
	}
	if snap.Matrix.Len() != 200 || snap.Modes.Len() != 200 {
		t.Errorf("frames = %d/%d, want 200/200", snap.Matrix.Len(), snap.Modes.Len())
	}
	if snap.Metadata.Name != "sweep" || snap.Metadata.TotalFrames != 200 {
		t.Errorf("metadata = %+v", snap.Metadata)
	}

	st := m.Status()
	if st.State != Ready || st.Timeline == nil || st.Timeline.DurationMs != 4000 {
		t.Errorf("Status() = %+v", st)
	}

	f, err := m.FrameAt(1010, chromamind.PayloadMatrix)
	if err != nil {
		t.Fatal(err)
	}
	if f.TimeMs != 1000 || f.Leds == nil {
		t.Errorf("FrameAt(1010) = frame at %d", f.TimeMs)
	}
	f, err = m.FrameAt(-50, chromamind.PayloadMode)
	if err != nil {
		t.Fatal(err)
	}
	if f.TimeMs != 0 || f.Mode == nil {
		t.Errorf("FrameAt(-50) = frame at %d", f.TimeMs)
	}
}

func TestFailedLoadKeepsPreviousSnapshot(t *testing.T) {
	m, _ := newManager(t)
	first, err := m.LoadPCM(context.Background(), synth.BeatSweep(22050, 1, 120, 220, 440), Track{Name: "first"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.LoadPCM(context.Background(), chromamind.PCM{SampleRate: 22050}, Track{Name: "empty"})
	if !errors.Is(err, analyzer.ErrAnalysis) {
		t.Fatalf("LoadPCM(empty) = %v, want ErrAnalysis", err)
	}
	if m.Snapshot() != first {
		t.Error("failed load replaced the published snapshot")
	}
	if st := m.Status(); st.State != AnalysisFailed || st.Error == "" {
		t.Errorf("Status() = %+v, want analysis_failed with error", st)
	}
}

func TestExportRoundTrip(t *testing.T) {
	m, _ := newManager(t)
	snap, err := m.LoadPCM(context.Background(), synth.BeatSweep(22050, 1, 120, 220, 440), Track{Name: "rt", Description: "short"})
	if err != nil {
		t.Fatal(err)
	}

	for _, kind := range []chromamind.PayloadKind{chromamind.PayloadMatrix, chromamind.PayloadMode} {
		var buf bytes.Buffer
		if err := m.Export(&buf, kind); err != nil {
			t.Fatalf("Export(%s) = %v", kind, err)
		}
		doc, err := chromamind.Load(&buf)
		if err != nil {
			t.Fatalf("Load(%s) = %v", kind, err)
		}
		tl, err := doc.Timeline()
		if err != nil {
			t.Fatal(err)
		}
		want, _ := snap.Timeline(kind)
		if tl.Kind != kind || tl.Len() != want.Len() || doc.Metadata.Description != "short" {
			t.Errorf("%s export: kind=%s len=%d", kind, tl.Kind, tl.Len())
		}
	}
}

func TestStartStreamCompact(t *testing.T) {
	m, conn := newManager(t)
	if _, err := m.StartStream(context.Background(), stream.Compact); !errors.Is(err, ErrNoTimeline) {
		t.Errorf("StartStream() before load = %v", err)
	}
	if _, err := m.LoadPCM(context.Background(), synth.BeatSweep(22050, 0.2, 120, 220, 440), Track{Name: "tiny"}); err != nil {
		t.Fatal(err)
	}

	st, err := m.StartStream(context.Background(), stream.Compact)
	if err != nil {
		t.Fatalf("StartStream() = %v", err)
	}
	if err := st.Wait(); err != nil {
		t.Fatal(err)
	}

	conn.mu.Lock()
	n := len(conn.msgs)
	conn.mu.Unlock()
	if n != 10 {
		t.Errorf("device got %d descriptors, want 10", n)
	}
	if s := m.Status().Stream; s == nil || s.Status != stream.Completed || s.Sent != 10 {
		t.Errorf("stream status = %+v", s)
	}
	if _, err := m.StartStream(context.Background(), "morse"); err == nil {
		t.Error("StartStream() accepted an unknown mode")
	}
}

func TestLoadDocument(t *testing.T) {
	m, conn := newManager(t)
	tl := &chromamind.Timeline{Kind: chromamind.PayloadMode, DurationMs: 40, TempoBPM: 100}
	for i := 0; i < 2; i++ {
		tl.Frames = append(tl.Frames, chromamind.Frame{
			TimeMs: int64(i * 20),
			Mode:   &chromamind.ModeDescriptor{ModeID: 8, BlinkIntervalMs: 20, Brightness: 4},
		})
	}
	doc := chromamind.NewDocument(tl, "saved", "", time.Now())

	if _, err := m.LoadDocument(doc, "saved.json"); err != nil {
		t.Fatalf("LoadDocument() = %v", err)
	}
	if _, err := m.FrameAt(0, chromamind.PayloadMatrix); !errors.Is(err, ErrNoTimeline) {
		t.Errorf("FrameAt(matrix) = %v, want ErrNoTimeline", err)
	}
	if _, err := m.StartStream(context.Background(), stream.Bulk); !errors.Is(err, ErrNoTimeline) {
		t.Errorf("StartStream(bulk) = %v, want ErrNoTimeline", err)
	}

	st, err := m.StartStream(context.Background(), stream.Compact)
	if err != nil {
		t.Fatal(err)
	}
	st.Wait()
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.msgs) != 2 || conn.msgs[0] != "8;20;4" {
		t.Errorf("device got %v", conn.msgs)
	}
}

func TestDecodeFailureWaitsForLoadInFlight(t *testing.T) {
	m, _ := newManager(t)

	// Stand in for a load that is still analyzing.
	m.loadMu.Lock()
	m.setState(Analyzing, nil)

	failed := make(chan error, 1)
	go func() {
		_, err := m.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), Track{Name: "missing"})
		failed <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if got := m.Status().State; got != Analyzing {
		t.Errorf("State during another load = %s, want analyzing", got)
	}

	m.setState(Ready, nil)
	m.loadMu.Unlock()

	if err := <-failed; !errors.Is(err, analyzer.ErrAnalysis) {
		t.Fatalf("LoadFile() = %v, want ErrAnalysis", err)
	}
	if st := m.Status(); st.State != AnalysisFailed || st.Error == "" {
		t.Errorf("Status() = %+v, want analysis_failed with error", st)
	}
}
