// Package show owns the currently loaded track: its analysis, its timelines
// and the stream playing them to the device.
package show

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mager/chromamind/analyzer"
	"github.com/mager/chromamind/catalog"
	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/composer"
	"github.com/mager/chromamind/config"
	"github.com/mager/chromamind/decode"
	"github.com/mager/chromamind/pattern"
	"github.com/mager/chromamind/reducer"
	"github.com/mager/chromamind/stream"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoTimeline is returned before any track has been loaded.
var ErrNoTimeline = errors.New("no timeline loaded")

// State is the load state of the manager.
type State string

const (
	Idle           State = "idle"
	Analyzing      State = "analyzing"
	Ready          State = "ready"
	AnalysisFailed State = "analysis_failed"
)

// Track names the audio being loaded.
type Track struct {
	Name        string
	Description string
	Source      string
}

// Snapshot is everything built from one load. It is never mutated after it
// has been published.
type Snapshot struct {
	Metadata  chromamind.Metadata
	Source    string
	CatalogID int64
	Analysis  *chromamind.Analysis
	Matrix    *chromamind.Timeline
	Modes     *chromamind.Timeline
}

// Timeline returns the timeline of the given payload kind.
func (s *Snapshot) Timeline(kind chromamind.PayloadKind) (*chromamind.Timeline, error) {
	switch kind {
	case chromamind.PayloadMatrix, "":
		return s.Matrix, nil
	case chromamind.PayloadMode:
		return s.Modes, nil
	default:
		return nil, errors.Errorf("unknown payload kind %q", kind)
	}
}

type StreamStatus struct {
	ID      int64         `json:"id"`
	Mode    stream.Mode   `json:"mode"`
	Status  stream.Status `json:"status"`
	Units   int           `json:"units"`
	Sent    int           `json:"sent"`
	Skipped int           `json:"skipped"`
	Error   string        `json:"error,omitempty"`
}

type Status struct {
	State    State                `json:"state"`
	Error    string               `json:"error,omitempty"`
	Timeline *chromamind.Metadata `json:"timeline,omitempty"`
	Stream   *StreamStatus        `json:"stream,omitempty"`
}

// Manager runs loads one at a time and publishes their results atomically.
// Readers never block on a load in progress.
type Manager struct {
	analyzer *analyzer.Analyzer
	composer *composer.Composer
	profile  chromamind.Profile
	sched    *stream.Scheduler
	store    *catalog.Store
	log      *zap.SugaredLogger
	now      func() time.Time

	loadMu sync.Mutex
	snap   atomic.Pointer[Snapshot]

	mu      sync.Mutex
	state   State
	lastErr error
}

// NewManager wires a Manager from its parts.
func NewManager(
	a *analyzer.Analyzer,
	c *composer.Composer,
	profile chromamind.Profile,
	sched *stream.Scheduler,
	store *catalog.Store,
	log *zap.SugaredLogger,
) *Manager {
	return &Manager{
		analyzer: a,
		composer: c,
		profile:  profile,
		sched:    sched,
		store:    store,
		log:      log,
		now:      time.Now,
		state:    Idle,
	}
}

// ProvideManager builds the analyzer, pattern library and composer from configuration.
func ProvideManager(
	cfg config.Config,
	profile chromamind.Profile,
	sched *stream.Scheduler,
	store *catalog.Store,
	log *zap.SugaredLogger,
) (*Manager, error) {
	aopts := analyzer.DefaultOptions()
	aopts.WindowSize = cfg.WindowSize
	aopts.HopLength = cfg.HopLength
	aopts.Bands = profile.Rows
	a, err := analyzer.New(aopts, log)
	if err != nil {
		return nil, err
	}

	lib, err := pattern.Default(profile, cfg.Seed)
	if err != nil {
		return nil, err
	}
	c, err := composer.New(lib, composer.Options{
		PatternEpoch: cfg.PatternEpoch,
		MoodWindow:   cfg.MoodWindow,
		StepPeriod:   cfg.StepPeriod,
		Seed:         cfg.Seed,
		Playlist:     cfg.Playlist,
	}, log)
	if err != nil {
		return nil, err
	}

	return NewManager(a, c, profile, sched, store, log), nil
}

// LoadFile decodes an audio file and loads it.
func (m *Manager) LoadFile(ctx context.Context, path string, t Track) (*Snapshot, error) {
	if t.Source == "" {
		t.Source = path
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.setState(Analyzing, nil)
	pcm, err := decode.File(path)
	if err != nil {
		m.setState(AnalysisFailed, err)
		m.log.Errorw("Failed to decode audio", "path", path, "error", err)
		return nil, errors.Wrap(analyzer.ErrAnalysis, err.Error())
	}
	return m.load(ctx, pcm, t)
}

// LoadPCM analyzes and composes a track and publishes the result. On failure
// the previous snapshot stays published.
func (m *Manager) LoadPCM(ctx context.Context, pcm chromamind.PCM, t Track) (*Snapshot, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.setState(Analyzing, nil)
	return m.load(ctx, pcm, t)
}

// load requires loadMu.
func (m *Manager) load(ctx context.Context, pcm chromamind.PCM, t Track) (*Snapshot, error) {
	snap, err := m.build(ctx, pcm, t)
	if err != nil {
		m.setState(AnalysisFailed, err)
		m.log.Errorw("Failed to load track", "name", t.Name, "error", err)
		return nil, err
	}

	m.snap.Store(snap)
	m.setState(Ready, nil)
	m.log.Infow("Track loaded",
		"name", t.Name,
		"frames", snap.Matrix.Len(),
		"tempo_bpm", snap.Metadata.TempoBPM,
		"catalog_id", snap.CatalogID,
	)
	return snap, nil
}

func (m *Manager) build(ctx context.Context, pcm chromamind.PCM, t Track) (*Snapshot, error) {
	a, err := m.analyzer.Analyze(ctx, pcm)
	if err != nil {
		return nil, err
	}
	matrix, err := m.composer.Compose(ctx, a)
	if err != nil {
		return nil, err
	}
	modes, err := reducer.Timeline(matrix, a, m.profile)
	if err != nil {
		return nil, err
	}

	doc := chromamind.NewDocument(matrix, t.Name, t.Description, m.now())
	snap := &Snapshot{
		Metadata: doc.Metadata,
		Source:   t.Source,
		Analysis: a,
		Matrix:   matrix,
		Modes:    modes,
	}
	if m.store != nil {
		id, err := m.store.Record(ctx, doc.Metadata, t.Source)
		if err != nil {
			m.log.Warnw("Timeline not catalogued", "name", t.Name, "error", err)
		}
		snap.CatalogID = id
	}
	return snap, nil
}

// LoadDocument publishes a saved timeline. Only the payload kind the document
// carries is available afterwards.
func (m *Manager) LoadDocument(doc chromamind.Document, source string) (*Snapshot, error) {
	tl, err := doc.Timeline()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Metadata: doc.Metadata, Source: source}
	if tl.Kind == chromamind.PayloadMode {
		snap.Modes = tl
	} else {
		snap.Matrix = tl
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.snap.Store(snap)
	m.setState(Ready, nil)
	m.log.Infow("Timeline document loaded", "name", doc.Metadata.Name, "kind", tl.Kind, "frames", tl.Len())
	return snap, nil
}

// Snapshot returns the published snapshot, or nil before the first load.
func (m *Manager) Snapshot() *Snapshot {
	return m.snap.Load()
}

// FrameAt returns the frame showing at the playback position.
func (m *Manager) FrameAt(positionMs int64, kind chromamind.PayloadKind) (chromamind.Frame, error) {
	snap := m.snap.Load()
	if snap == nil {
		return chromamind.Frame{}, ErrNoTimeline
	}
	tl, err := snap.Timeline(kind)
	if err != nil {
		return chromamind.Frame{}, err
	}
	if tl == nil {
		return chromamind.Frame{}, errors.Wrapf(ErrNoTimeline, "no %s timeline", kind)
	}
	f, ok := tl.At(positionMs)
	if !ok {
		return chromamind.Frame{}, ErrNoTimeline
	}
	return f, nil
}

// Export writes the published timeline as a document.
func (m *Manager) Export(w io.Writer, kind chromamind.PayloadKind) error {
	snap := m.snap.Load()
	if snap == nil {
		return ErrNoTimeline
	}
	tl, err := snap.Timeline(kind)
	if err != nil {
		return err
	}
	if tl == nil {
		return errors.Wrapf(ErrNoTimeline, "no %s timeline", kind)
	}
	doc := chromamind.NewDocument(tl, snap.Metadata.Name, snap.Metadata.Description, snap.Metadata.GeneratedAt)
	return chromamind.Save(w, doc)
}

// StartStream plays the published timeline to the device, replacing any
// stream already running.
func (m *Manager) StartStream(ctx context.Context, mode stream.Mode) (*stream.Stream, error) {
	snap := m.snap.Load()
	if snap == nil {
		return nil, ErrNoTimeline
	}
	switch mode {
	case stream.Bulk:
		if snap.Matrix == nil {
			return nil, errors.Wrap(ErrNoTimeline, "no matrix timeline for bulk streaming")
		}
		return m.sched.StartBulk(ctx, snap.Matrix)
	case stream.Compact:
		if snap.Modes == nil {
			return nil, errors.Wrap(ErrNoTimeline, "no mode timeline for compact streaming")
		}
		return m.sched.StartCompact(ctx, snap.Modes)
	default:
		return nil, errors.Errorf("unknown stream mode %q", mode)
	}
}

// StopStream cancels the running stream and waits for it to finish.
func (m *Manager) StopStream() {
	m.sched.Stop()
}

// Status reports the load state and the most recent stream.
func (m *Manager) Status() Status {
	m.mu.Lock()
	s := Status{State: m.state}
	if m.lastErr != nil {
		s.Error = m.lastErr.Error()
	}
	m.mu.Unlock()

	if snap := m.snap.Load(); snap != nil {
		md := snap.Metadata
		s.Timeline = &md
	}
	if st := m.sched.Active(); st != nil {
		ss := &StreamStatus{
			ID:      st.ID,
			Mode:    st.Mode,
			Status:  st.Status(),
			Units:   st.Units,
			Sent:    st.Sent(),
			Skipped: st.Skipped(),
		}
		if err := st.Err(); err != nil {
			ss.Error = err.Error()
		}
		s.Stream = ss
	}
	return s
}

func (m *Manager) setState(s State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.lastErr = s, err
}

var Options = ProvideManager
