package stream

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mager/chromamind/chromamind"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrConnection means the device connection could not be established.
	ErrConnection = errors.New("device connection failed")
	// ErrConnectionLost marks a send failure that leaves the connection unusable.
	ErrConnectionLost = errors.New("device connection lost")
)

// Conn is one persistent device connection.
type Conn interface {
	// Send writes one text message. Errors wrapping ErrConnectionLost are fatal
	// to the stream; anything else only loses that message.
	Send(msg string) error
	Close() error
}

// Dialer opens device connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Mode is the delivery mode of a stream.
type Mode string

const (
	Bulk    Mode = "bulk"
	Compact Mode = "compact"
)

// Status is the lifecycle state of a stream.
type Status string

const (
	Running   Status = "running"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
	Failed    Status = "failed"
)

// Options tunes pacing.
type Options struct {
	// ChunkSize is the number of frames per bulk message.
	ChunkSize int
	// LatencyMargin shortens each bulk pause so the device never runs dry.
	LatencyMargin float64
	// MinGap is the shortest pause between compact messages.
	MinGap time.Duration
	// SafetyBuffer is added to every compact blink interval.
	SafetyBuffer time.Duration
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:     50,
		LatencyMargin: 0.1,
		MinGap:        20 * time.Millisecond,
		SafetyBuffer:  10 * time.Millisecond,
	}
}

// delivery is one message and the pause that follows it.
type delivery struct {
	msg   string
	pause time.Duration
}

type bulkFrame struct {
	Time int64                `json:"time"`
	Leds chromamind.LedMatrix `json:"leds"`
}

// BulkChunk is the wire form of one bulk message.
type BulkChunk struct {
	Frames   []bulkFrame `json:"frames"`
	TempoBPM float64     `json:"tempo_bpm"`
}

// Scheduler delivers timelines to one device endpoint, running at most one
// stream at a time.
type Scheduler struct {
	dialer Dialer
	opts   Options
	log    *zap.SugaredLogger

	// startMu serializes starts and stops, dial included. mu only guards active,
	// so status reads never wait on a dial.
	startMu sync.Mutex
	mu      sync.Mutex
	active  *Stream
	nextID  atomic.Int64
}

// NewScheduler builds a Scheduler.
func NewScheduler(dialer Dialer, opts Options, log *zap.SugaredLogger) (*Scheduler, error) {
	if dialer == nil {
		return nil, errors.New("scheduler needs a dialer")
	}
	if opts.ChunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.LatencyMargin < 0 || opts.LatencyMargin >= 1 {
		return nil, errors.Errorf("latency margin %v out of range [0, 1)", opts.LatencyMargin)
	}
	return &Scheduler{dialer: dialer, opts: opts, log: log}, nil
}

// StartBulk streams a matrix timeline in fixed-size chunks.
func (s *Scheduler) StartBulk(ctx context.Context, tl *chromamind.Timeline) (*Stream, error) {
	plan, err := s.planBulk(tl)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, Bulk, plan)
}

// StartCompact streams a mode timeline one descriptor at a time.
func (s *Scheduler) StartCompact(ctx context.Context, tl *chromamind.Timeline) (*Stream, error) {
	plan, err := s.planCompact(tl)
	if err != nil {
		return nil, err
	}
	return s.start(ctx, Compact, plan)
}

// Active returns the current stream, which may already have finished, or nil.
func (s *Scheduler) Active() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop cancels the active stream and waits for it to close its connection.
// A start in progress finishes first and its stream is the one stopped.
func (s *Scheduler) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.stopActive()
}

// stopActive requires startMu.
func (s *Scheduler) stopActive() {
	if st := s.Active(); st != nil {
		st.Cancel()
		st.Wait()
	}
}

func (s *Scheduler) start(ctx context.Context, mode Mode, plan []delivery) (*Stream, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.stopActive()

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.log.Errorw("Failed to connect to device", "mode", mode, "error", err)
		return nil, errors.Wrapf(ErrConnection, "%v", err)
	}

	id := s.nextID.Add(1)
	st := &Stream{
		ID:     id,
		Mode:   mode,
		Units:  len(plan),
		conn:   conn,
		log:    s.log.With("stream", id, "mode", mode),
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
		status: Running,
	}
	s.mu.Lock()
	s.active = st
	s.mu.Unlock()

	st.log.Infow("Stream started", "units", len(plan))
	go st.run(plan)
	return st, nil
}

func (s *Scheduler) planBulk(tl *chromamind.Timeline) ([]delivery, error) {
	if tl == nil || tl.Len() == 0 {
		return nil, errors.New("bulk stream: empty timeline")
	}
	if tl.Kind != chromamind.PayloadMatrix {
		return nil, errors.Errorf("bulk stream: timeline carries %s frames", tl.Kind)
	}

	interval := float64(tl.DurationMs) / float64(tl.Len())
	var plan []delivery
	for start := 0; start < tl.Len(); start += s.opts.ChunkSize {
		end := min(start+s.opts.ChunkSize, tl.Len())
		chunk := BulkChunk{Frames: make([]bulkFrame, 0, end-start), TempoBPM: tl.TempoBPM}
		for _, f := range tl.Frames[start:end] {
			chunk.Frames = append(chunk.Frames, bulkFrame{Time: f.TimeMs, Leds: f.Leds})
		}
		b, err := json.Marshal(chunk)
		if err != nil {
			return nil, errors.Wrapf(err, "encode chunk at frame %d", start)
		}
		ms := float64(end-start) * interval * (1 - s.opts.LatencyMargin)
		plan = append(plan, delivery{
			msg:   string(b),
			pause: time.Duration(ms * float64(time.Millisecond)),
		})
	}
	return plan, nil
}

func (s *Scheduler) planCompact(tl *chromamind.Timeline) ([]delivery, error) {
	if tl == nil || tl.Len() == 0 {
		return nil, errors.New("compact stream: empty timeline")
	}
	if tl.Kind != chromamind.PayloadMode {
		return nil, errors.Errorf("compact stream: timeline carries %s frames", tl.Kind)
	}

	plan := make([]delivery, tl.Len())
	for i, f := range tl.Frames {
		blink := time.Duration(f.Mode.BlinkIntervalMs) * time.Millisecond
		plan[i] = delivery{
			msg:   f.Mode.String(),
			pause: max(s.opts.MinGap, blink+s.opts.SafetyBuffer),
		}
	}
	return plan, nil
}

// Stream is one running delivery. Its methods are safe for concurrent use.
type Stream struct {
	ID    int64
	Mode  Mode
	Units int

	conn Conn
	log  *zap.SugaredLogger

	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}

	sent    atomic.Int64
	skipped atomic.Int64

	mu     sync.Mutex
	status Status
	err    error
}

// Cancel asks the stream to stop before its next unit. An in-flight send is
// allowed to finish.
func (st *Stream) Cancel() {
	st.cancelOnce.Do(func() { close(st.cancel) })
}

// Done is closed once the worker has exited and the connection is closed.
func (st *Stream) Done() <-chan struct{} {
	return st.done
}

// Wait blocks until the stream ends and returns its fatal error, if any.
func (st *Stream) Wait() error {
	<-st.done
	return st.Err()
}

func (st *Stream) Status() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status
}

func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Sent is the number of messages the device accepted.
func (st *Stream) Sent() int { return int(st.sent.Load()) }

// Skipped is the number of messages dropped after a non-fatal send error.
func (st *Stream) Skipped() int { return int(st.skipped.Load()) }

func (st *Stream) run(plan []delivery) {
	status, err := st.deliver(plan)

	if cerr := st.conn.Close(); cerr != nil {
		st.log.Warnw("Failed to close device connection", "error", cerr)
	}

	st.mu.Lock()
	st.status, st.err = status, err
	st.mu.Unlock()
	close(st.done)

	st.log.Infow("Stream finished",
		"status", status,
		"sent", st.Sent(),
		"skipped", st.Skipped(),
	)
}

func (st *Stream) deliver(plan []delivery) (Status, error) {
	for i, d := range plan {
		if st.cancelled() {
			return Cancelled, nil
		}
		if err := st.conn.Send(d.msg); err != nil {
			if errors.Is(err, ErrConnectionLost) {
				st.log.Errorw("Device connection lost", "unit", i, "error", err)
				return Failed, err
			}
			st.skipped.Add(1)
			st.log.Warnw("Failed to send unit, skipping", "unit", i, "error", err)
		} else {
			st.sent.Add(1)
		}
		if !st.sleep(d.pause) {
			return Cancelled, nil
		}
	}
	return Completed, nil
}

func (st *Stream) cancelled() bool {
	select {
	case <-st.cancel:
		return true
	default:
		return false
	}
}

// sleep pauses for d and reports false if the stream was cancelled meanwhile.
func (st *Stream) sleep(d time.Duration) bool {
	if d <= 0 {
		return !st.cancelled()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-st.cancel:
		return false
	}
}
