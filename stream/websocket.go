package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mager/chromamind/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrMessageTooLarge is returned for a message over the device's buffer limit.
// The connection stays usable.
var ErrMessageTooLarge = errors.New("message exceeds device buffer")

// WebsocketDialer connects to the device's websocket endpoint.
type WebsocketDialer struct {
	URL            string
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	// MaxMessageSize rejects larger messages before they are written. Zero means no limit.
	MaxMessageSize int

	log *zap.SugaredLogger
}

// ProvideWebsocketDialer builds the dialer from configuration.
func ProvideWebsocketDialer(cfg config.Config, log *zap.SugaredLogger) *WebsocketDialer {
	return &WebsocketDialer{
		URL:            cfg.DeviceURL,
		ConnectTimeout: cfg.ConnectTimeout,
		SendTimeout:    cfg.SendTimeout,
		MaxMessageSize: cfg.MaxMessageSize,
		log:            log,
	}
}

// ProvideScheduler builds the device scheduler from configuration.
func ProvideScheduler(cfg config.Config, dialer *WebsocketDialer, log *zap.SugaredLogger) (*Scheduler, error) {
	opts := DefaultOptions()
	opts.ChunkSize = cfg.ChunkSize
	opts.LatencyMargin = cfg.LatencyMargin
	return NewScheduler(dialer, opts, log)
}

func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.ConnectTimeout,
	}
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}

	c, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", d.URL)
	}
	d.log.Infow("Connected to device", "url", d.URL)

	wc := &wsConn{
		c:       c,
		timeout: d.SendTimeout,
		maxSize: d.MaxMessageSize,
		log:     d.log,
		closed:  make(chan struct{}),
	}
	go wc.drain()
	return wc, nil
}

type wsConn struct {
	c       *websocket.Conn
	timeout time.Duration
	maxSize int
	log     *zap.SugaredLogger
	closed  chan struct{}
}

func (w *wsConn) Send(msg string) error {
	if w.maxSize > 0 && len(msg) > w.maxSize {
		return errors.Wrapf(ErrMessageTooLarge, "%d > %d bytes", len(msg), w.maxSize)
	}
	select {
	case <-w.closed:
		return errors.Wrap(ErrConnectionLost, "device closed the connection")
	default:
	}

	if w.timeout > 0 {
		if err := w.c.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return errors.Wrap(ErrConnectionLost, err.Error())
		}
	}
	// gorilla keeps write errors sticky, so any failure here ends the connection.
	if err := w.c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return errors.Wrap(ErrConnectionLost, err.Error())
	}
	return nil
}

func (w *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.c.Close()
}

// drain reads and discards device messages so control frames are handled.
func (w *wsConn) drain() {
	defer close(w.closed)
	for {
		_, msg, err := w.c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				w.log.Debugw("Device read ended", "error", err)
			}
			return
		}
		w.log.Debugw("Device message", "message", string(msg))
	}
}
