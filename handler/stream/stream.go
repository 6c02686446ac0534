package stream

import (
	"encoding/json"
	"net/http"

	"github.com/mager/chromamind/show"
	"github.com/mager/chromamind/stream"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type StartRequest struct {
	// Mode is "bulk" for full frames or "compact" for mode descriptors.
	Mode stream.Mode `json:"mode"`
}

// StartHandler starts streaming the published timeline to the device.
type StartHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
}

func (*StartHandler) Pattern() string {
	return "/stream"
}

func (*StartHandler) Methods() []string {
	return []string{http.MethodPost}
}

// NewStartHandler builds a new StartHandler.
func NewStartHandler(log *zap.SugaredLogger, manager *show.Manager) *StartHandler {
	return &StartHandler{
		log:     log,
		manager: manager,
	}
}

// Start streaming
// @Summary Stream the published timeline to the device
// @Accept json
// @Produce json
// @Param request body StartRequest true "Delivery mode"
// @Success 202 {object} show.StreamStatus
// @Router /stream [post]
func (h *StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Mode != stream.Bulk && req.Mode != stream.Compact {
		http.Error(w, "mode must be bulk or compact", http.StatusBadRequest)
		return
	}

	// The context only bounds the dial; the stream outlives the request.
	st, err := h.manager.StartStream(r.Context(), req.Mode)
	if err != nil {
		switch {
		case errors.Is(err, show.ErrNoTimeline):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, stream.ErrConnection):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.log.Infow("Stream requested", "mode", req.Mode, "stream", st.ID)
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(show.StreamStatus{
		ID:     st.ID,
		Mode:   st.Mode,
		Status: st.Status(),
		Units:  st.Units,
	})
}

// StopHandler cancels the running stream.
type StopHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
}

func (*StopHandler) Pattern() string {
	return "/stream"
}

func (*StopHandler) Methods() []string {
	return []string{http.MethodDelete}
}

// NewStopHandler builds a new StopHandler.
func NewStopHandler(log *zap.SugaredLogger, manager *show.Manager) *StopHandler {
	return &StopHandler{
		log:     log,
		manager: manager,
	}
}

// Stop streaming
// @Summary Cancel the running stream and close the device connection
// @Success 204
// @Router /stream [delete]
func (h *StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.manager.StopStream()
	w.WriteHeader(http.StatusNoContent)
}

// StatusHandler reports the load state and the latest stream.
type StatusHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
}

func (*StatusHandler) Pattern() string {
	return "/stream"
}

func (*StatusHandler) Methods() []string {
	return []string{http.MethodGet}
}

// NewStatusHandler builds a new StatusHandler.
func NewStatusHandler(log *zap.SugaredLogger, manager *show.Manager) *StatusHandler {
	return &StatusHandler{
		log:     log,
		manager: manager,
	}
}

// Stream status
// @Summary Load state and the latest stream
// @Produce json
// @Success 200 {object} show.Status
// @Router /stream [get]
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(h.manager.Status())
}
