package timeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mager/chromamind/analyzer"
	"github.com/mager/chromamind/chromamind"
	"github.com/mager/chromamind/show"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type LoadRequest struct {
	// Path is an mp3 or wav file readable by the server.
	Path        string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type TimelineResponse struct {
	Metadata  chromamind.Metadata `json:"metadata"`
	Source    string              `json:"source"`
	CatalogID int64               `json:"catalog_id,omitempty"`
}

func newTimelineResponse(s *show.Snapshot) TimelineResponse {
	return TimelineResponse{Metadata: s.Metadata, Source: s.Source, CatalogID: s.CatalogID}
}

// LoadHandler analyzes an audio file and publishes its timeline.
type LoadHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
}

func (*LoadHandler) Pattern() string {
	return "/timeline"
}

func (*LoadHandler) Methods() []string {
	return []string{http.MethodPost}
}

// NewLoadHandler builds a new LoadHandler.
func NewLoadHandler(log *zap.SugaredLogger, manager *show.Manager) *LoadHandler {
	return &LoadHandler{
		log:     log,
		manager: manager,
	}
}

// Load a track
// @Summary Analyze an audio file and build its timeline
// @Accept json
// @Produce json
// @Param request body LoadRequest true "Audio file"
// @Success 200 {object} TimelineResponse
// @Router /timeline [post]
func (h *LoadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = req.Path
	}

	h.log.Infow("Loading track", "path", req.Path, "name", req.Name)
	snap, err := h.manager.LoadFile(r.Context(), req.Path, show.Track{Name: req.Name, Description: req.Description})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, analyzer.ErrAnalysis) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}

	json.NewEncoder(w).Encode(newTimelineResponse(snap))
}

// GetHandler returns the metadata of the published timeline.
type GetHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
}

func (*GetHandler) Pattern() string {
	return "/timeline"
}

func (*GetHandler) Methods() []string {
	return []string{http.MethodGet}
}

// NewGetHandler builds a new GetHandler.
func NewGetHandler(log *zap.SugaredLogger, manager *show.Manager) *GetHandler {
	return &GetHandler{
		log:     log,
		manager: manager,
	}
}

// Get the current timeline
// @Summary Metadata of the published timeline
// @Produce json
// @Success 200 {object} TimelineResponse
// @Router /timeline [get]
func (h *GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.manager.Snapshot()
	if snap == nil {
		http.Error(w, show.ErrNoTimeline.Error(), http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(newTimelineResponse(snap))
}

// FrameHandler looks up the frame showing at a playback position.
type FrameHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
}

func (*FrameHandler) Pattern() string {
	return "/timeline/frame"
}

func (*FrameHandler) Methods() []string {
	return []string{http.MethodGet}
}

// NewFrameHandler builds a new FrameHandler.
func NewFrameHandler(log *zap.SugaredLogger, manager *show.Manager) *FrameHandler {
	return &FrameHandler{
		log:     log,
		manager: manager,
	}
}

// Get a frame
// @Summary Frame at a playback position
// @Produce json
// @Param position_ms query int true "Playback position in milliseconds"
// @Param kind query string false "matrix or mode"
// @Success 200 {object} chromamind.Frame
// @Router /timeline/frame [get]
func (h *FrameHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos, err := strconv.ParseInt(q.Get("position_ms"), 10, 64)
	if err != nil {
		http.Error(w, "position_ms must be an integer", http.StatusBadRequest)
		return
	}

	f, err := h.manager.FrameAt(pos, chromamind.PayloadKind(q.Get("kind")))
	if err != nil {
		if errors.Is(err, show.ErrNoTimeline) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(f)
}

// ExportHandler downloads the published timeline as a document.
type ExportHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
}

func (*ExportHandler) Pattern() string {
	return "/timeline/export"
}

func (*ExportHandler) Methods() []string {
	return []string{http.MethodGet}
}

// NewExportHandler builds a new ExportHandler.
func NewExportHandler(log *zap.SugaredLogger, manager *show.Manager) *ExportHandler {
	return &ExportHandler{
		log:     log,
		manager: manager,
	}
}

// Export the current timeline
// @Summary Download the published timeline document
// @Produce json
// @Param kind query string false "matrix or mode"
// @Success 200 {object} chromamind.Document
// @Router /timeline/export [get]
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.manager.Snapshot()
	if snap == nil {
		http.Error(w, show.ErrNoTimeline.Error(), http.StatusNotFound)
		return
	}
	kind := chromamind.PayloadKind(r.URL.Query().Get("kind"))
	tl, err := snap.Timeline(kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if tl == nil {
		http.Error(w, "no "+string(kind)+" timeline loaded", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Metadata.Name+".json"))
	if err := h.manager.Export(w, kind); err != nil {
		h.log.Errorw("Failed to export timeline", "error", err)
	}
}
