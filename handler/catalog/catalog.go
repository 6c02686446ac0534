package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mager/chromamind/catalog"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ListHandler lists previously built timelines.
type ListHandler struct {
	log   *zap.SugaredLogger
	store *catalog.Store
}

func (*ListHandler) Pattern() string {
	return "/timelines"
}

func (*ListHandler) Methods() []string {
	return []string{http.MethodGet}
}

// NewListHandler builds a new ListHandler.
func NewListHandler(log *zap.SugaredLogger, store *catalog.Store) *ListHandler {
	return &ListHandler{
		log:   log,
		store: store,
	}
}

type ListResponse struct {
	Timelines []catalog.Entry `json:"timelines"`
}

// List timelines
// @Summary Most recently built timelines
// @Produce json
// @Param limit query int false "Maximum entries, default 50"
// @Success 200 {object} ListResponse
// @Router /timelines [get]
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.store.List(r.Context(), limit)
	if err != nil {
		if errors.Is(err, catalog.ErrDisabled) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.log.Errorw("Failed to list timelines", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(ListResponse{Timelines: entries})
}
