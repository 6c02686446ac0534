package health

import (
	"encoding/json"
	"net/http"

	"github.com/mager/chromamind/catalog"
	"github.com/mager/chromamind/show"
	"go.uber.org/zap"
)

// HealthHandler reports whether the service and its optional parts are up.
type HealthHandler struct {
	log     *zap.SugaredLogger
	manager *show.Manager
	store   *catalog.Store
}

func (*HealthHandler) Pattern() string {
	return "/health"
}

func (*HealthHandler) Methods() []string {
	return []string{http.MethodGet}
}

// NewHealthHandler builds a new HealthHandler.
func NewHealthHandler(log *zap.SugaredLogger, manager *show.Manager, store *catalog.Store) *HealthHandler {
	return &HealthHandler{
		log:     log,
		manager: manager,
		store:   store,
	}
}

type Response struct {
	Status   string     `json:"status"`
	State    show.State `json:"state"`
	Timeline bool       `json:"timeline"`
	Catalog  bool       `json:"catalog"`
}

// Health check
// @Summary Health check
// @Produce json
// @Success 200 {object} Response
// @Router /health [get]
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Debugw("health check")

	resp := Response{
		Status:   "OK",
		State:    h.manager.Status().State,
		Timeline: h.manager.Snapshot() != nil,
		Catalog:  h.store.Enabled(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
