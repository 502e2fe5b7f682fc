package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rrdptools/rrdp-mirror/internal/rrdp"
)

// CycleSource exposes the recorded fetch cycle history so the health endpoint
// can report how the mirror is actually doing, not just that it is up.
type CycleSource interface {
	GetRecentFetchCycles(limit int) ([]rrdp.FetchCycle, error)
}

// Api serves the /health endpoint.
type Api struct {
	statusService *Service
	cycles        CycleSource
}

// NewApi creates the health API.
func NewApi(statusService *Service, cycles CycleSource) *Api {
	return &Api{
		statusService: statusService,
		cycles:        cycles,
	}
}

// RegisterHandlers registers the HTTP handlers.
func (api *Api) RegisterHandlers() {
	http.HandleFunc("/health", api.GetHealth)
}

// GetHealth reports liveness plus the most recent fetch cycle outcome.
func (api *Api) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.statusService.IsShuttingDown() {
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status": "shutting down",
		}); err != nil {
			slog.Error("encoding health response", "err", err)
		}
		return
	}

	resp := map[string]string{"status": "ok"}
	if api.cycles != nil {
		cycles, err := api.cycles.GetRecentFetchCycles(1)
		if err != nil {
			slog.Error("failed to read fetch cycle history", "err", err)
		} else if len(cycles) > 0 {
			resp["last_cycle_outcome"] = cycles[0].Outcome
			resp["last_cycle_finished_at"] = cycles[0].FinishedAt.Format(time.RFC3339)
		}
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("encoding health response", "err", err)
	}
}
