package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"wasco/mapcore/internal/scenario"
)

const (
	archiveMaxLimit     = 1000
	archiveDefaultLimit = 100
)

type scenarioKeyResponse struct {
	Key        string `json:"key"`
	Mode       string `json:"mode"`
	ScenarioID string `json:"scenario_id,omitempty"`
	RegionID   int    `json:"region_id"`
}

type archivedRegion struct {
	ScenarioKey string    `json:"scenario_key"`
	RegionID    int32     `json:"region_id"`
	ScenarioID  string    `json:"scenario_id,omitempty"`
	SizeBytes   int32     `json:"size_bytes"`
	FetchedAt   time.Time `json:"fetched_at"`
}

func (h *Handler) handleScenarioKey(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, ok := scenario.ParseMode(q.Get("mode"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid mode", map[string]any{"mode": q.Get("mode")})
		return
	}
	region, err := strconv.Atoi(strings.TrimSpace(q.Get("region")))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid region", map[string]any{"region": q.Get("region")})
		return
	}
	scenarioID := strings.TrimSpace(q.Get("scenario"))

	key := scenario.Resolve(mode, scenarioID, region)
	_, sid, _, _ := key.Split()
	h.writeJSON(w, http.StatusOK, scenarioKeyResponse{
		Key:        key.String(),
		Mode:       string(mode),
		ScenarioID: sid,
		RegionID:   region,
	})
}

func (h *Handler) handleListArchivedRegions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimitParam(r.URL.Query().Get("limit"), archiveMaxLimit, archiveDefaultLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid limit", map[string]any{"error": err.Error()})
		return
	}
	if h.archive == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	rows, err := h.archive.ListRegionDetails(r.Context(), int32(limit))
	if err != nil {
		h.log.Error().Err(err).Msg("list archived regions failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list archived regions", nil)
		return
	}

	resp := make([]archivedRegion, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, archivedRegion{
			ScenarioKey: row.ScenarioKey,
			RegionID:    row.RegionID,
			ScenarioID:  row.ScenarioID,
			SizeBytes:   row.SizeBytes,
			FetchedAt:   row.FetchedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}
