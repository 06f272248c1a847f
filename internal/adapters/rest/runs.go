package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/seedset/internal/adapters/tabular"
	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/ports"
	"github.com/ewilliams-labs/seedset/internal/core/services"
)

type validateTokenRequest struct {
	Token string `json:"token"`
}

type validateTokenResponse struct {
	Status      string `json:"status"`
	AccessToken string `json:"access_token,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

// ValidateToken handles POST /token/validate. An empty token is checked
// like any other, so it comes back rejected and is replaced by a refreshed
// one.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	res := h.sess.Use(r.Context(), strings.TrimSpace(req.Token))
	if !res.OK() {
		h.writeError(w, r, res.Err)
		return
	}

	resp := validateTokenResponse{Status: res.Status.String()}
	if res.Status == services.TokenRefreshed {
		resp.AccessToken = res.Token.AccessToken
		resp.Warning = "the supplied token was rejected; continuing with a refreshed token"
	}
	writeJSON(w, http.StatusOK, resp)
}

type createRunRequest struct {
	PlaylistID string `json:"playlist_id"`
}

type runResponse struct {
	ID          string              `json:"id"`
	Playlist    domain.PlaylistInfo `json:"playlist"`
	Items       int                 `json:"items"`
	Tracks      int                 `json:"tracks"`
	DatasetRows int                 `json:"dataset_rows"`
	Accumulator accumulatorResponse `json:"accumulator"`
}

type accumulatorResponse struct {
	State     domain.State         `json:"state"`
	Round     int                  `json:"round"`
	Target    int                  `json:"target"`
	Labeled   int                  `json:"labeled"`
	Positive  int                  `json:"positive"`
	Remaining int                  `json:"remaining"`
	Pending   int                  `json:"pending"`
	MainSeeds []int                `json:"main_seeds"`
	Seeds     *domain.SeedTrackSet `json:"seeds,omitempty"`
}

func newAccumulatorResponse(acc *domain.Accumulator) accumulatorResponse {
	return accumulatorResponse{
		State:     acc.State,
		Round:     acc.Round,
		Target:    acc.Target,
		Labeled:   len(acc.Labeled),
		Positive:  len(acc.PositiveRows()),
		Remaining: acc.Remaining(),
		Pending:   len(acc.Pending),
		MainSeeds: acc.MainSeeds,
		Seeds:     acc.Seeds,
	}
}

func newRunResponse(rec ports.RunRecord) runResponse {
	return runResponse{
		ID:          rec.ID,
		Playlist:    rec.Playlist.Info,
		Items:       len(rec.Playlist.Items),
		Tracks:      len(rec.Tracks),
		DatasetRows: len(rec.Dataset),
		Accumulator: newAccumulatorResponse(rec.Accumulator),
	}
}

// CreateRun handles POST /runs: fetch, extract, features and merge.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	playlistID := strings.TrimSpace(req.PlaylistID)
	if playlistID == "" {
		badRequest(w, "playlist_id is required")
		return
	}

	rec, err := h.svc.StartRun(r.Context(), h.sess, playlistID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRunResponse(rec))
}

// ListRuns handles GET /runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListRuns(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": ids, "last": h.sess.LastRun()})
}

// GetRun handles GET /runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(rec))
}

// GetPlaylistDump handles GET /runs/{id}/playlist
func (h *Handler) GetPlaylistDump(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec.Playlist)
}

// ExportTracks handles GET /runs/{id}/tracks
func (h *Handler) ExportTracks(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeTable(w, r, "tracks", tabular.TracksTable(rec.Tracks))
}

// ExportFeatures handles GET /runs/{id}/features
func (h *Handler) ExportFeatures(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeTable(w, r, "features", tabular.FeaturesTable(rec.Features))
}

// ExportDataset handles GET /runs/{id}/dataset
func (h *Handler) ExportDataset(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeTable(w, r, "dataset", tabular.DatasetTable(rec.Dataset))
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (ports.RunRecord, bool) {
	rec, err := h.svc.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return ports.RunRecord{}, false
	}
	return rec, true
}
