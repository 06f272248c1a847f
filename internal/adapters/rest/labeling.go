package rest

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/seedset/internal/adapters/tabular"
	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/services"
)

type seedsRequest struct {
	Main       []int    `json:"main"`
	Additional []string `json:"additional"`
}

type recommendRequest struct {
	Count int `json:"count"`
}

type labelsRequest struct {
	Labels map[string]int `json:"labels"`
}

type trimRequest struct {
	Keep *int `json:"keep"`
}

// SelectSeeds handles POST /runs/{id}/seeds
func (h *Handler) SelectSeeds(w http.ResponseWriter, r *http.Request) {
	var req seedsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	acc, err := h.svc.SelectSeeds(r.Context(), h.sess, chi.URLParam(r, "id"), services.SeedRequest{
		Main:       req.Main,
		Additional: req.Additional,
	})
	h.writeAccumulator(w, r, acc, err)
}

// Recommend handles POST /runs/{id}/recommendations. A zero count asks
// for the configured default.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	acc, err := h.svc.Recommend(r.Context(), h.sess, chi.URLParam(r, "id"), req.Count)
	h.writeAccumulator(w, r, acc, err)
}

// ExportBatch handles GET /runs/{id}/batch: the pending batch with an
// empty LABEL column for the operator to fill in.
func (h *Handler) ExportBatch(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeTable(w, r, "batch", tabular.LabeledTable(rec.Accumulator.Pending))
}

// SubmitLabels handles POST /runs/{id}/labels. A JSON body maps track ids
// to labels; a CSV body is the downloaded batch with LABEL filled in.
func (h *Handler) SubmitLabels(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if isCSV(r) {
		rows, err := tabular.ReadLabeled(http.MaxBytesReader(w, r.Body, maxUploadBytes))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		acc, err := h.svc.SubmitLabeledBatch(r.Context(), runID, rows)
		h.writeAccumulator(w, r, acc, err)
		return
	}

	var req labelsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	acc, err := h.svc.SubmitLabels(r.Context(), runID, req.Labels)
	h.writeAccumulator(w, r, acc, err)
}

// ImportLabeled handles POST /runs/{id}/labeled: a CSV upload of a
// labeled set that replaces the current one.
func (h *Handler) ImportLabeled(w http.ResponseWriter, r *http.Request) {
	rows, err := tabular.ReadLabeled(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	acc, err := h.svc.ImportLabeled(r.Context(), chi.URLParam(r, "id"), rows)
	h.writeAccumulator(w, r, acc, err)
}

// ExportLabeled handles GET /runs/{id}/labeled
func (h *Handler) ExportLabeled(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeTable(w, r, "labeled", tabular.LabeledTable(rec.Accumulator.Labeled))
}

// Trim handles POST /runs/{id}/trim
func (h *Handler) Trim(w http.ResponseWriter, r *http.Request) {
	var req trimRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Keep == nil {
		badRequest(w, "keep is required")
		return
	}
	acc, err := h.svc.Trim(r.Context(), chi.URLParam(r, "id"), *req.Keep)
	h.writeAccumulator(w, r, acc, err)
}

// Reset handles POST /runs/{id}/reset
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Reset(r.Context(), chi.URLParam(r, "id"))
	h.writeAccumulator(w, r, acc, err)
}

// ExportFinal handles GET /runs/{id}/final: the complete labeled set
// joined with freshly fetched audio features.
func (h *Handler) ExportFinal(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.FinalDataset(r.Context(), h.sess, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeTable(w, r, "final", tabular.LabeledFeaturesTable(rows))
}

func (h *Handler) writeAccumulator(w http.ResponseWriter, r *http.Request, acc *domain.Accumulator, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccumulatorResponse(acc))
}

func isCSV(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "text/csv"
}
