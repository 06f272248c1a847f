// Package rest exposes the dataset workflow over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/seedset/internal/adapters/tabular"
	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/services"
)

// maxUploadBytes bounds JSON and CSV request bodies.
const maxUploadBytes = 4 << 20

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc    *services.Orchestrator
	sess   *services.Session
	logger *zap.Logger
	router chi.Router
}

// NewHandler initializes the HTTP adapter and sets up routes. sess holds
// the process-wide credential used for every catalog call.
func NewHandler(svc *services.Orchestrator, sess *services.Session, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		svc:    svc,
		sess:   sess,
		logger: logger.Named("rest"),
		router: chi.NewRouter(),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Post("/token/validate", h.ValidateToken)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.ListRuns)
		r.Post("/", h.CreateRun)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetRun)
			r.Get("/playlist", h.GetPlaylistDump)
			r.Get("/tracks", h.ExportTracks)
			r.Get("/features", h.ExportFeatures)
			r.Get("/dataset", h.ExportDataset)

			r.Post("/seeds", h.SelectSeeds)
			r.Post("/recommendations", h.Recommend)
			r.Get("/batch", h.ExportBatch)
			r.Post("/labels", h.SubmitLabels)
			r.Post("/labeled", h.ImportLabeled)
			r.Get("/labeled", h.ExportLabeled)
			r.Post("/trim", h.Trim)
			r.Post("/reset", h.Reset)
			r.Get("/final", h.ExportFinal)
		})
	})
}

// requestLogger logs one line per request with zap.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps the domain error taxonomy to a status code.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrContract):
		return http.StatusUnprocessableEntity, "contract"
	case errors.Is(err, domain.ErrPolicy):
		return http.StatusUnprocessableEntity, "policy"
	case errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway, "remote"
	case errors.Is(err, domain.ErrTransport), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "transport"
	}
	return http.StatusInternalServerError, ""
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "request"})
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeTable encodes t in the format named by the format query value.
func (h *Handler) writeTable(w http.ResponseWriter, r *http.Request, name string, t tabular.Table) {
	format, err := tabular.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.%s", chi.URLParam(r, "id"), name, format)))
	w.WriteHeader(http.StatusOK)
	if err := tabular.Write(w, format, name, t); err != nil {
		h.logger.Error("table export failed", zap.String("table", name), zap.Error(err))
	}
}
